package llms

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// DefaultRecursionLimit is the number of model calls allowed in one turn.
const DefaultRecursionLimit = 25

type turnKey struct{}

// TurnCounter counts model calls made within one conversation turn.
type TurnCounter struct {
	mu    sync.Mutex
	count int
	limit int
}

// Count returns the number of calls made so far.
func (c *TurnCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// SetLimit overrides the StepLimiter limit for this turn, 0 restores it.
func (c *TurnCounter) SetLimit(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = max(limit, 0)
}

// Limit returns the limit set for this turn, 0 when not set.
func (c *TurnCounter) Limit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit
}

func (c *TurnCounter) incr() (count, limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count, c.limit
}

// WithTurn starts a new turn on the context.
// Every StepLimiter call made with the returned context counts against the
// same turn.
func WithTurn(ctx context.Context) context.Context {
	return context.WithValue(ctx, turnKey{}, &TurnCounter{})
}

// TurnFromContext returns the turn counter, or nil if no turn was started.
func TurnFromContext(ctx context.Context) *TurnCounter {
	v, _ := ctx.Value(turnKey{}).(*TurnCounter)
	return v
}

// StepLimiter is a Model decorator that fails with ErrTurnLimitExceeded
// once a turn has made more than Limit calls, or more than the limit set
// on the TurnCounter of the turn.
type StepLimiter struct {
	Model
	limit int

	// fallback is used when the context carries no turn
	fallback TurnCounter
}

// NewStepLimiter wraps the model. A limit <= 0 uses DefaultRecursionLimit.
func NewStepLimiter(model Model, limit int) *StepLimiter {
	if limit <= 0 {
		limit = DefaultRecursionLimit
	}
	return &StepLimiter{
		Model: model,
		limit: limit,
	}
}

// Limit returns the number of calls allowed per turn.
func (l *StepLimiter) Limit() int {
	return l.limit
}

// GenerateContent counts the call against the current turn and delegates
// to the wrapped model.
func (l *StepLimiter) GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error) {
	counter := TurnFromContext(ctx)
	if counter == nil {
		counter = &l.fallback
	}
	n, limit := counter.incr()
	if limit == 0 {
		limit = l.limit
	}
	if n > limit {
		return nil, errors.Wrapf(ErrTurnLimitExceeded, "exceeded max model calls: %d", limit)
	}
	return l.Model.GenerateContent(ctx, messages, options...)
}
