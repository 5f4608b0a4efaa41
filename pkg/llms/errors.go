package llms

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrRateLimited is returned when the provider rejected the call with a rate limit.
	ErrRateLimited = errors.New("model rate limited")
	// ErrTimeout is returned when the provider did not answer in time.
	ErrTimeout = errors.New("model call timed out")
	// ErrTurnLimitExceeded is returned when a turn used more model calls than allowed.
	ErrTurnLimitExceeded = errors.New("turn limit exceeded")
	// ErrEmptyResponse is returned when the provider returned no choices.
	ErrEmptyResponse = errors.New("empty model response")
)

// MarkRateLimited attaches ErrRateLimited to err, so errors.Is(err, ErrRateLimited) holds.
func MarkRateLimited(err error) error {
	return errors.Mark(err, ErrRateLimited)
}

// MarkTimeout attaches ErrTimeout to err.
func MarkTimeout(err error) error {
	return errors.Mark(err, ErrTimeout)
}

// IsFatal reports whether err is one of the model failures that abort a turn
// without retry.
func IsFatal(err error) bool {
	return errors.IsAny(err, ErrRateLimited, ErrTimeout, ErrTurnLimitExceeded)
}
