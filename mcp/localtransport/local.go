package localtransport

import (
	"context"
	"sync/atomic"

	"github.com/CodeSistency/agentTemplate/mcp"
)

// Transport connects a Client and a Server in the same process
type Transport struct {
	*Base
	started atomic.Bool
}

var (
	_ mcp.Transport    = (*Transport)(nil)
	_ mcp.RoundTripper = (*Transport)(nil)
)

func New() *Transport {
	return &Transport{
		Base: NewBase(),
	}
}

// Start does nothing in the stateless local transport
func (s *Transport) Start(ctx context.Context) error {
	s.started.Store(true)
	return nil
}

// Started returns true after Start
func (s *Transport) Started() bool {
	return s.started.Load()
}

// Close closes the connection.
func (s *Transport) Close() error {
	s.started.Store(false)
	return s.Base.Close()
}
