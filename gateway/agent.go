package gateway

import (
	"context"

	"github.com/CodeSistency/agentTemplate/assistants"
	"github.com/CodeSistency/agentTemplate/mcp"
	"github.com/CodeSistency/agentTemplate/mcp/httptransport"
	"github.com/CodeSistency/agentTemplate/mcp/localtransport"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/pkg/prompts"
	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/CodeSistency/agentTemplate/tools/mathtools"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// Version of the gateway
const Version = "1.0.0"

// NewToolServer returns the tool server hosting the math tools
func NewToolServer() *mcp.Server {
	return mcp.NewServer(mathtools.ServerName, Version, mathtools.NewRegistry())
}

// NewInvoker returns the tool invoker for the configured mode.
// The transport mode connects to srv in process, the http mode to cfg.URL.
func NewInvoker(ctx context.Context, cfg ToolsConfig, srv *mcp.Server) (tools.Invoker, error) {
	var rt mcp.RoundTripper
	switch cfg.Mode {
	case ToolModeDirect, "":
		return tools.NewExecutor(mathtools.NewRegistry()), nil
	case ToolModeTransport:
		tr := localtransport.New()
		if err := srv.Serve(ctx, tr); err != nil {
			return nil, errors.WithMessage(err, "failed to start tool transport")
		}
		rt = tr
	case ToolModeHTTP:
		rt = httptransport.NewClient(cfg.URL, nil)
	default:
		return nil, errors.Newf("unsupported tool mode: %q", cfg.Mode)
	}

	client := mcp.NewClient(rt, mathtools.ServerName)
	info, err := client.Initialize(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to initialize tool server")
	}
	defs, err := client.ListTools(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to list tools")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"mode", cfg.Mode,
		"server", info.ServerInfo.Name,
		"version", info.ServerInfo.Version,
		"tools", len(defs),
	)
	return tools.NewTransportInvoker(client, mathtools.ServerName, defs), nil
}

// NewAgent returns the math tutor loop for the model
func NewAgent(llm llms.Model, invoker tools.Invoker, recursionLimit int, opts ...assistants.Option) (*assistants.Loop, error) {
	prompt, err := prompts.MathTutorPrompt(nil)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to render system prompt")
	}

	options := []assistants.Option{assistants.WithSystemPrompt(prompt)}
	if recursionLimit > 0 {
		options = append(options, assistants.WithRecursionLimit(recursionLimit))
	}
	options = append(options, opts...)
	return assistants.NewLoop(llm, invoker, options...), nil
}
