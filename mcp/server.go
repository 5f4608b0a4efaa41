package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/bububa/ljson"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/CodeSistency/agentTemplate", "mcp")

// Transport delivers requests to the server and its responses back to the caller
type Transport interface {
	// Start starts the transport
	Start(ctx context.Context) error
	// Send delivers the response of a request received by the message handler
	Send(ctx context.Context, resp *Response) error
	// SetMessageHandler sets the callback for received requests and notifications
	SetMessageHandler(handler func(ctx context.Context, req *Request))
	// Close closes the transport
	Close() error
}

// Server exposes a tool registry as "<name>.<tool>"
type Server struct {
	name     string
	version  string
	registry *tools.Registry
	executor *tools.Executor
}

// NewServer returns a Server for the registry
func NewServer(name, version string, registry *tools.Registry) *Server {
	return &Server{
		name:     name,
		version:  version,
		registry: registry,
		executor: tools.NewExecutor(registry),
	}
}

// Name returns the server name, the prefix of the tool names
func (s *Server) Name() string {
	return s.name
}

// Serve handles the requests received by the transport
func (s *Server) Serve(ctx context.Context, tr Transport) error {
	tr.SetMessageHandler(func(ctx context.Context, req *Request) {
		resp := s.Handle(ctx, req)
		if resp == nil {
			return
		}
		if err := tr.Send(ctx, resp); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"reason", "send",
				"method", req.Method,
				"err", err.Error(),
			)
		}
	})
	return tr.Start(ctx)
}

// HandleMessage decodes a request, handles it and returns the encoded response.
// The response is nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, body []byte) ([]byte, error) {
	var req Request
	if err := ljson.Unmarshal(body, &req); err != nil {
		return json.Marshal(&Response{
			JSONRPC: Version,
			Error:   NewError(CodeParseError, "parse error: %s", err.Error()),
		})
	}
	resp := s.Handle(ctx, &req)
	if resp == nil {
		return nil, nil
	}
	return json.Marshal(resp)
}

// Handle dispatches the request, it returns nil for notifications
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	if req.IsNotification() {
		logger.ContextKV(ctx, xlog.DEBUG, "notification", req.Method)
		return nil
	}

	resp := &Response{
		JSONRPC: Version,
		ID:      *req.ID,
	}

	var result any
	var rpcErr *Error
	switch {
	case req.JSONRPC != Version:
		rpcErr = NewError(CodeInvalidRequest, "unsupported jsonrpc version: %q", req.JSONRPC)
	case req.Method == MethodInitialize:
		result = &InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: s.name, Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		}
	case req.Method == MethodToolsList:
		result, rpcErr = s.listTools()
	case req.Method == MethodToolsCall:
		result, rpcErr = s.callTool(ctx, req.Params)
	default:
		rpcErr = NewError(CodeMethodNotFound, "method not found: %s", req.Method)
	}

	if rpcErr == nil {
		js, err := json.Marshal(result)
		if err != nil {
			rpcErr = NewError(CodeInternalError, "failed to encode result: %s", err.Error())
		} else {
			resp.Result = js
		}
	}
	if rpcErr != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"method", req.Method,
			"code", rpcErr.Code,
			"err", rpcErr.Message,
		)
		resp.Error = rpcErr
	}
	return resp
}

func (s *Server) qualifiedName(name string) string {
	return s.name + "." + name
}

func (s *Server) listTools() (*ListToolsResult, *Error) {
	res := &ListToolsResult{}
	for _, def := range s.registry.Definitions() {
		schema, err := json.Marshal(def.Function.Parameters)
		if err != nil {
			return nil, NewError(CodeInternalError, "failed to encode schema of %s: %s", def.Function.Name, err.Error())
		}
		res.Tools = append(res.Tools, ToolInfo{
			Name:        s.qualifiedName(def.Function.Name),
			Description: def.Function.Description,
			InputSchema: schema,
		})
	}
	return res, nil
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (*CallToolResult, *Error) {
	var p CallToolParams
	if err := ljson.Unmarshal(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, "invalid params: %s", err.Error())
	}
	if p.Name == "" {
		return nil, NewError(CodeInvalidParams, "tool name is required")
	}

	name := strings.TrimPrefix(p.Name, s.name+".")
	args, err := json.Marshal(p.Arguments)
	if err != nil {
		return nil, NewError(CodeInvalidParams, "invalid arguments: %s", err.Error())
	}
	if p.Arguments == nil {
		args = []byte("{}")
	}

	res := s.executor.Execute(ctx, name, string(args))
	text, err := json.Marshal(res)
	if err != nil {
		return nil, NewError(CodeInternalError, "failed to encode result: %s", err.Error())
	}
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: string(text)}},
		IsError: res.Failed(),
	}, nil
}
