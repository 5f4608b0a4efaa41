package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/sjson"
)

// RoundTripper sends an encoded request and returns the encoded response
type RoundTripper interface {
	HandleMessage(ctx context.Context, body []byte) ([]byte, error)
}

// Client calls the tools of one server
type Client struct {
	rt     RoundTripper
	server string
	nextID atomic.Int64
}

var _ tools.Transport = (*Client)(nil)

// NewClient returns a Client for the server
func NewClient(rt RoundTripper, server string) *Client {
	return &Client{
		rt:     rt,
		server: server,
	}
}

// Server returns the server name
func (c *Client) Server() string {
	return c.server
}

// Initialize performs the MCP handshake
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, error) {
	var res InitializeResult
	if err := c.call(ctx, MethodInitialize, map[string]any{
		"protocolVersion": ProtocolVersion,
		"clientInfo":      ServerInfo{Name: "agent", Version: "1.0.0"},
		"capabilities":    map[string]any{},
	}, &res); err != nil {
		return nil, err
	}
	if err := c.notify(ctx, MethodInitialized); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListTools returns the model facing definitions of the server tools,
// with the server prefix removed from the names.
func (c *Client) ListTools(ctx context.Context) ([]llms.Tool, error) {
	var res ListToolsResult
	if err := c.call(ctx, MethodToolsList, nil, &res); err != nil {
		return nil, err
	}

	defs := make([]llms.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		params := &jsonschema.Schema{}
		if len(t.InputSchema) > 0 {
			if err := json.Unmarshal(t.InputSchema, params); err != nil {
				return nil, errors.Wrapf(err, "invalid schema of tool %s", t.Name)
			}
		}
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        strings.TrimPrefix(t.Name, c.server+"."),
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return defs, nil
}

// CallTool calls the tool and returns the text content of the response
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	var res CallToolResult
	if err := c.call(ctx, MethodToolsCall, &CallToolParams{Name: name, Arguments: args}, &res); err != nil {
		return "", err
	}
	if res.IsError {
		logger.ContextKV(ctx, xlog.DEBUG, "tool", name, "status", "tool_error")
	}
	return res.Text(), nil
}

func (c *Client) envelope(method string, params any, withID bool) ([]byte, int64, error) {
	body := []byte(`{}`)
	body, err := sjson.SetBytes(body, "jsonrpc", Version)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	var id int64
	if withID {
		id = c.nextID.Add(1)
		if body, err = sjson.SetBytes(body, "id", id); err != nil {
			return nil, 0, errors.WithStack(err)
		}
	}
	if body, err = sjson.SetBytes(body, "method", method); err != nil {
		return nil, 0, errors.WithStack(err)
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to encode params")
		}
		if body, err = sjson.SetRawBytes(body, "params", raw); err != nil {
			return nil, 0, errors.WithStack(err)
		}
	}
	return body, id, nil
}

func (c *Client) notify(ctx context.Context, method string) error {
	body, _, err := c.envelope(method, nil, false)
	if err != nil {
		return err
	}
	_, err = c.rt.HandleMessage(ctx, body)
	return err
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	body, id, err := c.envelope(method, params, true)
	if err != nil {
		return err
	}

	raw, err := c.rt.HandleMessage(ctx, body)
	if err != nil {
		return errors.WithMessagef(err, "%s", method)
	}

	var resp Response
	if err := ljson.Unmarshal(raw, &resp); err != nil {
		return errors.Wrapf(err, "%s: invalid response", method)
	}
	if resp.Error != nil {
		return errors.WithMessagef(resp.Error, "%s", method)
	}
	if int64(resp.ID) != id {
		return errors.Newf("%s: response id %d does not match request id %d", method, resp.ID, id)
	}
	if err := ljson.Unmarshal(resp.Result, result); err != nil {
		return errors.Wrapf(err, "%s: invalid result", method)
	}
	return nil
}
