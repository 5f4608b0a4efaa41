// Package mcp serves a tool registry over JSON-RPC 2.0 with the MCP method
// names (initialize, tools/list, tools/call), and provides the Client used by
// tools.TransportInvoker to call it.
//
// Tools are exposed as "<server>.<tool>", for example "math_tools.add".
// The text content of a tools/call response is the JSON encoded tools.Result.
package mcp
