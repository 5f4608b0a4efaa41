package httptransport

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/CodeSistency/agentTemplate/mcp"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/CodeSistency/agentTemplate/mcp", "httptransport")

// MaxBodySize limits the size of a request body
const MaxBodySize = 1 << 20

// MessageHandler handles an encoded request and returns the encoded response
type MessageHandler interface {
	HandleMessage(ctx context.Context, body []byte) ([]byte, error)
}

// Handler returns a stateless HTTP handler for the server,
// one JSON-RPC message per POST.
func Handler(h MessageHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Only POST method is supported", http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()
		body, err := readBody(io.LimitReader(r.Body, MaxBodySize))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := h.HandleMessage(ctx, body)
		if err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "handle_message", "err", err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if resp == nil {
			// notification
			w.WriteHeader(http.StatusAccepted)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(resp)
	})
}

// Client sends the messages to a server URL
type Client struct {
	url    string
	client *http.Client
}

var _ mcp.RoundTripper = (*Client)(nil)

// NewClient returns a Client, http.DefaultClient is used when client is nil
func NewClient(url string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{url: url, client: client}
}

// HandleMessage posts the message and returns the response body,
// nil for notifications.
func (c *Client) HandleMessage(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	data, err := readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusAccepted:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Newf("unexpected status %d: %s", resp.StatusCode, string(bytes.TrimSpace(data)))
	}
	return data, nil
}

// readBody reads and returns the body from an io.Reader
func readBody(reader io.Reader) ([]byte, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read body")
	}
	return body, nil
}
