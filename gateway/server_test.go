package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CodeSistency/agentTemplate/assistants"
	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/gateway"
	"github.com/CodeSistency/agentTemplate/mocks/mockassistants"
	"github.com/CodeSistency/agentTemplate/mocks/mockllms"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/store"
	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/CodeSistency/agentTemplate/tools/mathtools"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newModel(ctrl *gomock.Controller) *mockllms.MockModel {
	m := mockllms.NewMockModel(ctrl)
	m.EXPECT().GetName().Return("mock-model").AnyTimes()
	m.EXPECT().GetProviderType().Return(llms.ProviderMock).AnyTimes()
	return m
}

func multiplyTurn(model *mockllms.MockModel) {
	first := model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).Return(&llms.ContentResponse{
		Choices: []*llms.ContentChoice{{ToolCalls: []llms.ToolCall{{
			ID:           "c1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "multiply", Arguments: `{"a":123,"b":456}`},
		}}}},
	}, nil)
	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).Return(&llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "123 × 456 = 56088"}},
	}, nil).After(first)
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestServer_Index(t *testing.T) {
	t.Parallel()

	srv := gateway.NewServer(gateway.DefaultConfig(), nil, store.NewMemoryStore(), nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","service":"TestAgent Gateway","version":"1.0.0"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(gateway.HeaderRequestID))

	resp, body = get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "<h1>TestAgent API</h1>")

	// tool server is disabled
	resp, _ = post(t, ts.URL+"/mcp", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Chat(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)
	multiplyTurn(model)

	agent, err := gateway.NewAgent(model, tools.NewExecutor(mathtools.NewRegistry()), 5)
	require.NoError(t, err)

	st := store.NewMemoryStore()
	srv := gateway.NewServer(gateway.DefaultConfig(), agent, st, gateway.NewToolServer())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, body := post(t, ts.URL+"/v1/chat", `{"message":"  What is 123 * 456?  "}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var res chatmodel.ChatResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "123 × 456 = 56088", res.Answer)
	assert.Empty(t, res.Error)
	require.Len(t, res.Messages, 5)
	assert.Equal(t, llms.RoleSystem, res.Messages[0].Role)
	assert.Equal(t, "What is 123 * 456?", res.Messages[1].Text())
	tr, ok := res.Messages[3].ToolResponse()
	require.True(t, ok)
	assert.Contains(t, tr.Content, "**Final Result:** 56088")

	types := make([]chatmodel.EventType, 0, len(res.Events))
	for _, e := range res.Events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []chatmodel.EventType{
		chatmodel.EventModelInvoked,
		chatmodel.EventToolInvoked,
		chatmodel.EventModelInvoked,
		chatmodel.EventTurnComplete,
	}, types)

	// saved
	saved, err := st.Load(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.Len())

	resp, body = get(t, ts.URL+"/v1/chats")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list gateway.ChatList
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, []string{res.SessionID}, list.Chats)

	resp, body = get(t, ts.URL+"/v1/chats/"+res.SessionID+"?format=yaml")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	// numeric session IDs are quoted
	assert.Contains(t, string(body), `session_id: "`+res.SessionID+`"`)
	assert.Contains(t, string(body), "answer: 123 × 456 = 56088")

	resp, _ = get(t, ts.URL+"/v1/chats/"+res.SessionID+"?format=xml")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/chats/"+res.SessionID, nil)
	require.NoError(t, err)
	dresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = dresp.Body.Close()
	assert.Equal(t, http.StatusNoContent, dresp.StatusCode)

	resp, _ = get(t, ts.URL+"/v1/chats/"+res.SessionID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// the tool server is mounted
	resp, body = post(t, ts.URL+"/mcp", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"math_tools.multiply"`)
}

func TestServer_ChatSession(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mockassistants.NewMockRunner(ctrl)

	answer := func(text string) func(context.Context, *chatmodel.Conversation, ...assistants.Option) (*chatmodel.Conversation, error) {
		return func(ctx context.Context, state *chatmodel.Conversation, opts ...assistants.Option) (*chatmodel.Conversation, error) {
			assert.Equal(t, "s42", chatmodel.GetSessionID(ctx))
			assert.Len(t, opts, 1)
			next := state.Clone()
			next.Add(llms.MessageFromTextParts(llms.RoleAI, text))
			return next, nil
		}
	}

	first := runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(answer("5"))
	runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, state *chatmodel.Conversation, opts ...assistants.Option) (*chatmodel.Conversation, error) {
			// the previous turn was restored
			require.Equal(t, 3, state.Len())
			assert.Equal(t, "What is 2 + 3?", state.Messages[0].Text())
			assert.Equal(t, "And times 2?", state.Messages[2].Text())
			return answer("10")(ctx, state, opts...)
		}).After(first)

	st := store.NewMemoryStore()
	ts := httptest.NewServer(gateway.NewServer(gateway.DefaultConfig(), runner, st, nil))
	defer ts.Close()

	resp, body := post(t, ts.URL+"/v1/chat", `{"session_id":"s42","message":"What is 2 + 3?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = post(t, ts.URL+"/v1/chat?format=toml", `{"session_id":"s42","message":"And times 2?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/toml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `answer = "10"`)
	assert.Contains(t, string(body), `session_id = "s42"`)

	saved, err := st.Load(context.Background(), "s42")
	require.NoError(t, err)
	assert.Equal(t, 4, saved.Len())
}

func TestServer_ChatFailed(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		err    error
		status int
	}{
		{errors.Mark(errors.New("429 from provider"), llms.ErrRateLimited), http.StatusTooManyRequests},
		{errors.Mark(errors.New("deadline"), llms.ErrTimeout), http.StatusGatewayTimeout},
		{errors.Wrap(llms.ErrTurnLimitExceeded, "limit 25"), http.StatusUnprocessableEntity},
		{errors.WithStack(llms.ErrEmptyResponse), http.StatusBadGateway},
		{errors.WithStack(chatmodel.ErrInvalidConversation), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tcases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runner := mockassistants.NewMockRunner(ctrl)
			runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, state *chatmodel.Conversation, _ ...assistants.Option) (*chatmodel.Conversation, error) {
					return state.Clone(), tc.err
				})

			st := store.NewMemoryStore()
			ts := httptest.NewServer(gateway.NewServer(gateway.DefaultConfig(), runner, st, nil))
			defer ts.Close()

			resp, body := post(t, ts.URL+"/v1/chat", `{"session_id":"s1","message":"What is 2 + 3?"}`)
			assert.Equal(t, tc.status, resp.StatusCode)

			var res chatmodel.ChatResponse
			require.NoError(t, json.Unmarshal(body, &res))
			assert.Equal(t, tc.err.Error(), res.Error)
			assert.Len(t, res.Messages, 1)

			// failed turns are not saved
			ids, err := st.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestServer_ChatBadRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mockassistants.NewMockRunner(ctrl)
	ts := httptest.NewServer(gateway.NewServer(gateway.DefaultConfig(), runner, store.NewMemoryStore(), nil))
	defer ts.Close()

	resp, body := post(t, ts.URL+"/v1/chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"failed to unmarshal input: check the schema and try again"}`, string(body))

	resp, body = post(t, ts.URL+"/v1/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"message is required"}`, string(body))

	resp, _ = post(t, ts.URL+"/v1/chat?format=csv", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	r, err := http.Post(ts.URL+"/v1/chat", "text/plain", strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, err)
	_ = r.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, r.StatusCode)

	resp, _ = get(t, ts.URL+"/v1/chat")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_CORS(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(gateway.NewServer(gateway.DefaultConfig(), nil, store.NewMemoryStore(), nil))
	defer ts.Close()

	preflight := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/chat", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp
	}

	resp := preflight("http://localhost:3000")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "content-type", resp.Header.Get("Access-Control-Allow-Headers"))

	resp = preflight("http://evil.example.com")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
