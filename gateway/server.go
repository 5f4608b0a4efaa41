package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CodeSistency/agentTemplate/assistants"
	"github.com/CodeSistency/agentTemplate/callbacks"
	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/encoding"
	jsonenc "github.com/CodeSistency/agentTemplate/encoding/json"
	"github.com/CodeSistency/agentTemplate/mcp"
	"github.com/CodeSistency/agentTemplate/mcp/httptransport"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/store"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/gorilla/mux"
)

var logger = xlog.NewPackageLogger("github.com/CodeSistency/agentTemplate", "gateway")

// ServiceName is reported by the health check
const ServiceName = "TestAgent Gateway"

// MaxBodySize limits the size of a chat request
const MaxBodySize = 1 << 20

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// ChatList is returned by GET /v1/chats
type ChatList struct {
	Chats []string `json:"chats"`
}

// Server serves the agent over HTTP
type Server struct {
	cfg    *Config
	runner assistants.Runner
	store  store.ConversationStore
	tools  *mcp.Server
	json   *jsonenc.Encoder
	router *mux.Router
}

// NewServer returns the Server, tools may be nil to disable the /mcp endpoint
func NewServer(cfg *Config, runner assistants.Runner, st store.ConversationStore, tools *mcp.Server) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		store:  st,
		tools:  tools,
		json:   jsonenc.NewEncoder(),
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	r.HandleFunc("/", s.index).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/chat", s.chat).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/chats", s.listChats).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/chats/{session_id}", s.getChat).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/chats/{session_id}", s.deleteChat).Methods(http.MethodDelete)
	if s.tools != nil {
		r.Handle("/mcp", httptransport.Handler(s.tools)).Methods(http.MethodPost, http.MethodOptions)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexHTML)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, &HealthResponse{
		Status:  "ok",
		Service: ServiceName,
		Version: Version,
	})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enc, err := responseEncoder(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !contentTypeIs(r, "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, "expected application/json")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var req chatmodel.ChatRequest
	if err = s.json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, chatmodel.ErrFailedUnmarshalInput.Error())
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err = s.json.Validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	conv, err := store.LoadOrNew(ctx, s.store, req.SessionID)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "load", "session", req.SessionID, "err", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(conv.SessionID, r.Header.Get(HeaderRequestID)))
	rec := callbacks.NewRecorder()
	cb := callbacks.NewFanout(rec, callbacks.NewPackageLogger(logger))

	next := conv.Clone()
	next.Add(llms.MessageFromTextParts(llms.RoleHuman, req.Message))
	final, err := s.runner.Run(ctx, next, assistants.WithCallback(cb))

	resp := &chatmodel.ChatResponse{
		SessionID: conv.SessionID,
		Events:    rec.Events(),
	}
	if final != nil {
		resp.Answer = final.FinalAnswer()
		resp.Messages = final.Messages
	}

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = err.Error()
	} else if err = s.store.Save(ctx, final); err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "save", "session", conv.SessionID, "err", err.Error())
		status = http.StatusInternalServerError
		resp.Error = "failed to save conversation"
	}
	s.writeResponse(w, enc, status, resp)
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		logger.ContextKV(r.Context(), xlog.ERROR, "reason", "list", "err", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, &ChatList{Chats: ids})
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	enc, err := responseEncoder(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := mux.Vars(r)["session_id"]
	conv, err := s.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "load", "session", id, "err", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	s.writeResponse(w, enc, http.StatusOK, &chatmodel.ChatResponse{
		SessionID: conv.SessionID,
		Answer:    conv.FinalAnswer(),
		Messages:  conv.Messages,
	})
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session_id"]
	if err := s.store.Delete(r.Context(), id); err != nil {
		logger.ContextKV(r.Context(), xlog.ERROR, "reason", "delete", "session", id, "err", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeResponse writes the ChatResponse as JSON,
// or as a transcript when another format was requested.
func (s *Server) writeResponse(w http.ResponseWriter, enc encoding.Encoder, status int, resp *chatmodel.ChatResponse) {
	if enc == nil {
		writeJSON(w, status, resp)
		return
	}
	body, err := enc.Marshal(encoding.NewTranscript(resp))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode transcript")
		return
	}
	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// responseEncoder returns the transcript encoder for ?format=, nil for JSON
func responseEncoder(r *http.Request) (encoding.Encoder, error) {
	format := r.URL.Query().Get("format")
	if format == "" {
		return nil, nil
	}
	return encoding.NewEncoder(format)
}

// statusFor maps a failed turn to the response status
func statusFor(err error) int {
	switch {
	case errors.Is(err, llms.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, llms.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, llms.ErrTurnLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, llms.ErrEmptyResponse):
		return http.StatusBadGateway
	case errors.Is(err, assistants.ErrNoHumanMessage), errors.Is(err, chatmodel.ErrInvalidConversation),
		errors.Is(err, chatmodel.ErrInvalidChatContext):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		// client closed request
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// RunCleanup removes the conversations not updated within olderThan,
// every interval until ctx is done.
func RunCleanup(ctx context.Context, st store.ConversationStore, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := st.Cleanup(ctx, olderThan)
			if err != nil {
				logger.ContextKV(ctx, xlog.ERROR, "reason", "cleanup", "err", err.Error())
				continue
			}
			if count > 0 {
				logger.ContextKV(ctx, xlog.DEBUG, "status", "cleanup", "deleted", count)
			}
		}
	}
}
