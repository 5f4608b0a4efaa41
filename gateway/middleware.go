package gateway

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CodeSistency/agentTemplate/pkg/metricskey"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

// HeaderRequestID is the header carrying the request correlation ID
const HeaderRequestID = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestIDMiddleware assigns a request ID when the caller did not send one
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(HeaderRequestID, id)
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs every request and recovers from handler panics
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := r.Context()
		route := routeName(r)

		defer func() {
			if v := recover(); v != nil {
				logger.ContextKV(ctx, xlog.ERROR,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", r.Header.Get(HeaderRequestID),
					"panic", v,
				)
				writeError(rec, http.StatusInternalServerError, "internal server error")
			}

			metricskey.PerfHTTPRequest.MeasureSince(started, r.Method, route)
			metricskey.StatsHTTPRequests.IncrCounter(1, r.Method, route, strconv.Itoa(rec.status))

			level := xlog.INFO
			if rec.status >= http.StatusInternalServerError {
				level = xlog.ERROR
			}
			logger.ContextKV(ctx, level,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"request_id", r.Header.Get(HeaderRequestID),
				"duration", time.Since(started).String(),
			)
		}()

		next.ServeHTTP(rec, r)
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// corsMiddleware allows the configured origins, "*" allows any
func corsMiddleware(origins []string) mux.MiddlewareFunc {
	allowAny := lo.Contains(origins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAny || lo.Contains(origins, origin)) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", lo.Ternary(
					r.Header.Get("Access-Control-Request-Headers") != "",
					r.Header.Get("Access-Control-Request-Headers"),
					"Content-Type, Authorization",
				))
				h.Set("Access-Control-Expose-Headers", HeaderRequestID)
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// contentTypeIs returns true if the request body has the media type
func contentTypeIs(r *http.Request, mediaType string) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	typ, _, _ := strings.Cut(ct, ";")
	return strings.EqualFold(strings.TrimSpace(typ), mediaType)
}
