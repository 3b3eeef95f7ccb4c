package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/floorsync/floorsync/internal/liveness"
	"github.com/floorsync/floorsync/internal/metrics"
)

// AuthHeader carries the shared LAN key. The same token is accepted as the
// `key` query parameter for callers whose fetch layer cannot set custom
// headers without tripping a CORS preflight.
const AuthHeader = "X-FloorSync-Key"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares outermost-first: the first argument sees the
// request first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type contextKey string

const requestIDKey contextKey = "requestID"

// Liveness records every inbound request in the peer table before anything
// else runs, so even callers the auth gate rejects are visible to the
// operator.
func Liveness(tracker *liveness.Tracker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracker.Touch(r.RemoteAddr, false)
			next.ServeHTTP(w, r)
		})
	}
}

// CORS sets permissive headers on every response and answers preflights. The
// service is LAN-local; origin restrictions buy nothing here and break the
// tablet shim.
func CORS() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+AuthHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID attaches an id to the response header and request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDFrom returns the request id, if any.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// statusResponseWriter wraps http.ResponseWriter to capture the written
// status code.
type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusResponseWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusResponseWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging logs method, path, status, duration and caller for each request
// and feeds the request counter.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"request_id", requestIDFrom(r.Context()),
			)
		})
	}
}

// Auth gates every path under /jobs or /db behind the shared LAN key.
//
// keyFn is read per request so a key saved through the settings API applies
// without a restart. An empty key means open mode: every caller is
// authorized.
func Auth(keyFn func() string, tracker *liveness.Tracker, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !needsAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			configured := strings.TrimSpace(keyFn())
			if configured == "" {
				tracker.Touch(r.RemoteAddr, true)
				next.ServeHTTP(w, r)
				return
			}

			provided := strings.TrimSpace(r.Header.Get(AuthHeader))
			if provided == "" {
				provided = strings.TrimSpace(r.URL.Query().Get("key"))
			}
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
				metrics.AuthRejectionsTotal.Inc()
				logger.Warn("unauthorized request", "remote", r.RemoteAddr, "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			tracker.Touch(r.RemoteAddr, true)
			next.ServeHTTP(w, r)
		})
	}
}

func needsAuth(path string) bool {
	return strings.HasPrefix(path, "/jobs") || strings.HasPrefix(path, "/db")
}
