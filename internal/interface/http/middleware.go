package http

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KingMavin/UniSemi/internal/interface/http/handlers"
	"github.com/KingMavin/UniSemi/pkg/logger"
)

const (
	headerRequestID  = "X-Request-ID"
	maxRequestIDSize = 128
)

type contextKey struct{}

// middleware wraps next in the request pipeline, outermost first. CORS and
// rate limiting are only present when configured.
func (s *Server) middleware(next http.Handler) http.Handler {
	chain := []handlers.MiddlewareFunc{s.withRequestID, s.withAccessLog, s.recoveryMiddleware}
	if len(s.config.AllowedOrigins) > 0 {
		chain = append(chain, s.withCORS)
	}
	if s.limiter != nil {
		chain = append(chain, s.withRateLimit)
	}
	chain = append(chain,
		handlers.SecurityHeadersMiddleware,
		handlers.NoCacheMiddleware,
		handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes),
	)
	return handlers.Chain(chain...)(next)
}

// withRequestID honours a sane inbound X-Request-ID or mints one, and puts
// a logger carrying it into the request context.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > maxRequestIDSize {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		ctx := context.WithValue(r.Context(), contextKey{}, id)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrapResponseWriter(w)
		next.ServeHTTP(rw, r)

		log := logger.FromContext(r.Context())
		emit := log.Info
		if rw.statusCode >= http.StatusInternalServerError {
			emit = log.Warn
		}
		emit("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.statusCode),
			logger.Latency(time.Since(start)),
			logger.String("ip", getClientIP(r)),
		)
	})
}

// recoveryMiddleware turns a handler panic into a 500 envelope.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.FromContext(r.Context()).Error("panic recovered",
				logger.Any("panic", rec),
				logger.String("path", r.URL.Path),
				logger.String("stack", string(debug.Stack())),
			)
			s.writeError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return origin != "" &&
		(slices.Contains(s.config.AllowedOrigins, "*") || slices.Contains(s.config.AllowedOrigins, origin))
}

// withCORS answers preflight requests and reflects allowed origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+headerRequestID)
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	retryAfter := strconvSeconds(s.limiter.window)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter.Allow(getClientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", retryAfter)
		s.writeError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
	})
}

// admin guards h with the Bearer passcode.
func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := handlers.BearerToken(r)
		switch {
		case !ok:
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
		case s.deps.Auth == nil || !s.deps.Auth.Verify(token):
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid passcode")
		default:
			h(w, r)
		}
	}
}

// responseWriter remembers the status code written through it.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the peer address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
