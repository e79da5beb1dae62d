// Package http exposes the academic record service as a JSON REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/KingMavin/UniSemi/internal/application/command"
	"github.com/KingMavin/UniSemi/internal/application/query"
	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/infrastructure/metrics"
	"github.com/KingMavin/UniSemi/internal/interface/http/handlers"
	"github.com/KingMavin/UniSemi/pkg/logger"
)

// Config controls the listener and the request pipeline.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// MaxBodyBytes caps request bodies; larger bodies are rejected with 400.
	MaxBodyBytes int64

	// AllowedOrigins lists CORS origins; "*" allows any. Empty turns CORS
	// handling off.
	AllowedOrigins []string

	// RateLimitPerMinute is the per-client request budget. Zero disables
	// limiting.
	RateLimitPerMinute int

	// Version is echoed in every response's meta block.
	Version string
}

// DefaultConfig returns the settings the server runs with when nothing is
// configured.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               5000,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        time.Minute,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       1 << 20,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
		Version:            "v1",
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Dependencies are the application handlers and collaborators behind the
// routes. Nil Metrics and MetricsHandler are allowed.
type Dependencies struct {
	SaveResult    *command.SaveResultHandler
	DeleteStudent *command.DeleteStudentHandler
	ClearAuditLog *command.ClearAuditLogHandler

	GetStudent    *query.GetStudentHandler
	ListStudents  *query.ListStudentsHandler
	ListSnapshots *query.ListSnapshotsHandler
	ListAuditLog  *query.ListAuditLogHandler

	// Recorder receives LOGIN_FAILED entries.
	Recorder audit.Recorder

	// Auth guards the admin routes. Nil rejects every admin request.
	Auth *handlers.PasscodeAuth

	HealthChecker handlers.HealthChecker

	Metrics        *metrics.Metrics
	MetricsHandler http.Handler

	Logger *logger.Logger
}

// Server is the HTTP front of the record service.
type Server struct {
	config     Config
	deps       Dependencies
	logger     *logger.Logger
	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
	limiter    *rateLimiter

	// startedAt is the UnixNano of the current Serve call, zero when idle.
	startedAt atomic.Int64
}

// NewServer builds the routes and middleware. Call Serve or Start to accept
// connections.
func NewServer(config Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: log.With(logger.Component("http")),
		mux:    http.NewServeMux(),
	}
	if config.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.routes()
	s.handler = s.middleware(s.mux)
	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler returns the router wrapped in the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	s.handle("GET /health", s.handleHealth)
	s.handle("GET /health/live", s.handleLive)
	s.handle("GET /health/ready", s.handleReady)
	s.handle("GET /{$}", s.handleRoot)

	s.handle("POST /api/login", s.handleLogin)
	s.handle("GET /api/results/{matric}", s.handleGetResult)

	s.handle("GET /api/students", s.admin(s.handleListStudents))
	s.handle("POST /api/results", s.admin(s.handleSaveResult))
	s.handle("DELETE /api/results/{matric}", s.admin(s.handleDeleteResult))
	s.handle("GET /api/results/{matric}/snapshots", s.admin(s.handleListSnapshots))
	s.handle("GET /api/logs", s.admin(s.handleListLogs))
	s.handle("DELETE /api/logs", s.admin(s.handleClearLogs))

	if s.deps.MetricsHandler != nil {
		s.mux.Handle("GET /metrics", s.deps.MetricsHandler)
	}
}

// handle registers h and counts its requests under the route pattern, so
// /api/results/A1 and /api/results/B2 share one series.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	method, route, _ := strings.Cut(pattern, " ")
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrapResponseWriter(w)
		h(rw, r)
		s.deps.Metrics.ObserveHTTP(method, route, rw.statusCode, time.Since(start))
	})
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. A Serve that starts after
// Shutdown returns nil immediately.
func (s *Server) Serve(ln net.Listener) error {
	if !s.startedAt.CompareAndSwap(0, time.Now().UnixNano()) {
		return errors.New("server already running")
	}
	defer s.startedAt.Store(0)

	s.logger.Info("starting HTTP server", logger.String("address", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.IsRunning() {
		s.logger.Info("shutting down HTTP server")
	}
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether Serve is accepting connections.
func (s *Server) IsRunning() bool {
	return s.startedAt.Load() != 0
}

// Uptime returns how long the current Serve call has run.
func (s *Server) Uptime() time.Duration {
	started := s.startedAt.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started))
}
