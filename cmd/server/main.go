// Package main is the entry point of the UniSemi academic records API.
//
// The server wires the configured record store backend (memory, postgres or
// redis) behind the single-retry reconnect policy, starts the audit
// publisher and serves the HTTP API until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/KingMavin/UniSemi/config"
	"github.com/KingMavin/UniSemi/internal/application/command"
	"github.com/KingMavin/UniSemi/internal/application/query"
	"github.com/KingMavin/UniSemi/internal/domain/academic"
	"github.com/KingMavin/UniSemi/internal/domain/audit"
	"github.com/KingMavin/UniSemi/internal/infrastructure/external/gradecalc"
	"github.com/KingMavin/UniSemi/internal/infrastructure/messaging"
	"github.com/KingMavin/UniSemi/internal/infrastructure/metrics"
	"github.com/KingMavin/UniSemi/internal/infrastructure/persistence/memory"
	"github.com/KingMavin/UniSemi/internal/infrastructure/persistence/postgres"
	"github.com/KingMavin/UniSemi/internal/infrastructure/persistence/redis"
	"github.com/KingMavin/UniSemi/internal/infrastructure/persistence/resilient"
	httpapi "github.com/KingMavin/UniSemi/internal/interface/http"
	"github.com/KingMavin/UniSemi/internal/interface/http/handlers"
	"github.com/KingMavin/UniSemi/pkg/circuitbreaker"
	"github.com/KingMavin/UniSemi/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	slogger := log.Slog()
	slog.SetDefault(slogger)
	log.Info("starting UniSemi",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Backend(cfg.Store.Backend),
	)

	if !cfg.Observability.TracingEnabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. METRICS
	// ─────────────────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	policy := resilient.NewPolicy(cfg.Store.Backend, cfg.Store.ReconnectDelay,
		resilient.WithLogger(log),
		resilient.WithMetrics(m),
	)
	store := resilient.NewRecordStore(b.store, policy)
	sink := resilient.NewAuditSink(b.sink, policy)

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to provision record store: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. AUDIT & CALCULATOR
	// ─────────────────────────────────────────────────────────────────────────
	publisher := messaging.NewAuditPublisher(sink, messaging.AuditPublisherConfig{
		BufferSize:   cfg.Audit.BufferSize,
		WriteTimeout: cfg.Audit.WriteTimeout,
		DrainTimeout: cfg.Audit.DrainTimeout,
		Logger:       slogger,
		Metrics:      m,
	})

	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("store", handlers.NewPingCheck(store))

	var calculator academic.Calculator
	if cfg.Calculator.Path != "" {
		calc := gradecalc.New(gradecalc.Config{
			Path:             cfg.Calculator.Path,
			Args:             cfg.Calculator.Args,
			Timeout:          cfg.Calculator.Timeout,
			FailureThreshold: cfg.Calculator.FailureThreshold,
			OpenTimeout:      cfg.Calculator.OpenTimeout,
			Logger:           slogger,
			Metrics:          m,
		})
		checker.AddCheck("calculator", func(context.Context) error {
			if st := calc.State(); st != circuitbreaker.StateClosed {
				return fmt.Errorf("calculator breaker is %s", st)
			}
			return nil
		}, handlers.Optional())
		calculator = calc
		log.Info("external calculator enabled", logger.String("path", cfg.Calculator.Path))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	auth, err := newPasscodeAuth(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to set up admin passcode: %w", err)
	}

	server := httpapi.NewServer(httpapi.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimit,
		Version:            cfg.App.Version,
	}, httpapi.Dependencies{
		SaveResult: command.NewSaveResultHandler(store, calculator, publisher, command.SaveResultHandlerConfig{
			MaxAttempts: cfg.Store.ConflictAttempts,
			Metrics:     m,
			Logger:      log,
		}),
		DeleteStudent: command.NewDeleteStudentHandler(store, publisher, log),
		ClearAuditLog: command.NewClearAuditLogHandler(sink, publisher, publisher, log),
		GetStudent:    query.NewGetStudentHandler(store),
		ListStudents: query.NewListStudentsHandler(store,
			query.WithStudentLimits(cfg.Store.DefaultListLimit, cfg.Store.MaxListLimit)),
		ListSnapshots:  query.NewListSnapshotsHandler(store),
		ListAuditLog:   query.NewListAuditLogHandler(sink),
		Recorder:       publisher,
		Auth:           auth,
		HealthChecker:  checker,
		Metrics:        m,
		MetricsHandler: metricsHandler(cfg, reg),
		Logger:         log,
	})

	ln, err := net.Listen("tcp", cfg.HTTP.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTP.Addr(), err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. RUN UNTIL SIGNALLED
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Serve(ln)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("audit publisher: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown finished with errors", logger.Err(err))
		return err
	}

	log.Info("UniSemi stopped")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKENDS
// ══════════════════════════════════════════════════════════════════════════════

// backend is the raw store and sink of one configured backend.
type backend struct {
	store academic.RecordStore
	sink  audit.Sink
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	retention := cfg.Store.SnapshotRetention

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pgCfg := postgres.DefaultConfig(cfg.Database.URL)
		pgCfg.MaxConns = int32(cfg.Database.MaxConns)
		pgCfg.MinConns = int32(cfg.Database.MinConns)
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
		pgCfg.QueryTimeout = cfg.Database.QueryTimeout

		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}
		return &backend{
			store: postgres.NewRecordStore(conn, postgres.WithRetention(retention)),
			sink:  postgres.NewAuditSink(conn),
			close: func() {
				log.Info("closing database connection")
				conn.Close()
			},
		}, nil

	case config.BackendRedis:
		client, err := redis.NewClient(redis.Config{
			URL:          cfg.Redis.URL,
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		return &backend{
			store: redis.NewRecordStore(client, redis.WithRetention(retention)),
			sink:  redis.NewAuditSink(client),
			close: func() {
				log.Info("closing redis connection")
				_ = client.Close()
			},
		}, nil

	default:
		log.Warn("using in-memory store, data is lost on restart")
		return &backend{
			store: memory.NewRecordStore(memory.WithRetention(retention)),
			sink:  memory.NewAuditSink(),
			close: func() {},
		}, nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func newPasscodeAuth(cfg config.AuthConfig) (*handlers.PasscodeAuth, error) {
	if cfg.AdminPasscodeHash != "" {
		return handlers.NewPasscodeAuth([]byte(cfg.AdminPasscodeHash))
	}
	return handlers.NewPasscodeAuthFromPlain(cfg.AdminPasscode, 0)
}

func metricsHandler(cfg *config.Config, reg *prometheus.Registry) http.Handler {
	if !cfg.Observability.MetricsEnabled {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func setupLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    logger.ParseFormat(cfg.Observability.LogFormat),
		AddCaller: cfg.App.Debug,
	}).With(logger.String("service", cfg.App.Name))
}
