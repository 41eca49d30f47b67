package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bizops/internal/domain/audit"
	"bizops/internal/domain/auth"
	"bizops/internal/domain/funds"
	"bizops/internal/domain/kpi"
	"bizops/internal/domain/monthly"
	"bizops/internal/domain/notifications"
	"bizops/internal/domain/reports"
	"bizops/internal/domain/subjects"
	"bizops/internal/platform/config"
	"bizops/internal/platform/db"
	"bizops/internal/platform/email"
	"bizops/internal/platform/jobs"
	"bizops/internal/platform/logging"
	"bizops/internal/platform/metrics"
	audithandler "bizops/internal/transport/http/handlers/audit"
	authhandler "bizops/internal/transport/http/handlers/auth"
	fundshandler "bizops/internal/transport/http/handlers/funds"
	kpihandler "bizops/internal/transport/http/handlers/kpi"
	monthlyhandler "bizops/internal/transport/http/handlers/monthly"
	notificationshandler "bizops/internal/transport/http/handlers/notifications"
	reportshandler "bizops/internal/transport/http/handlers/reports"
	subjectshandler "bizops/internal/transport/http/handlers/subjects"
	"bizops/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Metrics *metrics.Collector
}

// New connects to Postgres, applies migrations and seed data when enabled
// and builds the HTTP router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	if purged, err := middleware.NewIdempotencyStore(pool, middleware.DefaultIdempotencyTTL).Purge(ctx); err != nil {
		slog.Warn("idempotency purge failed", "err", err)
	} else if purged > 0 {
		slog.Info("expired idempotency keys purged", "count", purged)
	}

	collector := metrics.New()
	app := &App{Config: cfg, DB: pool, Metrics: collector}
	app.Router = app.routes(policy)
	return app, nil
}

func (a *App) routes(policy config.Policy) http.Handler {
	cfg := a.Config
	pool := a.DB

	authSvc := auth.NewService(auth.NewStore(pool), cfg.JWTSecret, cfg.TokenTTL)
	auditSvc := audit.New(pool)
	subjectSvc := subjects.NewService(subjects.NewStore(pool))
	monthlySvc := monthly.NewService(monthly.NewStore(pool), monthly.NewCalculator(policy), jobs.New(pool), a.Metrics)
	kpiSvc := kpi.NewService(kpi.NewStore(pool), policy)
	fundsSvc := funds.NewService(funds.NewStore(pool))
	notifySvc := notifications.New(notifications.NewStore(pool), email.New(cfg), cfg.Contact, cfg.EmailFrom)
	reportsSvc := reports.NewService(reports.NewStore(pool), monthlySvc, cfg.Contact)
	idempotency := middleware.NewIdempotencyStore(pool, middleware.DefaultIdempotencyTTL)
	perms := middleware.NewCachedPermissions(authSvc, time.Minute)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(a.Metrics))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", a.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.WithObserver(a.Metrics)))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.WithObserver(a.Metrics)))

		authhandler.NewHandler(authSvc).RegisterRoutes(r)
		subjectshandler.NewHandler(subjectSvc, perms, auditSvc).RegisterRoutes(r)
		kpihandler.NewHandler(kpiSvc, perms, auditSvc).RegisterRoutes(r)
		monthlyhandler.NewHandler(monthlySvc, subjectSvc, notifySvc, perms, auditSvc, idempotency).RegisterRoutes(r)
		fundshandler.NewHandler(fundsSvc, perms, auditSvc).RegisterRoutes(r)
		reportshandler.NewHandler(reportsSvc, perms).RegisterRoutes(r)
		notificationshandler.NewHandler(notifySvc, perms, auditSvc).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc, perms).RegisterRoutes(r)
	})

	return router
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run loads configuration from the environment and serves until SIGINT or
// SIGTERM.
func Run() error {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
