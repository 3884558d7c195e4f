package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kedb-platform/kedb/internal/config"
	logpkg "github.com/kedb-platform/kedb/internal/logger"
	"github.com/kedb-platform/kedb/internal/metrics"
	agentrepo "github.com/kedb-platform/kedb/internal/repository/agent"
	auditrepo "github.com/kedb-platform/kedb/internal/repository/audit"
	entryrepo "github.com/kedb-platform/kedb/internal/repository/entry"
	reviewrepo "github.com/kedb-platform/kedb/internal/repository/review"
	solutionrepo "github.com/kedb-platform/kedb/internal/repository/solution"
	tagrepo "github.com/kedb-platform/kedb/internal/repository/tag"
	"github.com/kedb-platform/kedb/internal/search"
	"github.com/kedb-platform/kedb/internal/store"
	chiTransport "github.com/kedb-platform/kedb/internal/transport/chi"
	agentuc "github.com/kedb-platform/kedb/internal/usecase/agent"
	audituc "github.com/kedb-platform/kedb/internal/usecase/audit"
	entryuc "github.com/kedb-platform/kedb/internal/usecase/entry"
	healthuc "github.com/kedb-platform/kedb/internal/usecase/health"
	reviewuc "github.com/kedb-platform/kedb/internal/usecase/review"
	searchuc "github.com/kedb-platform/kedb/internal/usecase/searching"
	soluc "github.com/kedb-platform/kedb/internal/usecase/solution"
	taguc "github.com/kedb-platform/kedb/internal/usecase/tag"
	"github.com/kedb-platform/kedb/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kedbd",
		Short:         "KEDB knowledge-error-database API server",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version.Version, version.Commit, version.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newInitIndexesCmd(), newReindexCmd())
	return root
}

// app is the composition root: every wired dependency of the binary.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *store.Store
	index  *search.Client

	entries   *entryuc.Service
	solutions *soluc.Service
	search    *searchuc.Service
	tags      *taguc.Service
	reviews   *reviewuc.Service
	audit     *audituc.Service
	agent     *agentuc.Service
	health    *healthuc.Service
}

func buildApp() (*app, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting kedbd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("search_url", cfg.Search.URL),
	)

	st, err := store.Open(store.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ctx := context.Background()
	if err := st.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		st.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	// Register indexing metrics explicitly (no init())
	metrics.RegisterIndexingMetrics()

	index := search.NewClient(search.Config{
		URL:     cfg.Search.URL,
		APIKey:  cfg.Search.APIKey,
		Timeout: time.Duration(cfg.Search.TimeoutSec) * time.Second,
	})

	db := st.DB()
	entryRepo := entryrepo.New(db)
	solutionRepo := solutionrepo.New(db)

	auditSvc := audituc.New(auditrepo.New(db), logger)
	entrySvc := entryuc.New(entryRepo, solutionRepo, index, auditSvc, logger).
		WithPagination(cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)
	solutionSvc := soluc.New(solutionRepo, entryRepo, index, auditSvc, logger)
	searchSvc := searchuc.New(index, entryRepo, solutionRepo, logger).
		WithPagination(cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)
	tagSvc := taguc.New(tagrepo.New(db), entryRepo)
	reviewSvc := reviewuc.New(reviewrepo.New(db), entryRepo)
	agentSvc := agentuc.New(agentrepo.New(db))
	healthSvc := healthuc.New(st, index)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		index:     index,
		entries:   entrySvc,
		solutions: solutionSvc,
		search:    searchSvc,
		tags:      tagSvc,
		reviews:   reviewSvc,
		audit:     auditSvc,
		agent:     agentSvc,
		health:    healthSvc,
	}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve()
		},
	}
}

func (a *app) serve() error {
	// Missing indexes block every write's propagation, so create them up
	// front. A down search backend only degrades search: log and continue.
	if err := a.search.EnsureIndexes(context.Background()); err != nil {
		a.logger.Warn("search indexes not ready", zap.Error(err))
	}

	server := chiTransport.NewServer(
		a.entries, a.solutions, a.search, a.tags, a.reviews, a.audit, a.agent, a.health, a.logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(a.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(a.logger))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Routes())

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
		a.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}

func newInitIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-indexes",
		Short: "Create the search indexes and push their settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.search.EnsureIndexes(cmd.Context()); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			a.logger.Info("Search indexes ready")
			return nil
		},
	}
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search indexes from the entity store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.search.Reindex(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			a.logger.Info("Reindex complete",
				zap.Int("entries_indexed", report.EntriesIndexed),
				zap.Int("solutions_indexed", report.SolutionsIndexed),
				zap.Int("failures", report.Failures),
			)
			return nil
		},
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
