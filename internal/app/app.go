package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/heartmarshall/lexiflow-backend/internal/auth"
	"github.com/heartmarshall/lexiflow-backend/internal/config"
	"github.com/heartmarshall/lexiflow-backend/internal/domain"
	"github.com/heartmarshall/lexiflow-backend/internal/service/enrichment"
	"github.com/heartmarshall/lexiflow-backend/internal/service/importer"
	"github.com/heartmarshall/lexiflow-backend/internal/transport/middleware"
	"github.com/heartmarshall/lexiflow-backend/internal/transport/rest"
	"github.com/heartmarshall/lexiflow-backend/internal/upload"
)

// Run is the application entry point. It loads configuration, connects the
// store, starts the enrichment pool and serves HTTP until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("database", cfg.Database.Driver),
		slog.String("pdf_engine", cfg.PDF.Engine),
		slog.String("enrichment_provider", cfg.Enrichment.Provider),
	)

	store, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := NewEnrichClient(cfg.Enrichment, logger)
	if err != nil {
		return err
	}
	limiter := enrichment.NewLimiter(cfg.Enrichment.RequestsPerMinute, cfg.Enrichment.Burst)

	enrichSvc := enrichment.NewService(logger, store.Entries, client, limiter, cfg.Enrichment.Timeout)
	if n, err := enrichSvc.ResetProcessing(ctx, time.Now().Add(-cfg.Enrichment.StuckAfter)); err != nil {
		logger.Warn("reset stuck entries", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("stuck entries returned to pending", slog.Int("count", n))
	}

	pool := enrichment.NewPool(logger,
		enrichment.WithWorkers(cfg.Enrichment.Workers),
		enrichment.WithQueueSize(cfg.Enrichment.QueueSize),
	)
	pool.Start()
	scheduler := enrichment.NewScheduler(logger, pool, client, store.Entries, limiter, enrichment.SchedulerConfig{
		EagerCount: cfg.Enrichment.EagerCount,
		Timeout:    cfg.Enrichment.Timeout,
	})

	extractor, err := NewExtractor(cfg.WordList, cfg.PDF.Engine, logger)
	if err != nil {
		return err
	}
	uploads := upload.NewStore(logger, cfg.Import.TempDir)

	importSvc := importer.NewService(logger,
		importer.Config{
			MaxUploadBytes: cfg.Import.MaxUploadBytes,
			DefaultMode:    domain.DirectionMode(cfg.Import.DefaultMode),
		},
		store.Tx, store.Books, store.Entries, uploads, extractor, scheduler,
	)

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)

	rateLimiter := middleware.NewRateLimiter(time.Minute)
	defer rateLimiter.Stop()
	var importLimit middleware.Middleware
	if cfg.Import.RateLimitPerMinute > 0 {
		importLimit = rateLimiter.Limit(cfg.Import.RateLimitPerMinute)
	}

	handler := rest.NewRouter(rest.RouterConfig{
		Health:  rest.NewHealthHandler(store, BuildVersion()),
		Import:  rest.NewImportHandler(importSvc, cfg.Import.MaxUploadBytes, logger),
		Entries: rest.NewEntryHandler(enrichSvc, logger),
		Global: []middleware.Middleware{
			middleware.RequestID,
			middleware.Logger(logger),
			middleware.Recovery(logger),
			middleware.CORS(cfg.CORS),
			middleware.Auth(tokens),
		},
		ImportLimit: importLimit,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", slog.String("error", err.Error()))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn("enrichment pool stopped before draining", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}
