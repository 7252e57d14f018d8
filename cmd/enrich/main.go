// Command enrich drains pending entries: it claims them in document order
// and enriches each with the configured AI provider. Without -book it works
// across all books.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/lexiflow-backend/internal/app"
	"github.com/heartmarshall/lexiflow-backend/internal/config"
	"github.com/heartmarshall/lexiflow-backend/internal/service/enrichment"
)

func main() {
	bookFlag := flag.String("book", "", "book ID to drain (default: all books)")
	limit := flag.Int("limit", 50, "maximum entries to claim")
	concurrency := flag.Int("concurrency", 2, "parallel enrichment calls")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	var bookID *uuid.UUID
	if *bookFlag != "" {
		id, err := uuid.Parse(*bookFlag)
		if err != nil {
			logger.Error("invalid -book", slog.String("value", *bookFlag))
			os.Exit(1)
		}
		bookID = &id
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	client, err := app.NewEnrichClient(cfg.Enrichment, logger)
	if err != nil {
		logger.Error("create enrichment client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	limiter := enrichment.NewLimiter(cfg.Enrichment.RequestsPerMinute, cfg.Enrichment.Burst)
	svc := enrichment.NewService(logger, store.Entries, client, limiter, cfg.Enrichment.Timeout)

	res, err := svc.DrainPending(ctx, bookID, *limit, *concurrency)
	if err != nil {
		logger.Error("drain failed",
			slog.String("error", err.Error()),
			slog.Int("claimed", res.Claimed),
			slog.Int("completed", res.Completed),
			slog.Int("released", res.Released),
		)
		os.Exit(1)
	}

	logger.Info("drain completed",
		slog.Int("claimed", res.Claimed),
		slog.Int("completed", res.Completed),
		slog.Int("failed", res.Failed),
	)

	if bookID != nil {
		stats, err := svc.Stats(ctx, *bookID)
		if err != nil {
			logger.Warn("book stats", slog.String("error", err.Error()))
			return
		}
		logger.Info("book status",
			slog.String("book_id", bookID.String()),
			slog.Int("pending", stats.Pending),
			slog.Int("processing", stats.Processing),
			slog.Int("completed", stats.Completed),
			slog.Int("failed", stats.Failed),
			slog.Int("total", stats.Total),
		)
	}
}
