// Command cleanup returns entries stuck in processing (left by a crashed
// server) to pending and removes stale upload temp files. It is intended to
// be invoked by an external cron job, not as an in-process goroutine.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/lexiflow-backend/internal/app"
	"github.com/heartmarshall/lexiflow-backend/internal/config"
	"github.com/heartmarshall/lexiflow-backend/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	threshold := time.Now().Add(-cfg.Enrichment.StuckAfter)

	reset, err := store.Entries.ResetProcessing(ctx, threshold)
	if err != nil {
		logger.Error("reset stuck entries failed",
			slog.String("error", err.Error()),
			slog.Time("threshold", threshold),
		)
		os.Exit(1)
	}

	swept, err := upload.NewStore(logger, cfg.Import.TempDir).Sweep(ctx, threshold)
	if err != nil {
		logger.Error("sweep uploads failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("cleanup completed",
		slog.Int("entries_reset", reset),
		slog.Int("uploads_removed", swept),
		slog.Time("threshold", threshold),
	)
}
