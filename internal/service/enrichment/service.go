// Package enrichment schedules and runs AI enrichment of book entries:
// eager background work after an import, on-demand requests, and batch drains.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

type entryRepo interface {
	outcomeStore
	// ClaimPending moves one pending entry owned by userID to processing.
	// It returns domain.ErrNotFound when there is nothing to claim.
	ClaimPending(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error)
	GetForUser(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error)
	ClaimPendingBatch(ctx context.Context, bookID *uuid.UUID, limit int) ([]domain.Entry, error)
	ResetProcessing(ctx context.Context, olderThan time.Time) (int, error)
	Stats(ctx context.Context, bookID uuid.UUID) (domain.EnrichmentStats, error)
}

// Service runs enrichment outside the import path.
type Service struct {
	log     *slog.Logger
	entries entryRepo
	worker  *worker
}

// NewService creates a new enrichment service. limiter may be nil.
func NewService(logger *slog.Logger, entries entryRepo, client enrichClient, limiter *rate.Limiter, timeout time.Duration) *Service {
	log := logger.With("service", "enrichment")
	return &Service{
		log:     log,
		entries: entries,
		worker:  newWorker(log, client, entries, limiter, timeout),
	}
}

// EnrichEntry enriches a pending entry synchronously. Entries in any other
// state are returned as they are without calling out.
func (s *Service) EnrichEntry(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error) {
	claimed, err := s.entries.ClaimPending(ctx, userID, entryID)
	if errors.Is(err, domain.ErrNotFound) {
		current, gerr := s.entries.GetForUser(ctx, userID, entryID)
		if gerr != nil {
			return nil, fmt.Errorf("enrichment.EnrichEntry: %w", gerr)
		}
		return current, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enrichment.EnrichEntry: %w: %w", domain.ErrPersistence, err)
	}

	done, err := s.worker.run(ctx, *claimed)
	if err != nil {
		return &done, fmt.Errorf("enrichment.EnrichEntry: %w", err)
	}
	s.log.InfoContext(ctx, "entry enriched on demand", slog.String("entry_id", entryID.String()))
	return &done, nil
}

// DrainResult summarises one DrainPending run.
type DrainResult struct {
	Claimed   int
	Completed int
	Failed    int
	// Released counts entries put back to pending because the drain was interrupted.
	Released int
}

// DrainPending claims up to limit pending entries (of one book when bookID
// is set) and enriches them with at most concurrency calls in flight.
// A store failure stops the drain; enrichment failures do not. When ctx ends
// mid-drain, entries not yet enriched go back to pending.
func (s *Service) DrainPending(ctx context.Context, bookID *uuid.UUID, limit, concurrency int) (DrainResult, error) {
	if limit <= 0 {
		limit = 50
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	batch, err := s.entries.ClaimPendingBatch(ctx, bookID, limit)
	if err != nil {
		return DrainResult{}, fmt.Errorf("enrichment.DrainPending: %w: %w", domain.ErrPersistence, err)
	}
	s.log.InfoContext(ctx, "claimed batch", slog.Int("count", len(batch)))

	var completed, failed, released atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, e := range batch {
		g.Go(func() error {
			_, err := s.worker.run(gctx, e)
			switch {
			case err == nil:
				completed.Add(1)
			case errors.Is(err, domain.ErrEnrichmentUnavailable):
				failed.Add(1)
			case errors.Is(err, errInterrupted):
				released.Add(1)
			default:
				return err
			}
			return nil
		})
	}

	res := DrainResult{Claimed: len(batch)}
	err = g.Wait()
	res.Completed = int(completed.Load())
	res.Failed = int(failed.Load())
	res.Released = int(released.Load())

	s.log.InfoContext(ctx, "drain finished",
		slog.Int("claimed", res.Claimed),
		slog.Int("completed", res.Completed),
		slog.Int("failed", res.Failed),
		slog.Int("released", res.Released),
	)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return res, fmt.Errorf("enrichment.DrainPending: %w", err)
	}
	return res, nil
}

// ResetProcessing returns entries stuck in processing since before
// olderThan to pending. It is meant for startup and cleanup runs.
func (s *Service) ResetProcessing(ctx context.Context, olderThan time.Time) (int, error) {
	n, err := s.entries.ResetProcessing(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("enrichment.ResetProcessing: %w: %w", domain.ErrPersistence, err)
	}
	if n > 0 {
		s.log.InfoContext(ctx, "reset stuck processing entries", slog.Int("count", n))
	}
	return n, nil
}

// Stats returns per-status entry counts of a book.
func (s *Service) Stats(ctx context.Context, bookID uuid.UUID) (domain.EnrichmentStats, error) {
	stats, err := s.entries.Stats(ctx, bookID)
	if err != nil {
		return domain.EnrichmentStats{}, fmt.Errorf("enrichment.Stats: %w: %w", domain.ErrPersistence, err)
	}
	return stats, nil
}
