package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

// SchedulerConfig holds the eager enrichment knobs.
type SchedulerConfig struct {
	// EagerCount is how many leading entries of an import are enriched
	// in the background right after it commits.
	EagerCount int
	// Timeout bounds each enrichment call.
	Timeout time.Duration
}

// Scheduler decides which entries of a fresh import are enriched eagerly
// and hands them to the pool.
type Scheduler struct {
	pool   *Pool
	worker *worker
	store  outcomeStore
	eager  int
	log    *slog.Logger
}

// NewScheduler creates a Scheduler. limiter may be nil.
func NewScheduler(logger *slog.Logger, pool *Pool, client enrichClient, store outcomeStore, limiter *rate.Limiter, cfg SchedulerConfig) *Scheduler {
	log := logger.With("service", "enrichment.scheduler")
	eager := cfg.EagerCount
	if eager < 0 {
		eager = 0
	}
	return &Scheduler{
		pool:   pool,
		worker: newWorker(log, client, store, limiter, cfg.Timeout),
		store:  store,
		eager:  eager,
		log:    log,
	}
}

// Plan marks the first min(len(entries), EagerCount) entries processing and
// every other entry pending. It returns the number marked processing.
// Plan only touches the slice; the caller persists it.
func (s *Scheduler) Plan(entries []domain.Entry) int {
	k := min(len(entries), s.eager)
	for i := range entries {
		if i < k {
			entries[i].Status = domain.EntryStatusProcessing
		} else {
			entries[i].Status = domain.EntryStatusPending
		}
	}
	return k
}

// Dispatch submits one background job per processing entry and returns how
// many were accepted. Entries the pool cannot take are put back to pending,
// in the store and in entries, so they stay reachable for on-demand enrichment.
func (s *Scheduler) Dispatch(ctx context.Context, entries []domain.Entry) int {
	accepted := 0
	for i := range entries {
		e := entries[i]
		if e.Status != domain.EntryStatusProcessing {
			continue
		}
		err := s.pool.TrySubmit(func(jobCtx context.Context) {
			_, err := s.worker.run(jobCtx, e)
			switch {
			case err == nil:
			case errors.Is(err, errInterrupted):
				s.log.InfoContext(jobCtx, "background enrichment interrupted",
					slog.String("entry_id", e.ID.String()),
				)
			default:
				s.log.WarnContext(jobCtx, "background enrichment ended in failure",
					slog.String("entry_id", e.ID.String()),
					slog.String("term", e.Term),
					slog.String("error", err.Error()),
				)
			}
		})
		if err == nil {
			accepted++
			continue
		}

		s.log.WarnContext(ctx, "enrichment not scheduled",
			slog.String("entry_id", e.ID.String()),
			slog.String("reason", err.Error()),
		)
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		if rerr := s.store.ReleaseEnrichment(releaseCtx, e.ID); rerr != nil {
			s.log.ErrorContext(ctx, "release entry to pending",
				slog.String("entry_id", e.ID.String()),
				slog.String("error", rerr.Error()),
			)
		} else {
			entries[i].Status = domain.EntryStatusPending
		}
		cancel()
	}

	if accepted > 0 {
		s.log.InfoContext(ctx, "enrichment dispatched", slog.Int("count", accepted))
	}
	return accepted
}
