package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

// persistTimeout bounds the status write that ends every unit of work.
const persistTimeout = 5 * time.Second

// maxReasonLen caps the failure text stored on an entry.
const maxReasonLen = 500

type enrichClient interface {
	Enrich(ctx context.Context, term, meaning string, timeout time.Duration) (domain.Enrichment, error)
}

// outcomeStore records the end of a processing entry. All writes apply
// only while the entry is still processing.
type outcomeStore interface {
	CompleteEnrichment(ctx context.Context, entryID uuid.UUID, e domain.Enrichment) error
	FailEnrichment(ctx context.Context, entryID uuid.UUID, reason string) error
	ReleaseEnrichment(ctx context.Context, entryID uuid.UUID) error
}

// errInterrupted marks work that stopped before the provider could answer.
var errInterrupted = errors.New("enrichment interrupted")

// worker enriches one processing entry and records the outcome.
type worker struct {
	client  enrichClient
	store   outcomeStore
	limiter *rate.Limiter
	timeout time.Duration
	log     *slog.Logger
}

func newWorker(logger *slog.Logger, client enrichClient, store outcomeStore, limiter *rate.Limiter, timeout time.Duration) *worker {
	return &worker{
		client:  client,
		store:   store,
		limiter: limiter,
		timeout: timeout,
		log:     logger,
	}
}

// run returns the entry in its final state. An enrichment failure is
// recorded as EntryStatusFailed and returned as an error wrapping
// domain.ErrEnrichmentUnavailable. Work cut short by ctx puts the entry back
// to pending and returns ctx's error. A store failure wraps domain.ErrPersistence.
func (w *worker) run(ctx context.Context, e domain.Entry) (domain.Entry, error) {
	result, enrichErr := w.enrich(ctx, e)

	// The outcome is written even when ctx is already done.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	now := time.Now().UTC()
	if enrichErr != nil && (ctx.Err() != nil || errors.Is(enrichErr, errInterrupted)) {
		if err := w.store.ReleaseEnrichment(persistCtx, e.ID); err != nil {
			w.log.ErrorContext(persistCtx, "release interrupted entry",
				slog.String("entry_id", e.ID.String()),
				slog.String("error", err.Error()),
			)
			return e, fmt.Errorf("enrichment.run: %w: %w", domain.ErrPersistence, err)
		}
		w.log.InfoContext(persistCtx, "enrichment interrupted, entry released",
			slog.String("entry_id", e.ID.String()),
		)
		e.Status = domain.EntryStatusPending
		e.UpdatedAt = now
		if cause := context.Cause(ctx); cause != nil {
			return e, fmt.Errorf("enrichment.run: %w: %w", errInterrupted, cause)
		}
		return e, fmt.Errorf("enrichment.run: %w", enrichErr)
	}
	if enrichErr != nil {
		reason := truncate(enrichErr.Error(), maxReasonLen)
		if err := w.store.FailEnrichment(persistCtx, e.ID, reason); err != nil {
			w.log.ErrorContext(ctx, "record enrichment failure",
				slog.String("entry_id", e.ID.String()),
				slog.String("error", err.Error()),
			)
			return e, fmt.Errorf("enrichment.run: %w: %w", domain.ErrPersistence, err)
		}
		e.Status = domain.EntryStatusFailed
		e.Enrichment = nil
		e.ErrorMessage = &reason
		e.UpdatedAt = now
		return e, enrichErr
	}

	if err := w.store.CompleteEnrichment(persistCtx, e.ID, result); err != nil {
		w.log.ErrorContext(ctx, "record enrichment result",
			slog.String("entry_id", e.ID.String()),
			slog.String("error", err.Error()),
		)
		return e, fmt.Errorf("enrichment.run: %w: %w", domain.ErrPersistence, err)
	}
	e.Status = domain.EntryStatusCompleted
	e.Enrichment = &result
	e.ErrorMessage = nil
	e.EnrichedAt = &now
	e.UpdatedAt = now
	return e, nil
}

func (w *worker) enrich(ctx context.Context, e domain.Entry) (domain.Enrichment, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return domain.Enrichment{}, fmt.Errorf("%w: rate limit wait: %w", errInterrupted, err)
		}
	}
	result, err := w.client.Enrich(ctx, e.Term, e.Translation, w.timeout)
	if err != nil {
		if !errors.Is(err, domain.ErrEnrichmentUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrEnrichmentUnavailable, err)
		}
		return domain.Enrichment{}, err
	}
	return result, nil
}

// NewLimiter converts a per-minute budget into a token bucket. A zero
// budget means unlimited and yields nil.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
