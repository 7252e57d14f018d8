package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type enrichClientMock struct {
	EnrichFunc func(ctx context.Context, term, meaning string, timeout time.Duration) (domain.Enrichment, error)
	calls      atomic.Int32
}

func (m *enrichClientMock) Enrich(ctx context.Context, term, meaning string, timeout time.Duration) (domain.Enrichment, error) {
	m.calls.Add(1)
	if m.EnrichFunc != nil {
		return m.EnrichFunc(ctx, term, meaning, timeout)
	}
	return domain.Enrichment{Detail: "d:" + term, ExampleEN: "e", ExampleCN: "c"}, nil
}

type mockEntryRepo struct {
	completeFn     func(ctx context.Context, id uuid.UUID, e domain.Enrichment) error
	failFn         func(ctx context.Context, id uuid.UUID, reason string) error
	releaseFn      func(ctx context.Context, id uuid.UUID) error
	claimPendingFn func(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error)
	getForUserFn   func(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error)
	claimBatchFn   func(ctx context.Context, bookID *uuid.UUID, limit int) ([]domain.Entry, error)
	resetFn        func(ctx context.Context, olderThan time.Time) (int, error)
	statsFn        func(ctx context.Context, bookID uuid.UUID) (domain.EnrichmentStats, error)

	mu        sync.Mutex
	completed map[uuid.UUID]domain.Enrichment
	failed    map[uuid.UUID]string
	released  []uuid.UUID
}

func newMockEntryRepo() *mockEntryRepo {
	return &mockEntryRepo{
		completed: make(map[uuid.UUID]domain.Enrichment),
		failed:    make(map[uuid.UUID]string),
	}
}

func (m *mockEntryRepo) CompleteEnrichment(ctx context.Context, id uuid.UUID, e domain.Enrichment) error {
	if m.completeFn != nil {
		if err := m.completeFn(ctx, id, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[id] = e
	return nil
}

func (m *mockEntryRepo) FailEnrichment(ctx context.Context, id uuid.UUID, reason string) error {
	if m.failFn != nil {
		if err := m.failFn(ctx, id, reason); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = reason
	return nil
}

func (m *mockEntryRepo) ReleaseEnrichment(ctx context.Context, id uuid.UUID) error {
	if m.releaseFn != nil {
		if err := m.releaseFn(ctx, id); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, id)
	return nil
}

func (m *mockEntryRepo) ClaimPending(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error) {
	return m.claimPendingFn(ctx, userID, entryID)
}

func (m *mockEntryRepo) GetForUser(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error) {
	return m.getForUserFn(ctx, userID, entryID)
}

func (m *mockEntryRepo) ClaimPendingBatch(ctx context.Context, bookID *uuid.UUID, limit int) ([]domain.Entry, error) {
	return m.claimBatchFn(ctx, bookID, limit)
}

func (m *mockEntryRepo) ResetProcessing(ctx context.Context, olderThan time.Time) (int, error) {
	return m.resetFn(ctx, olderThan)
}

func (m *mockEntryRepo) Stats(ctx context.Context, bookID uuid.UUID) (domain.EnrichmentStats, error) {
	return m.statsFn(ctx, bookID)
}

func (m *mockEntryRepo) snapshot() (completed map[uuid.UUID]domain.Enrichment, failed map[uuid.UUID]string, released []uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	completed = make(map[uuid.UUID]domain.Enrichment, len(m.completed))
	for k, v := range m.completed {
		completed[k] = v
	}
	failed = make(map[uuid.UUID]string, len(m.failed))
	for k, v := range m.failed {
		failed[k] = v
	}
	return completed, failed, append([]uuid.UUID(nil), m.released...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeEntries(n int) []domain.Entry {
	pairs := make([]domain.Pair, n)
	for i := range pairs {
		pairs[i] = domain.Pair{Term: "word" + string(rune('a'+i%26)), Translation: "词"}
	}
	return domain.NewEntries(uuid.New(), pairs, time.Now())
}

// ---------------------------------------------------------------------------
// Pool
// ---------------------------------------------------------------------------

func TestPool_RunsJobs(t *testing.T) {
	t.Parallel()

	p := NewPool(newTestLogger(), WithWorkers(3), WithQueueSize(10))
	p.Start()

	var n atomic.Int32
	for range 10 {
		require.NoError(t, p.TrySubmit(func(context.Context) { n.Add(1) }))
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(10), n.Load())
}

func TestPool_QueueFull(t *testing.T) {
	t.Parallel()

	p := NewPool(newTestLogger(), WithWorkers(1), WithQueueSize(1))
	p.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, p.TrySubmit(func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, p.TrySubmit(func(context.Context) {}))
	assert.ErrorIs(t, p.TrySubmit(func(context.Context) {}), ErrQueueFull)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_ClosedAfterShutdown(t *testing.T) {
	t.Parallel()

	p := NewPool(newTestLogger())
	p.Start()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.ErrorIs(t, p.TrySubmit(func(context.Context) {}), ErrPoolClosed)
	assert.NoError(t, p.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestPool_ShutdownDeadlineCancelsJobs(t *testing.T) {
	t.Parallel()

	p := NewPool(newTestLogger(), WithWorkers(1))
	p.Start()

	started := make(chan struct{})
	var sawCancel atomic.Bool
	require.NoError(t, p.TrySubmit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, sawCancel.Load())
}

func TestPool_PanicKeepsWorker(t *testing.T) {
	t.Parallel()

	p := NewPool(newTestLogger(), WithWorkers(1), WithQueueSize(2))
	p.Start()

	var ran atomic.Bool
	require.NoError(t, p.TrySubmit(func(context.Context) { panic("boom") }))
	require.NoError(t, p.TrySubmit(func(context.Context) { ran.Store(true) }))
	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, ran.Load())
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

func newTestScheduler(pool *Pool, client enrichClient, repo *mockEntryRepo, eager int) *Scheduler {
	return NewScheduler(newTestLogger(), pool, client, repo, nil, SchedulerConfig{EagerCount: eager, Timeout: time.Second})
}

func TestScheduler_Plan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		n     int
		eager int
		want  int
	}{
		{name: "more entries than eager", n: 25, eager: 10, want: 10},
		{name: "fewer entries than eager", n: 3, eager: 10, want: 3},
		{name: "eager disabled", n: 5, eager: 0, want: 0},
		{name: "no entries", n: 0, eager: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestScheduler(NewPool(newTestLogger()), &enrichClientMock{}, newMockEntryRepo(), tt.eager)
			entries := makeEntries(tt.n)

			got := s.Plan(entries)
			assert.Equal(t, tt.want, got)
			for i, e := range entries {
				if i < tt.want {
					assert.Equal(t, domain.EntryStatusProcessing, e.Status, "entry %d", i)
				} else {
					assert.Equal(t, domain.EntryStatusPending, e.Status, "entry %d", i)
				}
			}
		})
	}
}

func TestScheduler_DispatchCompletes(t *testing.T) {
	t.Parallel()

	pool := NewPool(newTestLogger(), WithWorkers(2), WithQueueSize(16))
	pool.Start()
	repo := newMockEntryRepo()
	client := &enrichClientMock{}
	s := newTestScheduler(pool, client, repo, 3)

	entries := makeEntries(5)
	k := s.Plan(entries)
	require.Equal(t, 3, k)

	assert.Equal(t, 3, s.Dispatch(context.Background(), entries))
	require.NoError(t, pool.Shutdown(context.Background()))

	completed, failed, released := repo.snapshot()
	assert.Len(t, completed, 3)
	assert.Empty(t, failed)
	assert.Empty(t, released)
	for _, e := range entries[:3] {
		assert.Equal(t, "d:"+e.Term, completed[e.ID].Detail)
	}
	assert.Equal(t, int32(3), client.calls.Load())
}

func TestScheduler_DispatchRecordsFailure(t *testing.T) {
	t.Parallel()

	pool := NewPool(newTestLogger(), WithWorkers(1))
	pool.Start()
	repo := newMockEntryRepo()
	client := &enrichClientMock{EnrichFunc: func(context.Context, string, string, time.Duration) (domain.Enrichment, error) {
		return domain.Enrichment{}, errors.New("endpoint unreachable")
	}}
	s := newTestScheduler(pool, client, repo, 2)

	entries := makeEntries(2)
	s.Plan(entries)
	s.Dispatch(context.Background(), entries)
	require.NoError(t, pool.Shutdown(context.Background()))

	completed, failed, _ := repo.snapshot()
	assert.Empty(t, completed)
	require.Len(t, failed, 2)
	assert.Contains(t, failed[entries[0].ID], "endpoint unreachable")
}

func TestScheduler_DispatchReleasesWhenPoolClosed(t *testing.T) {
	t.Parallel()

	pool := NewPool(newTestLogger())
	pool.Start()
	require.NoError(t, pool.Shutdown(context.Background()))

	repo := newMockEntryRepo()
	client := &enrichClientMock{}
	s := newTestScheduler(pool, client, repo, 10)

	entries := makeEntries(4)
	s.Plan(entries)
	assert.Zero(t, s.Dispatch(context.Background(), entries))

	_, _, released := repo.snapshot()
	assert.ElementsMatch(t, []uuid.UUID{entries[0].ID, entries[1].ID, entries[2].ID, entries[3].ID}, released)
	assert.Zero(t, client.calls.Load())
	for _, e := range entries {
		assert.Equal(t, domain.EntryStatusPending, e.Status)
	}
}

func TestScheduler_DispatchSkipsPending(t *testing.T) {
	t.Parallel()

	pool := NewPool(newTestLogger())
	pool.Start()
	repo := newMockEntryRepo()
	client := &enrichClientMock{}
	s := newTestScheduler(pool, client, repo, 0)

	entries := makeEntries(3)
	s.Plan(entries)
	assert.Zero(t, s.Dispatch(context.Background(), entries))
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Zero(t, client.calls.Load())
}

// blockingClient answers after delay unless ctx ends first, the way the
// provider clients report a cancelled call.
func blockingClient(delay time.Duration) *enrichClientMock {
	return &enrichClientMock{EnrichFunc: func(ctx context.Context, term, _ string, _ time.Duration) (domain.Enrichment, error) {
		select {
		case <-ctx.Done():
			return domain.Enrichment{}, fmt.Errorf("%w: %w", domain.ErrEnrichmentUnavailable, ctx.Err())
		case <-time.After(delay):
			return domain.Enrichment{Detail: "d:" + term, ExampleEN: "e", ExampleCN: "c"}, nil
		}
	}}
}

func TestScheduler_ShutdownDeadlineReleasesEntries(t *testing.T) {
	t.Parallel()

	pool := NewPool(newTestLogger(), WithWorkers(1), WithQueueSize(8))
	pool.Start()
	repo := newMockEntryRepo()
	s := newTestScheduler(pool, blockingClient(200*time.Millisecond), repo, 5)

	entries := makeEntries(5)
	require.Equal(t, 5, s.Plan(entries))
	require.Equal(t, 5, s.Dispatch(context.Background(), entries))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)

	completed, failed, released := repo.snapshot()
	assert.Empty(t, completed)
	assert.Empty(t, failed, "cancelled work must not be recorded as failed")
	assert.ElementsMatch(t, []uuid.UUID{entries[0].ID, entries[1].ID, entries[2].ID, entries[3].ID, entries[4].ID}, released)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func newTestService(repo *mockEntryRepo, client enrichClient) *Service {
	return NewService(newTestLogger(), repo, client, nil, time.Second)
}

func TestService_EnrichEntry_Pending(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	entry := makeEntries(1)[0]
	entry.Status = domain.EntryStatusProcessing

	repo := newMockEntryRepo()
	repo.claimPendingFn = func(_ context.Context, uid, eid uuid.UUID) (*domain.Entry, error) {
		assert.Equal(t, userID, uid)
		assert.Equal(t, entry.ID, eid)
		e := entry
		return &e, nil
	}
	svc := newTestService(repo, &enrichClientMock{})

	got, err := svc.EnrichEntry(context.Background(), userID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusCompleted, got.Status)
	require.NotNil(t, got.Enrichment)
	assert.Equal(t, "d:"+entry.Term, got.Enrichment.Detail)
	assert.NotNil(t, got.EnrichedAt)
}

func TestService_EnrichEntry_AlreadyHandled(t *testing.T) {
	t.Parallel()

	entry := makeEntries(1)[0]
	entry.Status = domain.EntryStatusCompleted
	entry.Enrichment = &domain.Enrichment{Detail: "x", ExampleEN: "y", ExampleCN: "z"}

	repo := newMockEntryRepo()
	repo.claimPendingFn = func(context.Context, uuid.UUID, uuid.UUID) (*domain.Entry, error) {
		return nil, domain.ErrNotFound
	}
	repo.getForUserFn = func(context.Context, uuid.UUID, uuid.UUID) (*domain.Entry, error) {
		e := entry
		return &e, nil
	}
	client := &enrichClientMock{}
	svc := newTestService(repo, client)

	got, err := svc.EnrichEntry(context.Background(), uuid.New(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusCompleted, got.Status)
	assert.Zero(t, client.calls.Load())
}

func TestService_EnrichEntry_NotOwned(t *testing.T) {
	t.Parallel()

	repo := newMockEntryRepo()
	repo.claimPendingFn = func(context.Context, uuid.UUID, uuid.UUID) (*domain.Entry, error) {
		return nil, domain.ErrNotFound
	}
	repo.getForUserFn = func(context.Context, uuid.UUID, uuid.UUID) (*domain.Entry, error) {
		return nil, domain.ErrNotFound
	}
	svc := newTestService(repo, &enrichClientMock{})

	_, err := svc.EnrichEntry(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_EnrichEntry_Unavailable(t *testing.T) {
	t.Parallel()

	entry := makeEntries(1)[0]
	repo := newMockEntryRepo()
	repo.claimPendingFn = func(context.Context, uuid.UUID, uuid.UUID) (*domain.Entry, error) {
		e := entry
		e.Status = domain.EntryStatusProcessing
		return &e, nil
	}
	svc := newTestService(repo, &enrichClientMock{EnrichFunc: func(context.Context, string, string, time.Duration) (domain.Enrichment, error) {
		return domain.Enrichment{}, domain.ErrEnrichmentUnavailable
	}})

	got, err := svc.EnrichEntry(context.Background(), uuid.New(), entry.ID)
	assert.ErrorIs(t, err, domain.ErrEnrichmentUnavailable)
	require.NotNil(t, got)
	assert.Equal(t, domain.EntryStatusFailed, got.Status)
	assert.Nil(t, got.Enrichment)

	_, failed, _ := repo.snapshot()
	assert.Contains(t, failed, entry.ID)
}

func TestService_EnrichEntry_RequestCancelled(t *testing.T) {
	t.Parallel()

	entry := makeEntries(1)[0]
	repo := newMockEntryRepo()
	repo.claimPendingFn = func(context.Context, uuid.UUID, uuid.UUID) (*domain.Entry, error) {
		e := entry
		e.Status = domain.EntryStatusProcessing
		return &e, nil
	}
	svc := newTestService(repo, blockingClient(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := svc.EnrichEntry(ctx, uuid.New(), entry.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrEnrichmentUnavailable)
	require.NotNil(t, got)
	assert.Equal(t, domain.EntryStatusPending, got.Status)

	_, failed, released := repo.snapshot()
	assert.Empty(t, failed)
	assert.Equal(t, []uuid.UUID{entry.ID}, released)
}

func TestService_EnrichEntry_ReleaseError(t *testing.T) {
	t.Parallel()

	entry := makeEntries(1)[0]
	repo := newMockEntryRepo()
	repo.claimPendingFn = func(context.Context, uuid.UUID, uuid.UUID) (*domain.Entry, error) {
		e := entry
		return &e, nil
	}
	repo.releaseFn = func(context.Context, uuid.UUID) error { return errors.New("connection reset") }
	svc := newTestService(repo, blockingClient(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.EnrichEntry(ctx, uuid.New(), entry.ID)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestService_EnrichEntry_StoreError(t *testing.T) {
	t.Parallel()

	entry := makeEntries(1)[0]
	repo := newMockEntryRepo()
	repo.claimPendingFn = func(context.Context, uuid.UUID, uuid.UUID) (*domain.Entry, error) {
		e := entry
		return &e, nil
	}
	repo.completeFn = func(context.Context, uuid.UUID, domain.Enrichment) error {
		return errors.New("connection reset")
	}
	svc := newTestService(repo, &enrichClientMock{})

	_, err := svc.EnrichEntry(context.Background(), uuid.New(), entry.ID)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestService_DrainPending(t *testing.T) {
	t.Parallel()

	batch := makeEntries(6)
	for i := range batch {
		batch[i].Status = domain.EntryStatusProcessing
	}
	bookID := batch[0].BookID

	repo := newMockEntryRepo()
	repo.claimBatchFn = func(_ context.Context, b *uuid.UUID, limit int) ([]domain.Entry, error) {
		require.NotNil(t, b)
		assert.Equal(t, bookID, *b)
		assert.Equal(t, 6, limit)
		return batch, nil
	}

	var inFlight, peak atomic.Int32
	client := &enrichClientMock{EnrichFunc: func(_ context.Context, term, _ string, _ time.Duration) (domain.Enrichment, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if term == batch[0].Term {
			return domain.Enrichment{}, domain.ErrEnrichmentUnavailable
		}
		return domain.Enrichment{Detail: "d", ExampleEN: "e", ExampleCN: "c"}, nil
	}}
	svc := newTestService(repo, client)

	res, err := svc.DrainPending(context.Background(), &bookID, 6, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Claimed)
	assert.Equal(t, res.Claimed, res.Completed+res.Failed)
	assert.GreaterOrEqual(t, res.Failed, 1)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestService_DrainPending_Interrupted(t *testing.T) {
	t.Parallel()

	batch := makeEntries(3)
	for i := range batch {
		batch[i].Status = domain.EntryStatusProcessing
	}
	repo := newMockEntryRepo()
	repo.claimBatchFn = func(context.Context, *uuid.UUID, int) ([]domain.Entry, error) { return batch, nil }
	svc := newTestService(repo, blockingClient(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.DrainPending(ctx, nil, 3, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, res.Claimed)
	assert.Equal(t, 3, res.Released)
	assert.Zero(t, res.Failed)

	_, failed, released := repo.snapshot()
	assert.Empty(t, failed)
	assert.Len(t, released, 3)
}

func TestService_DrainPending_ClaimError(t *testing.T) {
	t.Parallel()

	repo := newMockEntryRepo()
	repo.claimBatchFn = func(context.Context, *uuid.UUID, int) ([]domain.Entry, error) {
		return nil, errors.New("db down")
	}
	svc := newTestService(repo, &enrichClientMock{})

	_, err := svc.DrainPending(context.Background(), nil, 0, 0)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestService_ResetProcessing(t *testing.T) {
	t.Parallel()

	cutoff := time.Now().Add(-15 * time.Minute)
	repo := newMockEntryRepo()
	repo.resetFn = func(_ context.Context, olderThan time.Time) (int, error) {
		assert.Equal(t, cutoff, olderThan)
		return 4, nil
	}
	svc := newTestService(repo, &enrichClientMock{})

	n, err := svc.ResetProcessing(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestService_Stats(t *testing.T) {
	t.Parallel()

	want := domain.EnrichmentStats{Pending: 3, Completed: 2, Total: 5}
	repo := newMockEntryRepo()
	repo.statsFn = func(context.Context, uuid.UUID) (domain.EnrichmentStats, error) { return want, nil }
	svc := newTestService(repo, &enrichClientMock{})

	got, err := svc.Stats(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewLimiter(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewLimiter(0, 4))
	l := NewLimiter(120, 0)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
	assert.InDelta(t, 2.0, float64(l.Limit()), 1e-9)
}
