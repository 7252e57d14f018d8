package entry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/lexiflow-backend/internal/adapter/postgres/entry"
	"github.com/heartmarshall/lexiflow-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

// newRepo is a test helper that sets up the DB and returns a ready Repo.
func newRepo(t *testing.T) (*entry.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return entry.New(pool), pool
}

func TestRepo_BulkInsert_PreservesOrder(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	userID := uuid.New()
	book, _ := testhelper.SeedBook(t, pool, userID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	entries := domain.NewEntries(book.ID, []domain.Pair{
		{Term: "cat", Translation: "猫"},
		{Term: "dog", Translation: "狗"},
		{Term: "bird", Translation: "鸟"},
	}, now)
	entries[0].Status = domain.EntryStatusProcessing

	if err := repo.BulkInsert(ctx, entries); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	got, err := repo.ListByBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("ListByBook: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListByBook: got %d entries, want 3", len(got))
	}
	for i, want := range []string{"cat", "dog", "bird"} {
		if got[i].Term != want || got[i].Position != i {
			t.Errorf("entry %d = %q@%d, want %q@%d", i, got[i].Term, got[i].Position, want, i)
		}
	}
	if got[0].Status != domain.EntryStatusProcessing || got[1].Status != domain.EntryStatusPending {
		t.Errorf("statuses = %s,%s; want processing,pending", got[0].Status, got[1].Status)
	}
}

func TestRepo_BulkInsert_DuplicatePosition(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)

	book, _ := testhelper.SeedBook(t, pool, uuid.New(), "one")
	dup := domain.NewEntries(book.ID, []domain.Pair{{Term: "two", Translation: "二"}}, time.Now())

	err := repo.BulkInsert(context.Background(), dup)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("BulkInsert duplicate position: got %v, want ErrAlreadyExists", err)
	}
}

func TestRepo_CompleteEnrichment(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	_, entries := testhelper.SeedBook(t, pool, uuid.New(), "apple")
	id := entries[0].ID
	testhelper.SetEntryStatus(t, pool, id, domain.EntryStatusProcessing, time.Now())

	e := domain.Enrichment{Detail: "苹果", ExampleEN: "An apple.", ExampleCN: "一个苹果。"}
	if err := repo.CompleteEnrichment(ctx, id, e); err != nil {
		t.Fatalf("CompleteEnrichment: %v", err)
	}

	got, err := repo.ListByBook(ctx, entries[0].BookID)
	if err != nil {
		t.Fatalf("ListByBook: %v", err)
	}
	if got[0].Status != domain.EntryStatusCompleted {
		t.Fatalf("status = %s, want completed", got[0].Status)
	}
	if got[0].Enrichment == nil || *got[0].Enrichment != e {
		t.Errorf("enrichment = %+v, want %+v", got[0].Enrichment, e)
	}
	if got[0].EnrichedAt == nil {
		t.Error("enriched_at not set")
	}

	// A terminal entry is never rewritten.
	err = repo.FailEnrichment(ctx, id, "late failure")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("FailEnrichment after completion: got %v, want ErrConflict", err)
	}
}

func TestRepo_FailEnrichment(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	_, entries := testhelper.SeedBook(t, pool, uuid.New(), "apple")
	id := entries[0].ID

	if err := repo.FailEnrichment(ctx, id, "x"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("FailEnrichment on pending: got %v, want ErrConflict", err)
	}

	testhelper.SetEntryStatus(t, pool, id, domain.EntryStatusProcessing, time.Now())
	if err := repo.FailEnrichment(ctx, id, "endpoint unreachable"); err != nil {
		t.Fatalf("FailEnrichment: %v", err)
	}

	got, err := repo.ListByBook(ctx, entries[0].BookID)
	if err != nil {
		t.Fatalf("ListByBook: %v", err)
	}
	if got[0].Status != domain.EntryStatusFailed || got[0].Enrichment != nil {
		t.Fatalf("entry = %s/%+v, want failed without enrichment", got[0].Status, got[0].Enrichment)
	}
	if got[0].ErrorMessage == nil || *got[0].ErrorMessage != "endpoint unreachable" {
		t.Errorf("error_message = %v", got[0].ErrorMessage)
	}
}

func TestRepo_ReleaseEnrichment(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	_, entries := testhelper.SeedBook(t, pool, uuid.New(), "apple")
	testhelper.SetEntryStatus(t, pool, entries[0].ID, domain.EntryStatusProcessing, time.Now())

	if err := repo.ReleaseEnrichment(ctx, entries[0].ID); err != nil {
		t.Fatalf("ReleaseEnrichment: %v", err)
	}
	stats, err := repo.Stats(ctx, entries[0].BookID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 1 || stats.Processing != 0 {
		t.Errorf("stats = %+v, want one pending", stats)
	}
}

func TestRepo_ClaimPending(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	owner := uuid.New()
	_, entries := testhelper.SeedBook(t, pool, owner, "apple")
	id := entries[0].ID

	if _, err := repo.ClaimPending(ctx, uuid.New(), id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ClaimPending by stranger: got %v, want ErrNotFound", err)
	}

	got, err := repo.ClaimPending(ctx, owner, id)
	if err != nil {
		t.Fatalf("ClaimPending: %v", err)
	}
	if got.Status != domain.EntryStatusProcessing || got.Term != "apple" {
		t.Errorf("claimed = %+v", got)
	}

	if _, err := repo.ClaimPending(ctx, owner, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second ClaimPending: got %v, want ErrNotFound", err)
	}

	current, err := repo.GetForUser(ctx, owner, id)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if current.Status != domain.EntryStatusProcessing {
		t.Errorf("status = %s, want processing", current.Status)
	}
}

func TestRepo_ClaimPendingBatch(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	book, entries := testhelper.SeedBook(t, pool, uuid.New(), "a", "b", "c", "d")
	testhelper.SetEntryStatus(t, pool, entries[1].ID, domain.EntryStatusCompleted, time.Now())

	got, err := repo.ClaimPendingBatch(ctx, &book.ID, 2)
	if err != nil {
		t.Fatalf("ClaimPendingBatch: %v", err)
	}
	if len(got) != 2 || got[0].Term != "a" || got[1].Term != "c" {
		t.Fatalf("claimed = %v, want a,c", terms(got))
	}
	for _, e := range got {
		if e.Status != domain.EntryStatusProcessing {
			t.Errorf("%s status = %s, want processing", e.Term, e.Status)
		}
	}

	rest, err := repo.ClaimPendingBatch(ctx, &book.ID, 10)
	if err != nil {
		t.Fatalf("ClaimPendingBatch: %v", err)
	}
	if len(rest) != 1 || rest[0].Term != "d" {
		t.Fatalf("second claim = %v, want d", terms(rest))
	}
}

func TestRepo_ResetProcessing(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	book, entries := testhelper.SeedBook(t, pool, uuid.New(), "old", "fresh")
	testhelper.SetEntryStatus(t, pool, entries[0].ID, domain.EntryStatusProcessing, time.Now().Add(-48*time.Hour))
	testhelper.SetEntryStatus(t, pool, entries[1].ID, domain.EntryStatusProcessing, time.Now())

	n, err := repo.ResetProcessing(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ResetProcessing: %v", err)
	}
	if n < 1 {
		t.Fatalf("ResetProcessing reset %d rows, want at least 1", n)
	}

	stats, err := repo.Stats(ctx, book.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := domain.EnrichmentStats{Pending: 1, Processing: 1, Total: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func terms(entries []domain.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Term
	}
	return out
}
