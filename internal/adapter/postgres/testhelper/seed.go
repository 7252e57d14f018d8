package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedBook creates a book owned by userID with one pending entry per term
// (translation "译:" + term). Returns the book and its entries in order.
func SeedBook(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, terms ...string) (domain.Book, []domain.Entry) {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	book := domain.Book{
		ID:         uuid.New(),
		Title:      "Seed " + uniqueSuffix(),
		Direction:  domain.DirectionForward,
		SourceName: "seed.pdf",
		EntryCount: len(terms),
		CreatedAt:  now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO books (id, title, direction, source_name, entry_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		book.ID, book.Title, string(book.Direction), book.SourceName, book.EntryCount, book.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedBook insert book: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO user_books (user_id, book_id, created_at) VALUES ($1, $2, $3)`,
		userID, book.ID, now,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedBook link user: %v", err)
	}

	pairs := make([]domain.Pair, len(terms))
	for i, term := range terms {
		pairs[i] = domain.Pair{Term: term, Translation: "译:" + term}
	}
	entries := domain.NewEntries(book.ID, pairs, now)
	for _, e := range entries {
		_, err := pool.Exec(ctx,
			`INSERT INTO book_entries (id, book_id, position, term, translation, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.BookID, e.Position, e.Term, e.Translation, string(e.Status), e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			t.Fatalf("testhelper: SeedBook insert entry %d: %v", e.Position, err)
		}
	}

	return book, entries
}

// SetEntryStatus forces an entry into status with the given updated_at.
func SetEntryStatus(t *testing.T, pool *pgxpool.Pool, entryID uuid.UUID, status domain.EntryStatus, updatedAt time.Time) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`UPDATE book_entries SET status = $2, updated_at = $3 WHERE id = $1`,
		entryID, string(status), updatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SetEntryStatus: %v", err)
	}
}
