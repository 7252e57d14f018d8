// Package entry implements the book entry repository using PostgreSQL.
// Every enrichment transition is a single conditional UPDATE on status.
package entry

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/lexiflow-backend/internal/adapter/postgres"
	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

const table = "book_entries"

var columns = []string{
	"id", "book_id", "position", "term", "translation", "status",
	"detail", "example_en", "example_cn", "error_message",
	"enriched_at", "created_at", "updated_at",
}

const insertSQL = `INSERT INTO book_entries (id, book_id, position, term, translation, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// ownedBy restricts a statement to entries of books linked to a user.
const ownedBy = "book_id IN (SELECT book_id FROM user_books WHERE user_id = ?)"

// Repo provides entry persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New creates a new entry repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// BulkInsert writes entries in one batch, preserving Position.
func (r *Repo) BulkInsert(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(insertSQL, e.ID, e.BookID, e.Position, e.Term, e.Translation, string(e.Status), e.CreatedAt, e.UpdatedAt)
	}

	br := postgres.QuerierFromCtx(ctx, r.pool).SendBatch(ctx, batch)
	defer br.Close()

	for _, e := range entries {
		if _, err := br.Exec(); err != nil {
			return postgres.MapError(err, "entry", e.ID)
		}
	}
	return br.Close()
}

// ListByBook returns all entries of a book in document order.
func (r *Repo) ListByBook(ctx context.Context, bookID uuid.UUID) ([]domain.Entry, error) {
	sql, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"book_id": bookID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, "entry.ListByBook", sql, args)
}

// ---------------------------------------------------------------------------
// Enrichment transitions
// ---------------------------------------------------------------------------

// CompleteEnrichment stores the result of a processing entry.
// Returns domain.ErrConflict when the entry is no longer processing.
func (r *Repo) CompleteEnrichment(ctx context.Context, entryID uuid.UUID, e domain.Enrichment) error {
	now := r.now()
	return r.transition(ctx, entryID, postgres.Builder().
		Update(table).
		Set("status", string(domain.EntryStatusCompleted)).
		Set("detail", e.Detail).
		Set("example_en", e.ExampleEN).
		Set("example_cn", e.ExampleCN).
		Set("error_message", nil).
		Set("enriched_at", now).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": entryID, "status": string(domain.EntryStatusProcessing)}))
}

// FailEnrichment marks a processing entry failed and clears its fields.
func (r *Repo) FailEnrichment(ctx context.Context, entryID uuid.UUID, reason string) error {
	return r.transition(ctx, entryID, postgres.Builder().
		Update(table).
		Set("status", string(domain.EntryStatusFailed)).
		Set("detail", nil).
		Set("example_en", nil).
		Set("example_cn", nil).
		Set("error_message", reason).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"id": entryID, "status": string(domain.EntryStatusProcessing)}))
}

// ReleaseEnrichment puts a processing entry back to pending.
func (r *Repo) ReleaseEnrichment(ctx context.Context, entryID uuid.UUID) error {
	return r.transition(ctx, entryID, postgres.Builder().
		Update(table).
		Set("status", string(domain.EntryStatusPending)).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"id": entryID, "status": string(domain.EntryStatusProcessing)}))
}

func (r *Repo) transition(ctx context.Context, entryID uuid.UUID, b squirrel.UpdateBuilder) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return err
	}
	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "entry", entryID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", entryID, domain.ErrConflict)
	}
	return nil
}

// ClaimPending moves a pending entry owned by userID to processing.
// Returns domain.ErrNotFound when the entry is missing, foreign or not pending.
func (r *Repo) ClaimPending(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error) {
	sql, args, err := postgres.Builder().
		Update(table).
		Set("status", string(domain.EntryStatusProcessing)).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"id": entryID, "status": string(domain.EntryStatusPending)}).
		Where(ownedBy, userID).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, err
	}

	e, err := scanEntry(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "entry", entryID)
	}
	return &e, nil
}

// GetForUser returns an entry of a book owned by userID.
func (r *Repo) GetForUser(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error) {
	sql, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": entryID}).
		Where(ownedBy, userID).
		ToSql()
	if err != nil {
		return nil, err
	}

	e, err := scanEntry(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "entry", entryID)
	}
	return &e, nil
}

// ClaimPendingBatch moves up to limit pending entries to processing, oldest
// book first and in document order. Concurrent callers never claim the same row.
func (r *Repo) ClaimPendingBatch(ctx context.Context, bookID *uuid.UUID, limit int) ([]domain.Entry, error) {
	sub := postgres.Builder().
		Select("id").
		From(table).
		Where(squirrel.Eq{"status": string(domain.EntryStatusPending)}).
		OrderBy("created_at", "book_id", "position").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")
	if bookID != nil {
		sub = sub.Where(squirrel.Eq{"book_id": *bookID})
	}
	subSQL, subArgs, err := sub.PlaceholderFormat(squirrel.Question).ToSql()
	if err != nil {
		return nil, err
	}

	sql, args, err := postgres.Builder().
		Update(table).
		Set("status", string(domain.EntryStatusProcessing)).
		Set("updated_at", r.now()).
		Where("id IN ("+subSQL+")", subArgs...).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, err
	}

	entries, err := r.query(ctx, "entry.ClaimPendingBatch", sql, args)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, byDocumentOrder)
	return entries, nil
}

// ResetProcessing returns entries processing since before olderThan to pending.
func (r *Repo) ResetProcessing(ctx context.Context, olderThan time.Time) (int, error) {
	sql, args, err := postgres.Builder().
		Update(table).
		Set("status", string(domain.EntryStatusPending)).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"status": string(domain.EntryStatusProcessing)}).
		Where(squirrel.Lt{"updated_at": olderThan}).
		ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("entry.ResetProcessing: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Stats counts the entries of a book per status.
func (r *Repo) Stats(ctx context.Context, bookID uuid.UUID) (domain.EnrichmentStats, error) {
	sql, args, err := postgres.Builder().
		Select("status", "count(*)").
		From(table).
		Where(squirrel.Eq{"book_id": bookID}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return domain.EnrichmentStats{}, err
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return domain.EnrichmentStats{}, fmt.Errorf("entry.Stats: %w", err)
	}
	defer rows.Close()

	var stats domain.EnrichmentStats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return domain.EnrichmentStats{}, fmt.Errorf("entry.Stats: scan: %w", err)
		}
		stats.Add(domain.EntryStatus(status), n)
	}
	if err := rows.Err(); err != nil {
		return domain.EnrichmentStats{}, fmt.Errorf("entry.Stats: %w", err)
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// Scanning
// ---------------------------------------------------------------------------

func (r *Repo) query(ctx context.Context, op, sql string, args []any) ([]domain.Entry, error) {
	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (domain.Entry, error) {
	var (
		e                  domain.Entry
		status             string
		detail, exEN, exCN *string
	)
	err := row.Scan(
		&e.ID, &e.BookID, &e.Position, &e.Term, &e.Translation, &status,
		&detail, &exEN, &exCN, &e.ErrorMessage,
		&e.EnrichedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.Entry{}, err
	}
	e.Status = domain.EntryStatus(status)
	if e.Status == domain.EntryStatusCompleted && detail != nil && exEN != nil && exCN != nil {
		e.Enrichment = &domain.Enrichment{Detail: *detail, ExampleEN: *exEN, ExampleCN: *exCN}
	}
	return e, nil
}

func joinColumns() string {
	return strings.Join(columns, ", ")
}

func byDocumentOrder(a, b domain.Entry) int {
	return cmp.Or(
		a.CreatedAt.Compare(b.CreatedAt),
		strings.Compare(a.BookID.String(), b.BookID.String()),
		cmp.Compare(a.Position, b.Position),
	)
}
