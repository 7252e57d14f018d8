package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

const entryTable = "book_entries"

var entryColumns = []string{
	"id", "book_id", "position", "term", "translation", "status",
	"detail", "example_en", "example_cn", "error_message",
	"enriched_at", "created_at", "updated_at",
}

const ownedBy = "book_id IN (SELECT book_id FROM user_books WHERE user_id = ?)"

// EntryRepo provides entry persistence backed by SQLite.
type EntryRepo struct {
	db *DB
}

// NewEntryRepo creates a new entry repository.
func NewEntryRepo(db *DB) *EntryRepo {
	return &EntryRepo{db: db}
}

// BulkInsert writes entries with one prepared statement, preserving Position.
func (r *EntryRepo) BulkInsert(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	query, _, err := builder().
		Insert(entryTable).
		Columns("id", "book_id", "position", "term", "translation", "status", "created_at", "updated_at").
		Values(nil, nil, nil, nil, nil, nil, nil, nil).
		ToSql()
	if err != nil {
		return err
	}

	q := querierFromCtx(ctx, r.db)
	for _, e := range entries {
		_, err := q.ExecContext(ctx, query,
			e.ID, e.BookID, e.Position, e.Term, e.Translation, string(e.Status),
			e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano(),
		)
		if err != nil {
			return mapSQLError(err, "entry", e.ID)
		}
	}
	return nil
}

// ListByBook returns all entries of a book in document order.
func (r *EntryRepo) ListByBook(ctx context.Context, bookID uuid.UUID) ([]domain.Entry, error) {
	query, args, err := builder().
		Select(entryColumns...).
		From(entryTable).
		Where(squirrel.Eq{"book_id": bookID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, "entry.ListByBook", query, args)
}

// CompleteEnrichment stores the result of a processing entry.
// Returns domain.ErrConflict when the entry is no longer processing.
func (r *EntryRepo) CompleteEnrichment(ctx context.Context, entryID uuid.UUID, e domain.Enrichment) error {
	now := nowNano()
	return r.transition(ctx, entryID, builder().
		Update(entryTable).
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
func (r *EntryRepo) FailEnrichment(ctx context.Context, entryID uuid.UUID, reason string) error {
	return r.transition(ctx, entryID, builder().
		Update(entryTable).
		Set("status", string(domain.EntryStatusFailed)).
		Set("detail", nil).
		Set("example_en", nil).
		Set("example_cn", nil).
		Set("error_message", reason).
		Set("updated_at", nowNano()).
		Where(squirrel.Eq{"id": entryID, "status": string(domain.EntryStatusProcessing)}))
}

// ReleaseEnrichment puts a processing entry back to pending.
func (r *EntryRepo) ReleaseEnrichment(ctx context.Context, entryID uuid.UUID) error {
	return r.transition(ctx, entryID, builder().
		Update(entryTable).
		Set("status", string(domain.EntryStatusPending)).
		Set("updated_at", nowNano()).
		Where(squirrel.Eq{"id": entryID, "status": string(domain.EntryStatusProcessing)}))
}

func (r *EntryRepo) transition(ctx context.Context, entryID uuid.UUID, b squirrel.UpdateBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	res, err := querierFromCtx(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return mapSQLError(err, "entry", entryID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapSQLError(err, "entry", entryID)
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", entryID, domain.ErrConflict)
	}
	return nil
}

// ClaimPending moves a pending entry owned by userID to processing.
// Returns domain.ErrNotFound when the entry is missing, foreign or not pending.
func (r *EntryRepo) ClaimPending(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error) {
	query, args, err := builder().
		Update(entryTable).
		Set("status", string(domain.EntryStatusProcessing)).
		Set("updated_at", nowNano()).
		Where(squirrel.Eq{"id": entryID, "status": string(domain.EntryStatusPending)}).
		Where(ownedBy, userID).
		Suffix("RETURNING " + strings.Join(entryColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	e, err := scanEntry(querierFromCtx(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapSQLError(err, "entry", entryID)
	}
	return &e, nil
}

// GetForUser returns an entry of a book owned by userID.
func (r *EntryRepo) GetForUser(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error) {
	query, args, err := builder().
		Select(entryColumns...).
		From(entryTable).
		Where(squirrel.Eq{"id": entryID}).
		Where(ownedBy, userID).
		ToSql()
	if err != nil {
		return nil, err
	}

	e, err := scanEntry(querierFromCtx(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapSQLError(err, "entry", entryID)
	}
	return &e, nil
}

// ClaimPendingBatch moves up to limit pending entries to processing in
// document order. The single connection serialises concurrent claims.
func (r *EntryRepo) ClaimPendingBatch(ctx context.Context, bookID *uuid.UUID, limit int) ([]domain.Entry, error) {
	sub := builder().
		Select("id").
		From(entryTable).
		Where(squirrel.Eq{"status": string(domain.EntryStatusPending)}).
		OrderBy("created_at", "book_id", "position").
		Limit(uint64(limit))
	if bookID != nil {
		sub = sub.Where(squirrel.Eq{"book_id": *bookID})
	}
	subSQL, subArgs, err := sub.ToSql()
	if err != nil {
		return nil, err
	}

	query, args, err := builder().
		Update(entryTable).
		Set("status", string(domain.EntryStatusProcessing)).
		Set("updated_at", nowNano()).
		Where("id IN ("+subSQL+")", subArgs...).
		Suffix("RETURNING " + strings.Join(entryColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	entries, err := r.query(ctx, "entry.ClaimPendingBatch", query, args)
	if err != nil {
		return nil, err
	}
	sortByDocumentOrder(entries)
	return entries, nil
}

// ResetProcessing returns entries processing since before olderThan to pending.
func (r *EntryRepo) ResetProcessing(ctx context.Context, olderThan time.Time) (int, error) {
	query, args, err := builder().
		Update(entryTable).
		Set("status", string(domain.EntryStatusPending)).
		Set("updated_at", nowNano()).
		Where(squirrel.Eq{"status": string(domain.EntryStatusProcessing)}).
		Where(squirrel.Lt{"updated_at": olderThan.UnixNano()}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := querierFromCtx(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("entry.ResetProcessing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("entry.ResetProcessing: %w", err)
	}
	return int(n), nil
}

// Stats counts the entries of a book per status.
func (r *EntryRepo) Stats(ctx context.Context, bookID uuid.UUID) (domain.EnrichmentStats, error) {
	query, args, err := builder().
		Select("status", "count(*)").
		From(entryTable).
		Where(squirrel.Eq{"book_id": bookID}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return domain.EnrichmentStats{}, err
	}

	rows, err := querierFromCtx(ctx, r.db).QueryContext(ctx, query, args...)
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

func (r *EntryRepo) query(ctx context.Context, op, query string, args []any) ([]domain.Entry, error) {
	rows, err := querierFromCtx(ctx, r.db).QueryContext(ctx, query, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.Entry, error) {
	var (
		e                  domain.Entry
		status             string
		detail, exEN, exCN sql.NullString
		errMsg             sql.NullString
		enrichedAt         sql.NullInt64
		created, updated   int64
	)
	err := row.Scan(
		&e.ID, &e.BookID, &e.Position, &e.Term, &e.Translation, &status,
		&detail, &exEN, &exCN, &errMsg,
		&enrichedAt, &created, &updated,
	)
	if err != nil {
		return domain.Entry{}, err
	}

	e.Status = domain.EntryStatus(status)
	e.CreatedAt = fromNano(created)
	e.UpdatedAt = fromNano(updated)
	if errMsg.Valid {
		e.ErrorMessage = &errMsg.String
	}
	if enrichedAt.Valid {
		t := fromNano(enrichedAt.Int64)
		e.EnrichedAt = &t
	}
	if e.Status == domain.EntryStatusCompleted && detail.Valid && exEN.Valid && exCN.Valid {
		e.Enrichment = &domain.Enrichment{Detail: detail.String, ExampleEN: exEN.String, ExampleCN: exCN.String}
	}
	return e, nil
}
