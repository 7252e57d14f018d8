// Package book implements the Book repository using PostgreSQL.
package book

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/lexiflow-backend/internal/adapter/postgres"
	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

var columns = []string{"b.id", "b.title", "b.direction", "b.source_name", "b.entry_count", "b.created_at"}

// Repo provides book persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new book repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Create inserts a book.
func (r *Repo) Create(ctx context.Context, b *domain.Book) error {
	sql, args, err := postgres.Builder().
		Insert("books").
		Columns("id", "title", "direction", "source_name", "entry_count", "created_at").
		Values(b.ID, b.Title, string(b.Direction), b.SourceName, b.EntryCount, b.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "book", b.ID)
	}
	return nil
}

// LinkUser records that userID owns bookID. Linking twice is a no-op.
func (r *Repo) LinkUser(ctx context.Context, userID, bookID uuid.UUID) error {
	sql, args, err := postgres.Builder().
		Insert("user_books").
		Columns("user_id", "book_id").
		Values(userID, bookID).
		Suffix("ON CONFLICT (user_id, book_id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "book", bookID)
	}
	return nil
}

// GetForUser returns a book owned by userID.
func (r *Repo) GetForUser(ctx context.Context, userID, bookID uuid.UUID) (*domain.Book, error) {
	sql, args, err := postgres.Builder().
		Select(columns...).
		From("books b").
		Join("user_books ub ON ub.book_id = b.id").
		Where(squirrel.Eq{"b.id": bookID, "ub.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		b         domain.Book
		direction string
	)
	err = postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, sql, args...).Scan(
		&b.ID, &b.Title, &direction, &b.SourceName, &b.EntryCount, &b.CreatedAt,
	)
	if err != nil {
		return nil, postgres.MapError(err, "book", bookID)
	}
	b.Direction = domain.DirectionMode(direction)
	return &b, nil
}
