package sqlite

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

// BookRepo provides book persistence backed by SQLite.
type BookRepo struct {
	db *DB
}

// NewBookRepo creates a new book repository.
func NewBookRepo(db *DB) *BookRepo {
	return &BookRepo{db: db}
}

// Create inserts a book.
func (r *BookRepo) Create(ctx context.Context, b *domain.Book) error {
	query, args, err := builder().
		Insert("books").
		Columns("id", "title", "direction", "source_name", "entry_count", "created_at").
		Values(b.ID, b.Title, string(b.Direction), b.SourceName, b.EntryCount, b.CreatedAt.UnixNano()).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := querierFromCtx(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return mapSQLError(err, "book", b.ID)
	}
	return nil
}

// LinkUser records that userID owns bookID. Linking twice is a no-op.
func (r *BookRepo) LinkUser(ctx context.Context, userID, bookID uuid.UUID) error {
	query, args, err := builder().
		Insert("user_books").
		Options("OR IGNORE").
		Columns("user_id", "book_id", "created_at").
		Values(userID, bookID, nowNano()).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := querierFromCtx(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return mapSQLError(err, "book", bookID)
	}
	return nil
}

// GetForUser returns a book owned by userID.
func (r *BookRepo) GetForUser(ctx context.Context, userID, bookID uuid.UUID) (*domain.Book, error) {
	query, args, err := builder().
		Select("b.id", "b.title", "b.direction", "b.source_name", "b.entry_count", "b.created_at").
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
		created   int64
	)
	err = querierFromCtx(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(
		&b.ID, &b.Title, &direction, &b.SourceName, &b.EntryCount, &created,
	)
	if err != nil {
		return nil, mapSQLError(err, "book", bookID)
	}
	b.Direction = domain.DirectionMode(direction)
	b.CreatedAt = fromNano(created)
	return &b, nil
}
