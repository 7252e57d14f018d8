package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/heartmarshall/lexiflow-backend/internal/adapter/postgres"
	"github.com/heartmarshall/lexiflow-backend/internal/adapter/postgres/book"
	"github.com/heartmarshall/lexiflow-backend/internal/adapter/postgres/entry"
	"github.com/heartmarshall/lexiflow-backend/internal/adapter/sqlite"
	"github.com/heartmarshall/lexiflow-backend/internal/config"
	"github.com/heartmarshall/lexiflow-backend/internal/domain"
	"github.com/heartmarshall/lexiflow-backend/migrations"
)

// TxRunner runs fn in one store transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// BookStore is the book side of either store.
type BookStore interface {
	Create(ctx context.Context, b *domain.Book) error
	LinkUser(ctx context.Context, userID, bookID uuid.UUID) error
	GetForUser(ctx context.Context, userID, bookID uuid.UUID) (*domain.Book, error)
}

// EntryStore is the entry side of either store.
type EntryStore interface {
	BulkInsert(ctx context.Context, entries []domain.Entry) error
	ListByBook(ctx context.Context, bookID uuid.UUID) ([]domain.Entry, error)
	CompleteEnrichment(ctx context.Context, entryID uuid.UUID, e domain.Enrichment) error
	FailEnrichment(ctx context.Context, entryID uuid.UUID, reason string) error
	ReleaseEnrichment(ctx context.Context, entryID uuid.UUID) error
	ClaimPending(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error)
	GetForUser(ctx context.Context, userID, entryID uuid.UUID) (*domain.Entry, error)
	ClaimPendingBatch(ctx context.Context, bookID *uuid.UUID, limit int) ([]domain.Entry, error)
	ResetProcessing(ctx context.Context, olderThan time.Time) (int, error)
	Stats(ctx context.Context, bookID uuid.UUID) (domain.EnrichmentStats, error)
}

// Store bundles the repositories of the configured database driver.
type Store struct {
	Driver  string
	Tx      TxRunner
	Books   BookStore
	Entries EntryStore

	ping  func(ctx context.Context) error
	close func()
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

// Close releases the connection pool or database file.
func (s *Store) Close() { s.close() }

// OpenStore connects to the configured database and, when AutoMigrate is set,
// applies the embedded migrations.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	switch cfg.Driver {
	case migrations.DriverSQLite:
		return OpenSQLite(ctx, cfg.DSN, cfg.AutoMigrate)
	case migrations.DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("app: unknown database driver %q", cfg.Driver)
	}
}

// OpenSQLite opens a file-backed store. The CLI uses it directly.
func OpenSQLite(ctx context.Context, path string, migrate bool) (*Store, error) {
	db, err := sqlite.Open(ctx, path, migrate)
	if err != nil {
		return nil, err
	}
	return &Store{
		Driver:  migrations.DriverSQLite,
		Tx:      sqlite.NewTxManager(db),
		Books:   sqlite.NewBookRepo(db),
		Entries: sqlite.NewEntryRepo(db),
		ping:    db.Ping,
		close:   func() { db.Close() },
	}, nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		db := stdlib.OpenDBFromPool(pool)
		applied, err := migrations.Up(ctx, db, migrations.DriverPostgres)
		db.Close()
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("migrations applied", slog.Int("count", applied))
	}

	return &Store{
		Driver:  migrations.DriverPostgres,
		Tx:      postgres.NewTxManager(pool),
		Books:   book.New(pool),
		Entries: entry.New(pool),
		ping:    pool.Ping,
		close:   pool.Close,
	}, nil
}
