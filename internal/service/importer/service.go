// Package importer turns an uploaded PDF word list into a persisted book and
// starts background enrichment of its first entries.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
	"github.com/heartmarshall/lexiflow-backend/internal/upload"
)

// MaxTitleLength is the longest accepted book title, in characters.
const MaxTitleLength = 200

type uploadStore interface {
	Save(ctx context.Context, r io.Reader, ext string, maxBytes int64) (*upload.File, error)
}

type extractor interface {
	ExtractFile(ctx context.Context, path string, mode domain.DirectionMode) ([]domain.Pair, error)
}

type bookRepo interface {
	Create(ctx context.Context, b *domain.Book) error
	LinkUser(ctx context.Context, userID, bookID uuid.UUID) error
}

type entryRepo interface {
	BulkInsert(ctx context.Context, entries []domain.Entry) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type scheduler interface {
	Plan(entries []domain.Entry) int
	Dispatch(ctx context.Context, entries []domain.Entry) int
}

// Config holds the import limits.
type Config struct {
	MaxUploadBytes int64
	DefaultMode    domain.DirectionMode
}

// Service orchestrates one import: validate, save, extract, persist, schedule.
type Service struct {
	log       *slog.Logger
	cfg       Config
	tx        txManager
	books     bookRepo
	entries   entryRepo
	uploads   uploadStore
	extractor extractor
	scheduler scheduler
	now       func() time.Time
}

// NewService creates a new import service.
func NewService(
	logger *slog.Logger,
	cfg Config,
	tx txManager,
	books bookRepo,
	entries entryRepo,
	uploads uploadStore,
	ext extractor,
	sched scheduler,
) *Service {
	if !cfg.DefaultMode.IsValid() {
		cfg.DefaultMode = domain.DirectionForward
	}
	return &Service{
		log:       logger.With("service", "importer"),
		cfg:       cfg,
		tx:        tx,
		books:     books,
		entries:   entries,
		uploads:   uploads,
		extractor: ext,
		scheduler: sched,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ImportInput is one upload. Size is the declared length, or a negative
// value when unknown.
type ImportInput struct {
	UserID   uuid.UUID
	Filename string
	Content  io.Reader
	Size     int64
	Mode     string
	Title    string
}

// ImportResult is the state of the book right after commit. Entries are in
// document order; the first Scheduled of them are being enriched.
type ImportResult struct {
	Book      domain.Book
	Entries   []domain.Entry
	Scheduled int
}

type validated struct {
	mode  domain.DirectionMode
	title string
	ext   string
}

// Import runs the whole import synchronously and returns once the book is
// committed; enrichment continues in the background.
func (s *Service) Import(ctx context.Context, in ImportInput) (*ImportResult, error) {
	v, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	file, err := s.uploads.Save(ctx, in.Content, v.ext, s.cfg.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("importer.Import: save upload: %w", err)
	}
	defer func() {
		if rerr := file.Remove(); rerr != nil {
			s.log.WarnContext(ctx, "remove upload", slog.String("path", file.Path), slog.String("error", rerr.Error()))
		}
	}()

	if file.Size == 0 {
		return nil, domain.NewValidationError("file", "file is empty")
	}

	pairs, err := s.extractor.ExtractFile(ctx, file.Path, v.mode)
	if err != nil {
		return nil, fmt.Errorf("importer.Import: %w", err)
	}
	if len(pairs) == 0 {
		return nil, domain.NewValidationError("file", "no word pairs found")
	}

	now := s.now()
	book := domain.Book{
		ID:         uuid.New(),
		Title:      v.title,
		Direction:  v.mode,
		SourceName: filepath.Base(in.Filename),
		EntryCount: len(pairs),
		CreatedAt:  now,
	}
	entries := domain.NewEntries(book.ID, pairs, now)
	scheduled := s.scheduler.Plan(entries)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.books.Create(ctx, &book); err != nil {
			return fmt.Errorf("create book: %w", err)
		}
		if err := s.entries.BulkInsert(ctx, entries); err != nil {
			return fmt.Errorf("insert entries: %w", err)
		}
		if err := s.books.LinkUser(ctx, in.UserID, book.ID); err != nil {
			return fmt.Errorf("link user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "import not persisted",
			slog.String("user_id", in.UserID.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("importer.Import: %w: %w", domain.ErrPersistence, err)
	}

	dispatched := s.scheduler.Dispatch(ctx, entries)

	s.log.InfoContext(ctx, "import committed",
		slog.String("user_id", in.UserID.String()),
		slog.String("book_id", book.ID.String()),
		slog.Int("entries", len(entries)),
		slog.Int("scheduled", scheduled),
		slog.Int("dispatched", dispatched),
	)

	return &ImportResult{Book: book, Entries: entries, Scheduled: dispatched}, nil
}

func (s *Service) validate(in ImportInput) (validated, error) {
	var errs []domain.FieldError

	if in.UserID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "user_id", Message: "required"})
	}

	ext := filepath.Ext(in.Filename)
	switch {
	case in.Content == nil || in.Size == 0:
		errs = append(errs, domain.FieldError{Field: "file", Message: "required"})
	case !strings.EqualFold(ext, ".pdf"):
		errs = append(errs, domain.FieldError{Field: "file", Message: "must be a .pdf file"})
	}

	mode, ok := domain.ParseDirectionMode(in.Mode, s.cfg.DefaultMode)
	if !ok {
		errs = append(errs, domain.FieldError{Field: "mode", Message: "must be en_cn or cn_en"})
	}

	title := domain.NormalizeTitle(in.Title)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		errs = append(errs, domain.FieldError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", MaxTitleLength)})
	}
	if title == "" {
		title = defaultTitle(in.Filename)
	}

	if len(errs) > 0 {
		return validated{}, domain.NewValidationErrors(errs)
	}

	if s.cfg.MaxUploadBytes > 0 && in.Size > s.cfg.MaxUploadBytes {
		return validated{}, upload.ErrTooLarge
	}

	return validated{mode: mode, title: title, ext: strings.ToLower(ext)}, nil
}

func defaultTitle(filename string) string {
	title := domain.TitleFromFilename(filename)
	if title == "" {
		return "Untitled"
	}
	if r := []rune(title); len(r) > MaxTitleLength {
		return strings.TrimSpace(string(r[:MaxTitleLength]))
	}
	return title
}
