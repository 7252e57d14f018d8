// Package upload keeps uploaded documents in scoped temporary files.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

const filePrefix = "lexiflow-upload-"

// ErrTooLarge is returned when an upload exceeds the size limit.
var ErrTooLarge = fmt.Errorf("%w: upload exceeds size limit", domain.ErrInvalidInput)

// Store writes uploads into one directory.
type Store struct {
	dir string
	log *slog.Logger
}

// NewStore creates a Store rooted at dir; an empty dir means os.TempDir().
func NewStore(logger *slog.Logger, dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{dir: dir, log: logger.With("adapter", "upload")}
}

// Dir returns the directory uploads are written to.
func (s *Store) Dir() string { return s.dir }

// File is one saved upload. Remove it when done.
type File struct {
	Path string
	Size int64
}

// Remove deletes the file. Removing twice is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Save copies r into a new temporary file, reading at most maxBytes
// (0 means unlimited). On any error the partial file is removed.
func (s *Store) Save(ctx context.Context, r io.Reader, ext string, maxBytes int64) (*File, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("upload.Save: mkdir: %w", err)
	}

	f, err := os.CreateTemp(s.dir, filePrefix+"*"+ext)
	if err != nil {
		return nil, fmt.Errorf("upload.Save: create: %w", err)
	}
	file := &File{Path: f.Name()}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: src})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = file.Remove()
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("upload.Save: write: %w", err)
	}

	file.Size = n
	s.log.DebugContext(ctx, "upload saved", slog.String("path", file.Path), slog.Int64("size", n))
	return file, nil
}

// Sweep removes upload files last modified before olderThan, left behind by
// a crashed process. It returns how many were removed.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("upload.Sweep: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(olderThan) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.WarnContext(ctx, "remove stale upload", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	return removed, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
