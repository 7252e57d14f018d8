// Package extract turns a PDF word list into ordered term/translation pairs.
package extract

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
	"github.com/heartmarshall/lexiflow-backend/internal/pdftext"
)

type lineParser interface {
	ParseLine(line string, mode domain.DirectionMode) (domain.Pair, bool)
}

// Extractor reads documents page by page and feeds every line to the parser.
type Extractor struct {
	opener pdftext.Opener
	parser lineParser
	log    *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger, opener pdftext.Opener, parser lineParser) *Extractor {
	return &Extractor{
		opener: opener,
		parser: parser,
		log:    logger.With("service", "extract"),
	}
}

// ExtractFile opens the PDF at path and returns all pairs in document order.
// A file that cannot be opened yields domain.ErrDocumentUnreadable and no pairs.
// Pages that fail to render are skipped.
func (e *Extractor) ExtractFile(ctx context.Context, path string, mode domain.DirectionMode) ([]domain.Pair, error) {
	doc, err := e.opener.Open(path)
	if err != nil {
		e.log.WarnContext(ctx, "document unreadable", slog.String("error", err.Error()))
		return nil, fmt.Errorf("extract: %w: %w", domain.ErrDocumentUnreadable, err)
	}
	defer doc.Close()

	var pairs []domain.Pair
	for pair := range e.Pairs(ctx, doc, mode) {
		pairs = append(pairs, pair)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	e.log.DebugContext(ctx, "document extracted",
		slog.Int("pages", doc.NumPages()),
		slog.Int("pairs", len(pairs)),
		slog.String("mode", mode.String()),
	)
	return pairs, nil
}

// Pairs lazily yields the pairs of an opened document. Iteration stops early
// when ctx is cancelled.
func (e *Extractor) Pairs(ctx context.Context, doc pdftext.Document, mode domain.DirectionMode) iter.Seq[domain.Pair] {
	return func(yield func(domain.Pair) bool) {
		for n := 1; n <= doc.NumPages(); n++ {
			if ctx.Err() != nil {
				return
			}

			text, err := doc.PageText(n)
			if err != nil {
				if !errors.Is(err, pdftext.ErrEmptyPage) {
					e.log.WarnContext(ctx, "page skipped", slog.Int("page", n), slog.String("error", err.Error()))
				}
				continue
			}

			for pair := range e.textPairs(text, mode) {
				if !yield(pair) {
					return
				}
			}
		}
	}
}

// ExtractText parses already extracted text, one candidate pair per line.
func (e *Extractor) ExtractText(text string, mode domain.DirectionMode) []domain.Pair {
	var pairs []domain.Pair
	for pair := range e.textPairs(text, mode) {
		pairs = append(pairs, pair)
	}
	return pairs
}

func (e *Extractor) textPairs(text string, mode domain.DirectionMode) iter.Seq[domain.Pair] {
	return func(yield func(domain.Pair) bool) {
		for line := range Lines(text) {
			pair, ok := e.parser.ParseLine(line, mode)
			if !ok {
				continue
			}
			if !yield(pair) {
				return
			}
		}
	}
}

// Lines yields the non-blank trimmed lines of text. Any of \n, \r\n and \r
// ends a line.
func Lines(text string) iter.Seq[string] {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return func(yield func(string) bool) {
		for line := range strings.SplitSeq(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}
