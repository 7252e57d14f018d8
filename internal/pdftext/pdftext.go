// Package pdftext reads page text out of PDF files. Two engines are
// available: "rows" groups positioned glyphs into visual rows, "stream"
// scans page content streams for text operators.
package pdftext

import (
	"errors"
	"fmt"
)

// Engine names.
const (
	EngineRows   = "rows"
	EngineStream = "stream"
)

// ErrEmptyPage is returned by PageText for pages without a content object.
var ErrEmptyPage = errors.New("pdftext: empty page")

// Document is an opened PDF. Pages are numbered from 1.
type Document interface {
	NumPages() int
	PageText(n int) (string, error)
	Close() error
}

// Opener opens a PDF file from disk.
type Opener interface {
	Open(path string) (Document, error)
}

// NewOpener returns the opener of the named engine.
func NewOpener(engine string) (Opener, error) {
	switch engine {
	case EngineRows, "":
		return RowsOpener{}, nil
	case EngineStream:
		return StreamOpener{}, nil
	default:
		return nil, fmt.Errorf("pdftext: unknown engine %q", engine)
	}
}

// guard converts a panic raised inside a PDF library into an error.
func guard(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("pdftext: %s: panic: %v", op, r)
	}
}
