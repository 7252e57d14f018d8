package pdftext

import (
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// StreamOpener validates PDFs with pdfcpu and decodes the text operators of
// each page content stream. Only simple fonts (WinAnsi or UTF-16 strings)
// decode to readable text; CID fonts need the rows engine.
type StreamOpener struct{}

func (StreamOpener) Open(path string) (doc Document, err error) {
	defer guard("stream open", &err)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdftext: open: %w", err)
	}

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pdftext: pdfcpu read: %w", err)
	}

	return &streamDocument{file: f, ctx: ctx}, nil
}

type streamDocument struct {
	file *os.File
	ctx  *model.Context
}

func (d *streamDocument) NumPages() int { return d.ctx.PageCount }

func (d *streamDocument) PageText(n int) (text string, err error) {
	defer guard(fmt.Sprintf("stream page %d", n), &err)

	r, err := pdfcpu.ExtractPageContent(d.ctx, n)
	if err != nil {
		return "", fmt.Errorf("pdftext: page %d content: %w", n, err)
	}
	if r == nil {
		return "", ErrEmptyPage
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("pdftext: page %d read: %w", n, err)
	}
	return ContentText(data), nil
}

func (d *streamDocument) Close() error { return d.file.Close() }
