package pdftext

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// RowsOpener reads PDFs with github.com/ledongthuc/pdf and renders every
// visual row as one line. Horizontal gaps wider than a fraction of the font
// size become a space, so two-column lists come out as "term translation".
type RowsOpener struct{}

func (RowsOpener) Open(path string) (doc Document, err error) {
	defer guard("rows open", &err)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdftext: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pdftext: stat: %w", err)
	}

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pdftext: read: %w", err)
	}

	return &rowsDocument{file: f, reader: r}, nil
}

type rowsDocument struct {
	file   *os.File
	reader *pdf.Reader
}

func (d *rowsDocument) NumPages() int { return d.reader.NumPage() }

func (d *rowsDocument) PageText(n int) (text string, err error) {
	defer guard(fmt.Sprintf("rows page %d", n), &err)

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return "", ErrEmptyPage
	}
	return renderTexts(page.Content().Text), nil
}

func (d *rowsDocument) Close() error { return d.file.Close() }

const (
	// gapRatio is the horizontal gap, relative to font size, that counts as a word break.
	gapRatio = 0.2
	// rowRatio is the baseline drift, relative to font size, still read as the same row.
	rowRatio = 0.4
)

type glyph struct {
	pdf.Text
	seq int
}

// renderTexts groups positioned glyphs into rows by baseline and writes the
// rows top to bottom, glyphs left to right.
func renderTexts(texts []pdf.Text) string {
	glyphs := make([]glyph, 0, len(texts))
	for i, t := range texts {
		if strings.Trim(t.S, "\r\n") == "" {
			continue
		}
		glyphs = append(glyphs, glyph{Text: t, seq: i})
	}
	// PDF user space grows upwards.
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].Y > glyphs[j].Y })

	var b strings.Builder
	for start := 0; start < len(glyphs); {
		end := start + 1
		for end < len(glyphs) && glyphs[start].Y-glyphs[end].Y <= rowTolerance(glyphs[start].FontSize) {
			end++
		}
		if start > 0 {
			b.WriteByte('\n')
		}
		writeRow(&b, glyphs[start:end])
		start = end
	}
	return b.String()
}

func writeRow(b *strings.Builder, row []glyph) {
	sort.Slice(row, func(i, j int) bool {
		if row[i].X != row[j].X {
			return row[i].X < row[j].X
		}
		return row[i].seq < row[j].seq
	})

	var prevEnd float64
	var prevSpace bool
	for i, g := range row {
		if i > 0 && g.X-prevEnd > threshold(g.FontSize) && !prevSpace && !strings.HasPrefix(g.S, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(g.S)
		if end := g.X + width(g.Text); i == 0 || end > prevEnd {
			prevEnd = end
		}
		prevSpace = strings.HasSuffix(g.S, " ")
	}
}

// width is the advance of a glyph. Fonts without a Widths array report zero,
// so those fall back to half an em, or a full em for wide scripts.
func width(t pdf.Text) float64 {
	if t.W > 0 {
		return t.W
	}
	em := t.FontSize
	if em <= 0 {
		em = 1
	}
	var w float64
	for _, r := range t.S {
		if r >= 0x1100 {
			w += em
		} else {
			w += em / 2
		}
	}
	return w
}

func threshold(fontSize float64) float64 {
	if fontSize <= 0 {
		return 1
	}
	return fontSize * gapRatio
}

func rowTolerance(fontSize float64) float64 {
	if fontSize <= 0 {
		return 1
	}
	return fontSize * rowRatio
}
