// Package pdftest builds small but well-formed PDF files for tests.
//
// Every page gets two fonts: /F1 is Helvetica without a Widths array, the
// way most generators reference the standard fonts, and /F2 is Courier with
// explicit 600-unit widths for ASCII.
package pdftest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Build returns a PDF with one page per content stream.
func Build(pages ...string) []byte {
	var b strings.Builder
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, b.Len())
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	b.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /FirstChar 32 /LastChar 126 /Widths [" +
		strings.TrimSpace(strings.Repeat("600 ", 95)) + "] >>")

	for i, content := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R "+
			"/Resources << /Font << /F1 3 0 R /F2 4 0 R >> >> >>", 6+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(offsets)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%s\n%%%%EOF\n", len(offsets)+1, strconv.Itoa(xref))
	return []byte(b.String())
}

// TwoColumns is a content stream drawing one row per pair, left column at
// x=72 and right column at x=272, each cell placed with Td.
func TwoColumns(font string, rows ...[2]string) string {
	var b strings.Builder
	y := 700
	for _, r := range rows {
		fmt.Fprintf(&b, "BT /%s 12 Tf %d %d Td (%s) Tj 200 0 Td (%s) Tj ET\n", font, 72, y, escape(r[0]), escape(r[1]))
		y -= 20
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Write stores a PDF built from pages in a temp dir and returns its path.
func Write(t testing.TB, pages ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "list.pdf")
	if err := os.WriteFile(path, Build(pages...), 0o600); err != nil {
		t.Fatalf("pdftest: write: %v", err)
	}
	return path
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(s)
}
