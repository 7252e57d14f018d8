package pdftext

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

// ContentText returns the text shown by a page content stream. Glyph runs on
// the same baseline are joined with a space, a baseline change starts a new line.
func ContentText(data []byte) string {
	in := interpreter{sc: scanner{data: data}}
	in.run()
	return strings.TrimSpace(in.out.String())
}

// TJ adjustments below this (thousandths of text space) read as a word gap.
const tjGap = -250

const baselineEpsilon = 0.5

type operandKind int

const (
	kindNumber operandKind = iota
	kindString
	kindName
	kindArray
	kindMark
)

type operand struct {
	kind operandKind
	num  float64
	str  string
	arr  []operand
}

type interpreter struct {
	sc    scanner
	stack []operand
	out   strings.Builder

	y, lastY float64
	leading  float64
	moved    bool
	newLine  bool
	written  bool
}

func (in *interpreter) run() {
	for {
		tok, ok := in.sc.next()
		if !ok {
			return
		}
		switch tok.kind {
		case tokArrayOpen:
			in.stack = append(in.stack, operand{kind: kindMark})
		case tokArrayClose:
			in.closeArray()
		case tokOperand:
			in.stack = append(in.stack, tok.op)
		case tokOperator:
			in.apply(tok.word)
			in.stack = in.stack[:0]
		}
	}
}

func (in *interpreter) closeArray() {
	i := len(in.stack) - 1
	for i >= 0 && in.stack[i].kind != kindMark {
		i--
	}
	if i < 0 {
		return
	}
	items := append([]operand(nil), in.stack[i+1:]...)
	in.stack = append(in.stack[:i], operand{kind: kindArray, arr: items})
}

func (in *interpreter) apply(op string) {
	switch op {
	case "BT":
		in.y = 0
		in.moved = true
	case "Td", "TD":
		if ty, ok := in.number(1); ok {
			in.y += ty
			if op == "TD" {
				in.leading = -ty
			}
		}
		in.moved = true
	case "Tm":
		if f, ok := in.number(5); ok {
			in.y = f
		}
		in.moved = true
	case "TL":
		if tl, ok := in.number(0); ok {
			in.leading = tl
		}
	case "T*":
		in.nextLine()
	case "Tj":
		in.show(in.lastString())
	case "'", `"`:
		in.nextLine()
		in.show(in.lastString())
	case "TJ":
		in.showArray()
	case "ID":
		in.sc.skipInlineImage()
	}
}

func (in *interpreter) nextLine() {
	in.y -= in.leading
	in.newLine = true
	in.moved = true
}

func (in *interpreter) separate() {
	if !in.written {
		return
	}
	switch {
	case in.newLine || math.Abs(in.y-in.lastY) > baselineEpsilon:
		in.out.WriteByte('\n')
	case in.moved:
		in.out.WriteByte(' ')
	}
}

func (in *interpreter) show(s string) {
	if s == "" {
		return
	}
	in.separate()
	in.write(s)
}

func (in *interpreter) showArray() {
	if len(in.stack) == 0 || in.stack[len(in.stack)-1].kind != kindArray {
		return
	}
	first := true
	gap := false
	for _, item := range in.stack[len(in.stack)-1].arr {
		switch item.kind {
		case kindNumber:
			if item.num < tjGap {
				gap = true
			}
		case kindString:
			if item.str == "" {
				continue
			}
			if first {
				in.separate()
				first = false
			} else if gap {
				in.out.WriteByte(' ')
			}
			gap = false
			in.write(item.str)
		}
	}
}

func (in *interpreter) write(s string) {
	in.out.WriteString(s)
	in.lastY = in.y
	in.written = true
	in.moved = false
	in.newLine = false
}

// number returns operand i counted from the first operand of the current operator.
func (in *interpreter) number(i int) (float64, bool) {
	if i >= len(in.stack) || in.stack[i].kind != kindNumber {
		return 0, false
	}
	return in.stack[i].num, true
}

func (in *interpreter) lastString() string {
	if len(in.stack) == 0 {
		return ""
	}
	if top := in.stack[len(in.stack)-1]; top.kind == kindString {
		return top.str
	}
	return ""
}

type tokenKind int

const (
	tokOperand tokenKind = iota
	tokOperator
	tokArrayOpen
	tokArrayClose
)

type token struct {
	kind tokenKind
	op   operand
	word string
}

type scanner struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *scanner) next() (token, bool) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isWhite(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			return token{kind: tokOperand, op: operand{kind: kindString, str: decodeText(s.literal())}}, true
		case c == '<':
			if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
				s.pos += 2
				continue
			}
			return token{kind: tokOperand, op: operand{kind: kindString, str: decodeText(s.hex())}}, true
		case c == '>':
			s.pos++
		case c == '[':
			s.pos++
			return token{kind: tokArrayOpen}, true
		case c == ']':
			s.pos++
			return token{kind: tokArrayClose}, true
		case c == '{' || c == '}' || c == ')':
			s.pos++
		case c == '/':
			s.pos++
			return token{kind: tokOperand, op: operand{kind: kindName, str: s.word()}}, true
		default:
			w := s.word()
			if w == "" {
				s.pos++
				continue
			}
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokOperand, op: operand{kind: kindNumber, num: n}}, true
			}
			return token{kind: tokOperator, word: w}, true
		}
	}
	return token{}, false
}

func (s *scanner) word() string {
	start := s.pos
	for s.pos < len(s.data) && !isWhite(s.data[s.pos]) && !isDelim(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal reads a balanced (...) string and resolves its escapes.
func (s *scanner) literal() []byte {
	s.pos++ // (
	depth := 1
	var out []byte
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return out
			}
			out = s.escape(out)
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (s *scanner) escape(out []byte) []byte {
	c := s.data[s.pos]
	s.pos++
	switch c {
	case 'n':
		return append(out, '\n')
	case 'r':
		return append(out, '\r')
	case 't':
		return append(out, '\t')
	case 'b':
		return append(out, '\b')
	case 'f':
		return append(out, '\f')
	case '\r':
		if s.pos < len(s.data) && s.data[s.pos] == '\n' {
			s.pos++
		}
		return out
	case '\n':
		return out
	}
	if c >= '0' && c <= '7' {
		val := int(c - '0')
		for k := 0; k < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; k++ {
			val = val*8 + int(s.data[s.pos]-'0')
			s.pos++
		}
		return append(out, byte(val))
	}
	return append(out, c)
}

func (s *scanner) hex() []byte {
	s.pos++ // <
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		if c := s.data[s.pos]; !isWhite(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage jumps past binary inline image data up to the EI keyword.
func (s *scanner) skipInlineImage() {
	idx := bytes.Index(s.data[s.pos:], []byte("EI"))
	for idx >= 0 {
		end := s.pos + idx
		if (end == 0 || isWhite(s.data[end-1])) && (end+2 == len(s.data) || isWhite(s.data[end+2])) {
			s.pos = end + 2
			return
		}
		next := bytes.Index(s.data[end+2:], []byte("EI"))
		if next < 0 {
			break
		}
		idx = end + 2 + next - s.pos
	}
	s.pos = len(s.data)
}

var (
	utf16Decoder = xunicode.UTF16(xunicode.BigEndian, xunicode.ExpectBOM)
	winAnsi      = charmap.Windows1252
)

// decodeText turns PDF string bytes into UTF-8: UTF-16BE with a BOM, plain
// UTF-8, or WinAnsi for everything else.
func decodeText(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		if out, err := utf16Decoder.NewDecoder().Bytes(raw); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	out, err := winAnsi.NewDecoder().Bytes(raw)
	if err != nil {
		return string(bytes.ToValidUTF8(raw, nil))
	}
	return string(out)
}
