// Package wordlist splits single text lines of a two-column vocabulary list
// into term/translation pairs. Pure functions over strings, no I/O.
package wordlist

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

// separator is a run of ASCII whitespace or Unicode space separators (U+3000 included).
const separator = `[\s\p{Zs}]+`

// alphabetic is a Latin word or phrase: letters, combining marks, digits,
// apostrophes, dots, hyphens, slashes, brackets and inner spaces.
const alphabetic = `\p{Latin}[\p{Latin}\p{M}\d'’.\-/() ]*`

// Default patterns. In forward mode the first group is the term; in reverse
// mode the second one is. The term takes the longest Latin run next to the
// separator, so a translation that starts (forward) or ends (reverse) with a
// Latin word is read as part of the term: "apple iPhone 手机" parses as
// ("apple iPhone", "手机"). Such lists need a custom pattern.
const (
	DefaultForwardPattern = `^(` + alphabetic + `)` + separator + `(.+)$`
	DefaultReversePattern = `^(.+?)` + separator + `(` + alphabetic + `)$`
)

// Patterns overrides the default per-mode expressions. Empty fields keep the defaults.
type Patterns struct {
	Forward string
	Reverse string
}

// Parser matches lines against the pattern of the requested direction.
// It is safe for concurrent use.
type Parser struct {
	forward *regexp.Regexp
	reverse *regexp.Regexp
}

// NewParser compiles the given patterns. Each must have exactly two capture groups.
func NewParser(p Patterns) (*Parser, error) {
	forward, err := compile("forward", p.Forward, DefaultForwardPattern)
	if err != nil {
		return nil, err
	}
	reverse, err := compile("reverse", p.Reverse, DefaultReversePattern)
	if err != nil {
		return nil, err
	}
	return &Parser{forward: forward, reverse: reverse}, nil
}

// Default returns a parser with the built-in patterns.
func Default() *Parser {
	return &Parser{
		forward: regexp.MustCompile(DefaultForwardPattern),
		reverse: regexp.MustCompile(DefaultReversePattern),
	}
}

func compile(name, pattern, fallback string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = fallback
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("wordlist: %s pattern: %w", name, err)
	}
	if re.NumSubexp() != 2 {
		return nil, fmt.Errorf("wordlist: %s pattern must have 2 capture groups, has %d", name, re.NumSubexp())
	}
	return re, nil
}

// ParseLine extracts a pair from one line. Lines that do not fit the shape
// expected by mode (blank lines, headers, page numbers, the other direction)
// report false. Punctuation inside the groups is kept verbatim.
func (p *Parser) ParseLine(line string, mode domain.DirectionMode) (domain.Pair, bool) {
	line = trim(line)
	if line == "" {
		return domain.Pair{}, false
	}

	var re *regexp.Regexp
	switch mode {
	case domain.DirectionForward:
		re = p.forward
	case domain.DirectionReverse:
		re = p.reverse
	default:
		return domain.Pair{}, false
	}

	m := re.FindStringSubmatch(line)
	if m == nil {
		return domain.Pair{}, false
	}

	first, second := trim(m[1]), trim(m[2])
	if first == "" || second == "" {
		return domain.Pair{}, false
	}

	if mode == domain.DirectionReverse {
		return domain.Pair{Term: second, Translation: first}, true
	}
	return domain.Pair{Term: first, Translation: second}, true
}

// Join renders a pair back into a line of the given direction, using a
// single space as separator.
func Join(pair domain.Pair, mode domain.DirectionMode) string {
	if mode == domain.DirectionReverse {
		return pair.Translation + " " + pair.Term
	}
	return pair.Term + " " + pair.Translation
}

func trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff' || r == '\u200b'
	})
}
