package domain

import "strings"

// DirectionMode decides which column of a word list holds the term.
type DirectionMode string

const (
	// DirectionForward is term first ("apple 苹果").
	DirectionForward DirectionMode = "en_cn"
	// DirectionReverse is translation first ("苹果 apple").
	DirectionReverse DirectionMode = "cn_en"
)

func (m DirectionMode) String() string { return string(m) }

func (m DirectionMode) IsValid() bool {
	switch m {
	case DirectionForward, DirectionReverse:
		return true
	}
	return false
}

// ParseDirectionMode accepts the wire names case-insensitively.
// An empty string yields def.
func ParseDirectionMode(s string, def DirectionMode) (DirectionMode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def, def.IsValid()
	}
	m := DirectionMode(s)
	return m, m.IsValid()
}

// EntryStatus is the enrichment lifecycle of an entry.
type EntryStatus string

const (
	EntryStatusPending    EntryStatus = "pending"
	EntryStatusProcessing EntryStatus = "processing"
	EntryStatusCompleted  EntryStatus = "completed"
	EntryStatusFailed     EntryStatus = "failed"
)

func (s EntryStatus) String() string { return string(s) }

func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusPending, EntryStatusProcessing, EntryStatusCompleted, EntryStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further enrichment transition is expected.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusCompleted || s == EntryStatusFailed
}
