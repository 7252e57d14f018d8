package domain

import "strings"

// Enrichment is the AI-generated study material for an entry.
// The three fields are always set together.
type Enrichment struct {
	Detail    string
	ExampleEN string
	ExampleCN string
}

// IsComplete reports whether all three fields carry text.
func (e Enrichment) IsComplete() bool {
	return strings.TrimSpace(e.Detail) != "" &&
		strings.TrimSpace(e.ExampleEN) != "" &&
		strings.TrimSpace(e.ExampleCN) != ""
}

// EnrichmentStats holds per-status entry counts of a book.
type EnrichmentStats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Total      int
}

// Add counts n entries in status s.
func (s *EnrichmentStats) Add(status EntryStatus, n int) {
	switch status {
	case EntryStatusPending:
		s.Pending += n
	case EntryStatusProcessing:
		s.Processing += n
	case EntryStatusCompleted:
		s.Completed += n
	case EntryStatusFailed:
		s.Failed += n
	}
	s.Total += n
}
