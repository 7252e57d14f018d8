package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pair is one word/translation line recovered from a document.
type Pair struct {
	Term        string
	Translation string
}

// Entry is a vocabulary item inside a book.
// Enrichment is nil unless Status is EntryStatusCompleted.
type Entry struct {
	ID           uuid.UUID
	BookID       uuid.UUID
	Position     int
	Term         string
	Translation  string
	Enrichment   *Enrichment
	Status       EntryStatus
	ErrorMessage *string
	EnrichedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsEnriched returns true if the entry carries AI-generated content.
func (e *Entry) IsEnriched() bool {
	return e.Status == EntryStatusCompleted && e.Enrichment != nil
}

// Book is the persisted result of one import.
type Book struct {
	ID         uuid.UUID
	Title      string
	Direction  DirectionMode
	SourceName string
	EntryCount int
	CreatedAt  time.Time
}

// NewEntries turns extracted pairs into pending entries of a book,
// preserving document order in Position.
func NewEntries(bookID uuid.UUID, pairs []Pair, now time.Time) []Entry {
	entries := make([]Entry, len(pairs))
	for i, p := range pairs {
		entries[i] = Entry{
			ID:          uuid.New(),
			BookID:      bookID,
			Position:    i,
			Term:        p.Term,
			Translation: p.Translation,
			Status:      EntryStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return entries
}
