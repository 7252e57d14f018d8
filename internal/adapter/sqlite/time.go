package sqlite

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

// Timestamps are stored as UTC Unix nanoseconds.

func nowNano() int64 {
	return time.Now().UnixNano()
}

func fromNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func sortByDocumentOrder(entries []domain.Entry) {
	slices.SortFunc(entries, func(a, b domain.Entry) int {
		return cmp.Or(
			a.CreatedAt.Compare(b.CreatedAt),
			strings.Compare(a.BookID.String(), b.BookID.String()),
			cmp.Compare(a.Position, b.Position),
		)
	})
}
