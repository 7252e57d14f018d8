package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
	"github.com/heartmarshall/lexiflow-backend/internal/service/importer"
)

// Shown in place of study material until an entry is enriched.
const (
	placeholderPending    = "点击学习时生成详情"
	placeholderProcessing = "AI 解析生成中"
	placeholderFailed     = "AI 解析暂时不可用"
)

type enrichmentResponse struct {
	Detail    string `json:"detail"`
	ExampleEN string `json:"example_en"`
	ExampleCN string `json:"example_cn"`
}

type itemResponse struct {
	ID           uuid.UUID           `json:"id"`
	Position     int                 `json:"position"`
	Term         string              `json:"term"`
	Translation  string              `json:"translation"`
	Status       string              `json:"status"`
	Enrichment   *enrichmentResponse `json:"enrichment,omitempty"`
	Placeholder  string              `json:"placeholder,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	EnrichedAt   *time.Time          `json:"enriched_at,omitempty"`
}

type importResponse struct {
	BookID     uuid.UUID      `json:"book_id"`
	Title      string         `json:"title"`
	Mode       string         `json:"mode"`
	SourceName string         `json:"source_name"`
	Total      int            `json:"total"`
	Scheduled  int            `json:"scheduled"`
	Items      []itemResponse `json:"items"`
}

func toItemResponse(e domain.Entry) itemResponse {
	item := itemResponse{
		ID:          e.ID,
		Position:    e.Position,
		Term:        e.Term,
		Translation: e.Translation,
		Status:      e.Status.String(),
		EnrichedAt:  e.EnrichedAt,
	}
	if e.IsEnriched() {
		item.Enrichment = &enrichmentResponse{
			Detail:    e.Enrichment.Detail,
			ExampleEN: e.Enrichment.ExampleEN,
			ExampleCN: e.Enrichment.ExampleCN,
		}
		return item
	}

	item.Placeholder = placeholder(e.Status)
	if e.ErrorMessage != nil {
		item.ErrorMessage = *e.ErrorMessage
	}
	return item
}

func placeholder(s domain.EntryStatus) string {
	switch s {
	case domain.EntryStatusProcessing:
		return placeholderProcessing
	case domain.EntryStatusFailed:
		return placeholderFailed
	default:
		return placeholderPending
	}
}

func toImportResponse(res *importer.ImportResult) importResponse {
	items := make([]itemResponse, len(res.Entries))
	for i, e := range res.Entries {
		items[i] = toItemResponse(e)
	}
	return importResponse{
		BookID:     res.Book.ID,
		Title:      res.Book.Title,
		Mode:       res.Book.Direction.String(),
		SourceName: res.Book.SourceName,
		Total:      len(items),
		Scheduled:  res.Scheduled,
		Items:      items,
	}
}
