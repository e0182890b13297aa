package api

import (
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/organizer"
	"github.com/starford/raido/internal/routing"
	"github.com/starford/raido/internal/store"
)

// RefineRequest is the request body for refinement validation.
type RefineRequest struct {
	Text        string                `json:"text"`
	Edits       []document.Edit       `json:"edits"`
	Refinements []document.Refinement `json:"refinements"`
}

// RefineResponse carries the final text and any rejected-refinement notes.
type RefineResponse struct {
	Text   string   `json:"text"`
	Errors []string `json:"errors"`
}

// OrganizeRequest is the request body for an organize pass.
type OrganizeRequest struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Rules   string `json:"rules,omitempty"`
}

// OrganizeResponse wraps the pass report with the cache version the client
// can use to discard stale results.
type OrganizeResponse struct {
	Created []organizer.EntityRef `json:"created"`
	Updated []organizer.EntityRef `json:"updated"`
	Version uint64                `json:"version"`
}

// SuggestionsResponse wraps ranked destination candidates.
type SuggestionsResponse struct {
	Suggestions []routing.Suggestion `json:"suggestions"`
	Cached      bool                 `json:"cached"`
}

// EntityResponse is the API view of one entity.
type EntityResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	ParentID    string `json:"parent_id,omitempty"`
	Path        string `json:"path"`
	ContentText string `json:"content_text"`
	Organized   bool   `json:"organized"`
}

// HistoryItemResponse is the API view of one history item.
type HistoryItemResponse struct {
	ID        string `json:"id"`
	EntityID  string `json:"entity_id"`
	Title     string `json:"title"`
	Action    string `json:"action"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
}

func toHistoryItemResponse(h store.HistoryItem) HistoryItemResponse {
	return HistoryItemResponse{
		ID:        h.ID,
		EntityID:  h.EntityID,
		Title:     h.Title,
		Action:    h.Action,
		Path:      h.Path,
		CreatedAt: h.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// StateResponse reports the cache state machine.
type StateResponse struct {
	State   string `json:"state"`
	Version uint64 `json:"version"`
}
