// Package history records and reverts before/after snapshots of AI-driven
// entity mutations.
package history

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/store"
)

// Revert outcome kinds.
const (
	OutcomeDeleted  = "deleted"
	OutcomeReverted = "reverted"
	OutcomeNoop     = "noop"
)

// Outcome describes what a revert did.
type Outcome struct {
	Kind     string `json:"kind"`
	EntityID string `json:"entity_id,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Preview describes what a revert would do, with a risk note.
type Preview struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Risk        string `json:"risk"`
}

// Service reverts recorded history items. Appending happens in the
// organizer; this service owns the undo side.
type Service struct {
	store  store.EntityStore
	bounds store.HistoryBounds
	logger *slog.Logger
}

// NewService creates a history service.
func NewService(st store.EntityStore, bounds store.HistoryBounds, logger *slog.Logger) *Service {
	return &Service{store: st, bounds: bounds, logger: logger}
}

// List returns the owner's history, newest first.
func (s *Service) List(ownerID string) ([]store.HistoryItem, error) {
	return s.store.ListHistory(ownerID)
}

// Revert undoes one recorded mutation. Reverting a creation soft-deletes the
// entity; reverting an update restores the old snapshot and records a
// synthetic update so the revert itself can be reverted. Reverting an item
// that no longer exists is a no-op. All failures are surfaced: there is no
// silent partial revert.
func (s *Service) Revert(ownerID, itemID string) (*Outcome, error) {
	item, err := s.store.GetHistory(ownerID, itemID)
	if errors.Is(err, apperr.ErrNotFound) {
		return &Outcome{Kind: OutcomeNoop}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: load item: %w: %v", apperr.ErrRevert, err)
	}

	switch item.Action {
	case store.ActionCreated:
		if err := s.store.SoftDelete(ownerID, item.EntityID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("history: delete created entity %s: %w: %v", item.EntityID, apperr.ErrRevert, err)
		}
		if err := s.store.DeleteHistory(ownerID, item.ID); err != nil {
			return nil, fmt.Errorf("history: drop item: %w: %v", apperr.ErrRevert, err)
		}
		s.logger.Info("history: creation reverted",
			slog.String("entity", item.EntityID), slog.String("title", item.Title))
		return &Outcome{Kind: OutcomeDeleted, EntityID: item.EntityID, Title: item.Title}, nil

	case store.ActionUpdated:
		organized := anyOrganized(item.OldContent)
		err := s.store.UpdateContent(ownerID, item.EntityID, item.OldContent, item.OldContentText, organized)
		if errors.Is(err, apperr.ErrNotFound) {
			// The entity was soft-deleted since the item was recorded.
			// Restoring its content resurrects it.
			if rerr := s.store.Restore(ownerID, item.EntityID); rerr == nil {
				err = s.store.UpdateContent(ownerID, item.EntityID, item.OldContent, item.OldContentText, organized)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("history: restore %s: %w: %v", item.EntityID, apperr.ErrRevert, err)
		}
		if err := s.store.DeleteHistory(ownerID, item.ID); err != nil {
			return nil, fmt.Errorf("history: drop item: %w: %v", apperr.ErrRevert, err)
		}

		// Record the revert as its own update so it can be undone again.
		_, err = s.store.AppendHistory(store.HistoryItem{
			OwnerID:        ownerID,
			EntityID:       item.EntityID,
			Title:          item.Title,
			Action:         store.ActionUpdated,
			OldContent:     item.NewContent,
			OldContentText: item.NewContentText,
			NewContent:     item.OldContent,
			NewContentText: item.OldContentText,
			Path:           item.Path,
		}, s.bounds)
		if err != nil {
			s.logger.Warn("history: synthetic item append failed",
				slog.String("entity", item.EntityID), slog.String("error", err.Error()))
		}
		s.logger.Info("history: update reverted",
			slog.String("entity", item.EntityID), slog.String("title", item.Title))
		return &Outcome{Kind: OutcomeReverted, EntityID: item.EntityID, Title: item.Title}, nil

	default:
		return nil, fmt.Errorf("history: unknown action %q: %w", item.Action, apperr.ErrRevert)
	}
}

// PreviewRevert describes what reverting an item would do without doing it.
func (s *Service) PreviewRevert(ownerID, itemID string) (*Preview, error) {
	item, err := s.store.GetHistory(ownerID, itemID)
	if err != nil {
		return nil, err
	}

	switch item.Action {
	case store.ActionCreated:
		return &Preview{
			Action:      "delete",
			Description: fmt.Sprintf("Delete %q, which was created by auto-organization", item.Title),
			Risk:        "the file and everything organized into it since will be removed",
		}, nil
	default:
		delta := len(item.NewContentText) - len(item.OldContentText)
		risk := fmt.Sprintf("content shrinks by %d characters", delta)
		if delta < 0 {
			risk = fmt.Sprintf("content grows by %d characters", -delta)
		}
		return &Preview{
			Action:      "restore",
			Description: fmt.Sprintf("Restore %q to its content before the last organization", item.Title),
			Risk:        risk,
		}, nil
	}
}

func anyOrganized(doc document.Document) bool {
	for _, n := range doc {
		if n.Meta != nil && n.Meta.Organized {
			return true
		}
	}
	return false
}
