package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/document"
)

// History actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// HistoryItem is one recorded before/after snapshot of an entity mutation.
// At most one live item exists per entity: a new insert replaces any prior
// item for the same entity.
type HistoryItem struct {
	ID             string
	OwnerID        string
	EntityID       string
	Title          string
	Action         string
	OldContent     document.Document
	OldContentText string
	NewContent     document.Document
	NewContentText string
	Path           string
	CreatedAt      time.Time
}

// HistoryBounds limits history retention per owner.
type HistoryBounds struct {
	MaxItems  int
	Retention time.Duration
}

// AppendHistory records an item, replacing any prior item for the same
// entity, then prunes to the owner's bounds within one transaction.
func (db *DB) AppendHistory(item HistoryItem, bounds HistoryBounds) (*HistoryItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	oldContent, err := json.Marshal(item.OldContent)
	if err != nil {
		return nil, fmt.Errorf("store: encode old content: %w", err)
	}
	newContent, err := json.Marshal(item.NewContent)
	if err != nil {
		return nil, fmt.Errorf("store: encode new content: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// One live item per entity: latest wins.
	_, _ = tx.Exec(`DELETE FROM history WHERE owner_id = ? AND entity_id = ?`, item.OwnerID, item.EntityID)

	_, err = tx.Exec(`
		INSERT INTO history (id, owner_id, entity_id, title, action, old_content, old_content_text, new_content, new_content_text, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.OwnerID, item.EntityID, item.Title, item.Action,
		string(oldContent), item.OldContentText, string(newContent), item.NewContentText,
		item.Path, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert history: %w", err)
	}

	if bounds.Retention > 0 {
		cutoff := time.Now().UTC().Add(-bounds.Retention)
		_, _ = tx.Exec(`DELETE FROM history WHERE owner_id = ? AND created_at < ?`, item.OwnerID, cutoff)
	}
	if bounds.MaxItems > 0 {
		_, _ = tx.Exec(`
			DELETE FROM history WHERE owner_id = ? AND id NOT IN (
				SELECT id FROM history WHERE owner_id = ? ORDER BY created_at DESC, id LIMIT ?
			)`, item.OwnerID, item.OwnerID, bounds.MaxItems)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit history: %w", err)
	}
	return &item, nil
}

const historyCols = `id, owner_id, entity_id, title, action, old_content, old_content_text, new_content, new_content_text, path, created_at`

func scanHistory(row interface{ Scan(...any) error }) (*HistoryItem, error) {
	var h HistoryItem
	var oldContent, newContent string
	err := row.Scan(&h.ID, &h.OwnerID, &h.EntityID, &h.Title, &h.Action,
		&oldContent, &h.OldContentText, &newContent, &h.NewContentText, &h.Path, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(oldContent), &h.OldContent); err != nil {
		return nil, fmt.Errorf("store: decode old content: %w", err)
	}
	if err := json.Unmarshal([]byte(newContent), &h.NewContent); err != nil {
		return nil, fmt.Errorf("store: decode new content: %w", err)
	}
	return &h, nil
}

// ListHistory returns an owner's history items, newest first.
func (db *DB) ListHistory(ownerID string) ([]HistoryItem, error) {
	rows, err := db.conn.Query(`SELECT `+historyCols+` FROM history WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryItem
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// GetHistory returns one history item by id, scoped to the owner.
func (db *DB) GetHistory(ownerID, id string) (*HistoryItem, error) {
	row := db.conn.QueryRow(`SELECT `+historyCols+` FROM history WHERE id = ? AND owner_id = ?`, id, ownerID)
	h, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get history: %w", err)
	}
	return h, nil
}

// DeleteHistory removes one history item. Deleting an absent item is a no-op.
func (db *DB) DeleteHistory(ownerID, id string) error {
	_, err := db.conn.Exec(`DELETE FROM history WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("store: delete history: %w", err)
	}
	return nil
}
