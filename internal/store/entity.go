package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/document"
)

// Entity kinds.
const (
	KindFile   = "file"
	KindFolder = "folder"
)

// maxDepth bounds the ancestor walk when computing paths. Hierarchies this
// deep are either corrupt or cyclic.
const maxDepth = 64

// Entity is a file or folder record with content and hierarchy position.
// ParentID is empty for root-level entities.
type Entity struct {
	ID          string
	OwnerID     string
	Title       string
	Kind        string
	ParentID    string
	Content     document.Document
	ContentText string
	Organized   bool
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const entityCols = `id, owner_id, title, kind, parent_id, content, content_text, organized, deleted, created_at, updated_at`

func scanEntity(row interface{ Scan(...any) error }) (*Entity, error) {
	var e Entity
	var content string
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Kind, &e.ParentID,
		&content, &e.ContentText, &e.Organized, &e.Deleted, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if content != "" {
		if err := json.Unmarshal([]byte(content), &e.Content); err != nil {
			return nil, fmt.Errorf("store: decode content for %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

// InsertEntity creates a new entity and returns it with id and timestamps set.
func (db *DB) InsertEntity(e Entity) (*Entity, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	content, err := json.Marshal(e.Content)
	if err != nil {
		return nil, fmt.Errorf("store: encode content: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO entities (id, owner_id, title, kind, parent_id, content, content_text, organized, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, e.ID, e.OwnerID, e.Title, e.Kind, e.ParentID, string(content), e.ContentText, e.Organized, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, apperr.ErrAlreadyExists
		}
		return nil, fmt.Errorf("store: insert entity: %w", err)
	}
	return &e, nil
}

// GetEntity returns an entity by id, scoped to the owner. Soft-deleted
// entities are not returned.
func (db *DB) GetEntity(ownerID, id string) (*Entity, error) {
	row := db.conn.QueryRow(`SELECT `+entityCols+` FROM entities WHERE id = ? AND owner_id = ? AND deleted = 0`, id, ownerID)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get entity: %w", err)
	}
	return e, nil
}

// ChildByTitle looks up a child of parentID by title: case-sensitive first,
// then a case-insensitive fallback.
func (db *DB) ChildByTitle(ownerID, parentID, kind, title string) (*Entity, error) {
	row := db.conn.QueryRow(`
		SELECT `+entityCols+` FROM entities
		WHERE owner_id = ? AND parent_id = ? AND kind = ? AND title = ? AND deleted = 0
		LIMIT 1`, ownerID, parentID, kind, title)
	e, err := scanEntity(row)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: child lookup: %w", err)
	}

	row = db.conn.QueryRow(`
		SELECT `+entityCols+` FROM entities
		WHERE owner_id = ? AND parent_id = ? AND kind = ? AND title = ? COLLATE NOCASE AND deleted = 0
		LIMIT 1`, ownerID, parentID, kind, title)
	e, err = scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: child lookup (nocase): %w", err)
	}
	return e, nil
}

// UpdateContent overwrites an entity's content, text, and organized flag.
func (db *DB) UpdateContent(ownerID, id string, content document.Document, contentText string, organized bool) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("store: encode content: %w", err)
	}
	res, err := db.conn.Exec(`
		UPDATE entities SET content = ?, content_text = ?, organized = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND deleted = 0
	`, string(data), contentText, organized, time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("store: update content: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SoftDelete marks an entity as deleted without removing the row.
func (db *DB) SoftDelete(ownerID, id string) error {
	res, err := db.conn.Exec(`
		UPDATE entities SET deleted = 1, updated_at = ? WHERE id = ? AND owner_id = ? AND deleted = 0
	`, time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("store: soft delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Restore clears the deleted flag on an entity.
func (db *DB) Restore(ownerID, id string) error {
	res, err := db.conn.Exec(`
		UPDATE entities SET deleted = 0, updated_at = ? WHERE id = ? AND owner_id = ? AND deleted = 1
	`, time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("store: restore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListEntities returns all live entities for an owner, ordered by kind
// (folders first) then title.
func (db *DB) ListEntities(ownerID string) ([]Entity, error) {
	rows, err := db.conn.Query(`
		SELECT `+entityCols+` FROM entities
		WHERE owner_id = ? AND deleted = 0
		ORDER BY CASE kind WHEN 'folder' THEN 0 ELSE 1 END, title COLLATE NOCASE
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan entity: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// PathOf returns the slash-delimited path of an entity: the parent chain of
// titles down to the entity itself. The ancestor walk is cycle-checked.
func (db *DB) PathOf(ownerID string, e *Entity) (string, error) {
	segments := []string{e.Title}
	seen := map[string]struct{}{e.ID: {}}

	parent := e.ParentID
	for depth := 0; parent != ""; depth++ {
		if depth >= maxDepth {
			return "", fmt.Errorf("store: path of %s: hierarchy too deep", e.ID)
		}
		if _, ok := seen[parent]; ok {
			return "", fmt.Errorf("store: path of %s: cycle at %s", e.ID, parent)
		}
		seen[parent] = struct{}{}

		var title, next string
		err := db.conn.QueryRow(`SELECT title, parent_id FROM entities WHERE id = ? AND owner_id = ?`, parent, ownerID).
			Scan(&title, &next)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("store: path of %s: %w", e.ID, err)
		}
		segments = append([]string{title}, segments...)
		parent = next
	}
	return "/" + strings.Join(segments, "/"), nil
}
