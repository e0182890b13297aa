package store

import "github.com/starford/raido/internal/document"

// EntityStore defines the datastore operations used by the organization
// engine. Consumers should depend on this interface rather than the concrete
// *DB type to facilitate testing with mocks.
type EntityStore interface {
	InsertEntity(e Entity) (*Entity, error)
	GetEntity(ownerID, id string) (*Entity, error)
	ChildByTitle(ownerID, parentID, kind, title string) (*Entity, error)
	UpdateContent(ownerID, id string, content document.Document, contentText string, organized bool) error
	SoftDelete(ownerID, id string) error
	Restore(ownerID, id string) error
	ListEntities(ownerID string) ([]Entity, error)
	PathOf(ownerID string, e *Entity) (string, error)

	AppendHistory(item HistoryItem, bounds HistoryBounds) (*HistoryItem, error)
	ListHistory(ownerID string) ([]HistoryItem, error)
	GetHistory(ownerID, id string) (*HistoryItem, error)
	DeleteHistory(ownerID, id string) error

	Close() error
}

// Verify *DB satisfies EntityStore at compile time.
var _ EntityStore = (*DB)(nil)
