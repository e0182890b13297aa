package document

import (
	"time"

	"github.com/google/uuid"
)

// EnsureMetadata stamps identity and provenance on every node that lacks it.
// Existing ids and metadata fields are preserved, so re-running on already
// stamped nodes is a no-op apart from filling gaps. Pure: the input is not
// mutated.
func EnsureMetadata(nodes Document, ownerID string) Document {
	return stamp(nodes, ownerID, time.Now(), false)
}

// MarkOrganized stamps every node as organized, forcing organized=true,
// status=yes and a fresh LastUpdated. Ids are preserved when present.
func MarkOrganized(nodes Document, ownerID string) Document {
	return stamp(nodes, ownerID, time.Now(), true)
}

func stamp(nodes Document, ownerID string, now time.Time, organized bool) Document {
	out := nodes.Clone()
	for i := range out {
		m := out[i].Meta
		if m == nil {
			m = &Meta{}
			out[i].Meta = m
		}
		if m.ID == "" {
			m.ID = newBlockID(ownerID)
			if m.Status == "" {
				m.Status = StatusNotOrganized
			}
			if m.LastUpdated.IsZero() {
				m.LastUpdated = now
			}
		}
		if organized {
			m.Organized = true
			m.Status = StatusOrganized
			m.LastUpdated = now
		} else if m.Status == "" {
			m.Status = StatusNotOrganized
		}
		if m.LastUpdated.IsZero() {
			m.LastUpdated = now
		}
	}
	return out
}

// newBlockID returns an owner-scoped block id. The uuid part guarantees
// uniqueness; the owner prefix makes ids self-describing in stored JSON.
func newBlockID(ownerID string) string {
	prefix := ownerID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return prefix + "-" + uuid.NewString()
}
