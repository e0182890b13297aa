package document

import (
	"strings"
	"testing"
)

func TestEnsureMetadataStampsMissing(t *testing.T) {
	doc := FromText("first\n\nsecond")

	stamped := EnsureMetadata(doc, "owner-1234")
	for i, n := range stamped {
		if n.Meta == nil {
			t.Fatalf("node %d: metadata not stamped", i)
		}
		if n.Meta.ID == "" {
			t.Errorf("node %d: empty id", i)
		}
		if !strings.HasPrefix(n.Meta.ID, "owner-12-") {
			t.Errorf("node %d: id %q lacks owner prefix", i, n.Meta.ID)
		}
		if n.Meta.Organized {
			t.Errorf("node %d: fresh stamp must not be organized", i)
		}
		if n.Meta.Status != StatusNotOrganized {
			t.Errorf("node %d: expected status %q, got %q", i, StatusNotOrganized, n.Meta.Status)
		}
		if n.Meta.LastUpdated.IsZero() {
			t.Errorf("node %d: zero LastUpdated", i)
		}
	}

	// Input must not be mutated.
	for i, n := range doc {
		if n.Meta != nil {
			t.Errorf("node %d: input document was mutated", i)
		}
	}
}

func TestEnsureMetadataIdempotent(t *testing.T) {
	first := EnsureMetadata(FromText("a\n\nb\n\nc"), "o")
	second := EnsureMetadata(first, "o")

	for i := range first {
		if first[i].Meta.ID != second[i].Meta.ID {
			t.Errorf("node %d: id changed on re-stamp: %q vs %q", i, first[i].Meta.ID, second[i].Meta.ID)
		}
		if first[i].Meta.LastUpdated != second[i].Meta.LastUpdated {
			t.Errorf("node %d: LastUpdated changed on re-stamp", i)
		}
	}
}

func TestMarkOrganizedForcesStatus(t *testing.T) {
	doc := EnsureMetadata(FromText("a\n\nb"), "o")
	doc[1].Meta.Organized = true
	doc[1].Meta.Status = StatusOrganized

	marked := MarkOrganized(doc, "o")
	for i, n := range marked {
		if !n.Meta.Organized || n.Meta.Status != StatusOrganized {
			t.Errorf("node %d: not marked organized: %+v", i, n.Meta)
		}
		if n.Meta.ID != doc[i].Meta.ID {
			t.Errorf("node %d: id changed", i)
		}
	}
}

func TestBlockIDsUnique(t *testing.T) {
	doc := EnsureMetadata(FromText("a\n\nb\n\nc\n\nd"), "o")
	seen := make(map[string]bool)
	for _, n := range doc {
		if seen[n.Meta.ID] {
			t.Fatalf("duplicate block id %q", n.Meta.ID)
		}
		seen[n.Meta.ID] = true
	}
}
