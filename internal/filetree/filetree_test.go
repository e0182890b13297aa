package filetree

import (
	"testing"

	"github.com/starford/raido/internal/store"
)

func TestBuildComputesPaths(t *testing.T) {
	roots := Build([]store.Entity{
		{ID: "1", Title: "Projects", Kind: store.KindFolder},
		{ID: "2", Title: "Go", Kind: store.KindFolder, ParentID: "1"},
		{ID: "3", Title: "Notes", Kind: store.KindFile, ParentID: "2"},
		{ID: "4", Title: "Inbox", Kind: store.KindFile},
	})

	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	// Folder before file at the root level.
	if roots[0].Title != "Projects" || roots[1].Title != "Inbox" {
		t.Fatalf("unexpected root order: %s, %s", roots[0].Title, roots[1].Title)
	}

	goDir := roots[0].Children[0]
	if goDir.Path != "/Projects/Go" {
		t.Errorf("expected /Projects/Go, got %q", goDir.Path)
	}
	if goDir.Children[0].Path != "/Projects/Go/Notes" {
		t.Errorf("expected /Projects/Go/Notes, got %q", goDir.Children[0].Path)
	}
}

func TestBuildOrphanBecomesRoot(t *testing.T) {
	roots := Build([]store.Entity{
		{ID: "1", Title: "Stray", Kind: store.KindFile, ParentID: "missing"},
	})
	if len(roots) != 1 || roots[0].Path != "/Stray" {
		t.Fatalf("orphan not promoted to root: %+v", roots)
	}
}

func TestSerializeIndentedListing(t *testing.T) {
	roots := Build([]store.Entity{
		{ID: "1", Title: "Work", Kind: store.KindFolder},
		{ID: "2", Title: "Todo", Kind: store.KindFile, ParentID: "1"},
		{ID: "3", Title: "Inbox", Kind: store.KindFile},
	})

	want := "[DIR] Work\n  [FILE] Todo\n[FILE] Inbox\n"
	if got := Serialize(roots); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	entities := []store.Entity{
		{ID: "b", Title: "beta", Kind: store.KindFile},
		{ID: "a", Title: "Alpha", Kind: store.KindFile},
	}
	first := Serialize(Build(entities))
	second := Serialize(Build(entities))
	if first != second {
		t.Error("serialization not deterministic")
	}
	if first != "[FILE] Alpha\n[FILE] beta\n" {
		t.Errorf("unexpected listing: %q", first)
	}
}
