package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
)

func TestAppendHistoryReplacesPerEntity(t *testing.T) {
	db := testDB(t)
	bounds := HistoryBounds{MaxItems: 50, Retention: 7 * 24 * time.Hour}

	first, err := db.AppendHistory(HistoryItem{
		OwnerID: "o1", EntityID: "e1", Title: "Notes", Action: ActionCreated, Path: "/Notes",
	}, bounds)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := db.AppendHistory(HistoryItem{
		OwnerID: "o1", EntityID: "e1", Title: "Notes", Action: ActionUpdated, Path: "/Notes",
	}, bounds)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	list, err := db.ListHistory("o1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one live item per entity, got %d", len(list))
	}
	if list[0].ID != second.ID || list[0].Action != ActionUpdated {
		t.Errorf("expected newest item to survive, got %+v", list[0])
	}
	if _, err := db.GetHistory("o1", first.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("replaced item still present: %v", err)
	}
}

func TestAppendHistoryEnforcesMaxItems(t *testing.T) {
	db := testDB(t)
	bounds := HistoryBounds{MaxItems: 3}

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := db.AppendHistory(HistoryItem{
			OwnerID:   "o1",
			EntityID:  fmt.Sprintf("e%d", i),
			Title:     fmt.Sprintf("Entity %d", i),
			Action:    ActionUpdated,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}, bounds)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	list, err := db.ListHistory("o1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 items after pruning, got %d", len(list))
	}
	// Newest first: e4, e3, e2.
	for i, want := range []string{"e4", "e3", "e2"} {
		if list[i].EntityID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, list[i].EntityID)
		}
	}
}

func TestAppendHistoryRetentionCutoff(t *testing.T) {
	db := testDB(t)
	bounds := HistoryBounds{MaxItems: 50, Retention: time.Hour}

	if _, err := db.AppendHistory(HistoryItem{
		OwnerID: "o1", EntityID: "old", Action: ActionUpdated,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}, bounds); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AppendHistory(HistoryItem{
		OwnerID: "o1", EntityID: "fresh", Action: ActionUpdated,
	}, bounds); err != nil {
		t.Fatal(err)
	}

	list, err := db.ListHistory("o1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].EntityID != "fresh" {
		t.Errorf("expected only the fresh item, got %+v", list)
	}
}

func TestDeleteHistoryAbsentIsNoop(t *testing.T) {
	db := testDB(t)
	if err := db.DeleteHistory("o1", "does-not-exist"); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestHistoryOwnerScoping(t *testing.T) {
	db := testDB(t)

	item, err := db.AppendHistory(HistoryItem{OwnerID: "o1", EntityID: "e1", Action: ActionCreated}, HistoryBounds{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetHistory("o2", item.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong owner, got %v", err)
	}
	list, err := db.ListHistory("o2")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list for other owner, got %d", len(list))
	}
}
