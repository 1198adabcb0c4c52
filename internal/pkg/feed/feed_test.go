package feed

import (
	"fmt"
	"testing"
)

type note struct {
	ID   string
	Text string
}

func noteKey(n note) string { return n.ID }

func TestAddNewestFirstAndCapped(t *testing.T) {
	h := NewHistory(3, noteKey)

	for i := 1; i <= 5; i++ {
		if !h.Add(note{ID: fmt.Sprintf("n%d", i)}) {
			t.Fatalf("insert n%d rejected", i)
		}
		if h.Len() > 3 {
			t.Fatalf("size exceeded cap after n%d: %d", i, h.Len())
		}
	}

	items := h.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []string{"n5", "n4", "n3"} {
		if items[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, items[i].ID)
		}
	}
	if h.Contains("n1") || h.Contains("n2") {
		t.Fatal("evicted items still tracked")
	}
}

func TestAddDuplicateRejectsAndKeepsPosition(t *testing.T) {
	h := NewHistory(5, noteKey)
	h.Add(note{ID: "a", Text: "first"})
	h.Add(note{ID: "b"})

	if h.Add(note{ID: "a", Text: "second"}) {
		t.Fatal("duplicate insert must be rejected")
	}
	if h.Len() != 2 {
		t.Fatalf("duplicate changed size: %d", h.Len())
	}
	items := h.Items()
	if items[1].ID != "a" || items[1].Text != "first" {
		t.Fatalf("duplicate reordered or replaced original: %+v", items)
	}
}

func TestAddBatchPreservesOrderAndCap(t *testing.T) {
	h := NewHistory(4, noteKey)
	h.Add(note{ID: "old"})

	added := h.AddBatch([]note{{ID: "x"}, {ID: "old"}, {ID: "y"}, {ID: "z"}})
	if added != 3 {
		t.Fatalf("expected 3 inserted, got %d", added)
	}

	items := h.Items()
	want := []string{"x", "y", "z", "old"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i := range want {
		if items[i].ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], items[i].ID)
		}
	}

	// Large batch still respects the single cap.
	h.AddBatch([]note{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"}})
	if h.Len() != 4 {
		t.Fatalf("cap violated after batch: %d", h.Len())
	}
}

func TestAppendBatchKeepsNewestFirst(t *testing.T) {
	h := NewHistory(10, noteKey)
	h.AppendBatch([]note{{ID: "n4"}, {ID: "n3"}})

	added := h.AppendBatch([]note{{ID: "n3"}, {ID: "n2"}, {ID: "n1"}})
	if added != 2 {
		t.Fatalf("expected 2 inserted, got %d", added)
	}

	items := h.Items()
	want := []string{"n4", "n3", "n2", "n1"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i := range want {
		if items[i].ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], items[i].ID)
		}
	}

	// A newer item added later still lands at the head.
	h.Add(note{ID: "n5"})
	if h.Items()[0].ID != "n5" {
		t.Fatalf("live insert did not lead: %+v", h.Items()[0])
	}
}

func TestAppendBatchCapDropsOldest(t *testing.T) {
	h := NewHistory(3, noteKey)
	h.AppendBatch([]note{{ID: "n5"}, {ID: "n4"}})
	h.AppendBatch([]note{{ID: "n3"}, {ID: "n2"}, {ID: "n1"}})

	items := h.Items()
	want := []string{"n5", "n4", "n3"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i := range want {
		if items[i].ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], items[i].ID)
		}
	}
	if h.Contains("n1") || h.Contains("n2") {
		t.Fatal("evicted items still tracked")
	}
}

func TestUpdateInPlace(t *testing.T) {
	h := NewHistory(3, noteKey)
	h.Add(note{ID: "a", Text: "v1"})
	h.Add(note{ID: "b"})

	if !h.Update(note{ID: "a", Text: "v2"}) {
		t.Fatal("update of existing item failed")
	}
	items := h.Items()
	if items[1].ID != "a" || items[1].Text != "v2" {
		t.Fatalf("update changed order or missed item: %+v", items)
	}
	if h.Update(note{ID: "missing"}) {
		t.Fatal("update of absent item must report false")
	}
}

func TestRemove(t *testing.T) {
	h := NewHistory(3, noteKey)
	h.Add(note{ID: "a"})
	h.Add(note{ID: "b"})

	if !h.Remove("a") {
		t.Fatal("remove failed")
	}
	if h.Len() != 1 || h.Contains("a") {
		t.Fatal("item not removed")
	}
	if h.Remove("a") {
		t.Fatal("second remove must report false")
	}

	// Identity is free for reinsertion after removal.
	if !h.Add(note{ID: "a", Text: "again"}) {
		t.Fatal("reinsert after remove rejected")
	}
}
