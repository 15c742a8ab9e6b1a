package replacer

import "testing"

func TestVictimOnEmptyReplacer(t *testing.T) {
	r := NewLRUReplacer[int]()
	if _, ok := r.Victim(); ok {
		t.Fatalf("expected no victim on empty replacer")
	}
}

func TestVictimReturnsLeastRecentlyUsed(t *testing.T) {
	r := NewLRUReplacer[int]()
	r.Insert(1)
	r.Insert(2)
	r.Insert(3)

	v, ok := r.Victim()
	if !ok || v != 1 {
		t.Fatalf("expected victim 1, got %d (ok=%v)", v, ok)
	}
	v, ok = r.Victim()
	if !ok || v != 2 {
		t.Fatalf("expected victim 2, got %d (ok=%v)", v, ok)
	}
}

func TestInsertMovesExistingEntryToTail(t *testing.T) {
	r := NewLRUReplacer[int]()
	r.Insert(1)
	r.Insert(2)
	r.Insert(3)
	r.Insert(1) // re-touch 1: it should no longer be the next victim

	v, ok := r.Victim()
	if !ok || v != 2 {
		t.Fatalf("expected victim 2 after re-inserting 1, got %d (ok=%v)", v, ok)
	}
}

func TestEraseRemovesEntry(t *testing.T) {
	r := NewLRUReplacer[int]()
	r.Insert(1)
	r.Insert(2)

	if !r.Erase(1) {
		t.Fatalf("expected Erase(1) to report found")
	}
	if r.Erase(1) {
		t.Fatalf("expected second Erase(1) to report not found")
	}

	v, ok := r.Victim()
	if !ok || v != 2 {
		t.Fatalf("expected only remaining victim 2, got %d (ok=%v)", v, ok)
	}
}

func TestSizeTracksLiveEntries(t *testing.T) {
	r := NewLRUReplacer[int]()
	if r.Size() != 0 {
		t.Fatalf("expected empty replacer to have size 0")
	}
	r.Insert(1)
	r.Insert(2)
	if r.Size() != 2 {
		t.Fatalf("expected size 2, got %d", r.Size())
	}
	r.Victim()
	if r.Size() != 1 {
		t.Fatalf("expected size 1 after one victim, got %d", r.Size())
	}
}
