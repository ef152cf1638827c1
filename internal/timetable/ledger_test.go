package timetable

import "testing"

func TestUsageLedgerOccupiedAfterMerge(t *testing.T) {
	l := NewUsageLedger()
	merged := l.Merge([]Allocation{
		{Kind: KindTheory, Room: "R101", Day: Monday, Slot: 0},
	})

	if l.Occupied(KindTheory, "R101", Monday, 0) {
		t.Fatal("Merge must not mutate the receiver")
	}
	if !merged.Occupied(KindTheory, "R101", Monday, 0) {
		t.Fatal("merged ledger should report the allocation as occupied")
	}
	if merged.Occupied(KindTheory, "R101", Tuesday, 0) {
		t.Fatal("a different day must remain free")
	}
	if merged.Occupied(KindLab, "R101", Monday, 0) {
		t.Fatal("a different kind must remain free")
	}
}

func TestUsageLedgerMergeIsAdditiveAndDeduplicates(t *testing.T) {
	l := NewUsageLedger().Merge([]Allocation{
		{Kind: KindTheory, Room: "R101", Day: Monday, Slot: 0},
	})
	l = l.Merge([]Allocation{
		{Kind: KindTheory, Room: "R101", Day: Monday, Slot: 0},
		{Kind: KindTheory, Room: "R101", Day: Monday, Slot: 1},
	})
	if !l.Occupied(KindTheory, "R101", Monday, 0) || !l.Occupied(KindTheory, "R101", Monday, 1) {
		t.Fatal("both allocations should be occupied after the second merge")
	}
}

func TestUsageLedgerFreeCount(t *testing.T) {
	l := NewUsageLedger().Merge([]Allocation{
		{Kind: KindTheory, Room: "R101", Day: Monday, Slot: 0},
		{Kind: KindTheory, Room: "R101", Day: Tuesday, Slot: 0},
	})
	days := []Day{Monday, Tuesday, Wednesday}
	free := l.FreeCount(KindTheory, "R101", days, 7)
	if want := len(days)*7 - 2; free != want {
		t.Fatalf("got free=%d, want %d", free, want)
	}

	// An untouched room reports every slot free.
	if got := l.FreeCount(KindTheory, "R999", days, 7); got != len(days)*7 {
		t.Fatalf("untouched room: got %d, want %d", got, len(days)*7)
	}
}

func TestUsageLedgerCloneIsIndependent(t *testing.T) {
	l := NewUsageLedger().Merge([]Allocation{{Kind: KindLab, Room: "L1", Day: Friday, Slot: 2}})
	clone := l.Clone()
	clone = clone.Merge([]Allocation{{Kind: KindLab, Room: "L1", Day: Friday, Slot: 3}})

	if l.Occupied(KindLab, "L1", Friday, 3) {
		t.Fatal("mutating the clone's derived ledger must not affect the original")
	}
	if !clone.Occupied(KindLab, "L1", Friday, 2) {
		t.Fatal("clone should retain the original's allocations")
	}
}
