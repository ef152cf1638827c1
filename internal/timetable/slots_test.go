package timetable

import "testing"

func TestDefaultSlotCatalogShape(t *testing.T) {
	c := DefaultSlotCatalog()
	if len(c.Theory) != 7 {
		t.Fatalf("got %d theory slots, want 7", len(c.Theory))
	}
	if len(c.Lab) != 4 {
		t.Fatalf("got %d lab slots, want 4", len(c.Lab))
	}
}

func TestBlackoutIsExactlyFridayTheorySlotThree(t *testing.T) {
	if !Blackout(Friday, KindTheory, 3) {
		t.Fatal("Friday theory slot 3 must be blacked out")
	}
	cases := []struct {
		day  Day
		kind SlotKind
		idx  int
	}{
		{Friday, KindTheory, 2},
		{Friday, KindTheory, 4},
		{Friday, KindLab, 3},
		{Thursday, KindTheory, 3},
	}
	for _, c := range cases {
		if Blackout(c.day, c.kind, c.idx) {
			t.Errorf("Blackout(%v, %v, %d) = true, want false", c.day, c.kind, c.idx)
		}
	}
}

func TestSlotCatalogOverlapIsSymmetricAndExhaustive(t *testing.T) {
	c := DefaultSlotCatalog()
	for _, lab := range c.Lab {
		theoryIdxs := c.OverlappingTheory(lab.Index)
		if len(theoryIdxs) == 0 {
			t.Fatalf("lab slot %d overlaps no theory slot", lab.Index)
		}
		for _, ti := range theoryIdxs {
			if !c.Overlaps(ti, lab.Index) {
				t.Errorf("Overlaps(%d, %d) = false but OverlappingTheory reported it", ti, lab.Index)
			}
			found := false
			for _, li := range c.OverlappingLab(ti) {
				if li == lab.Index {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("OverlappingLab(%d) missing lab index %d", ti, lab.Index)
			}
		}
	}
}

func TestSlotCatalogFindSlot(t *testing.T) {
	c := DefaultSlotCatalog()
	idx, ok := c.FindSlot(KindTheory, 480, 555)
	if !ok || idx != 0 {
		t.Fatalf("FindSlot(theory, 480, 555) = (%d, %v), want (0, true)", idx, ok)
	}
	if _, ok := c.FindSlot(KindTheory, 1, 2); ok {
		t.Fatal("FindSlot should miss on a non-existent interval")
	}
}

func TestDayString(t *testing.T) {
	if Monday.String() != "Monday" {
		t.Errorf("got %q, want Monday", Monday.String())
	}
	if Day(99).String() != "Unknown" {
		t.Errorf("out-of-range day should stringify to Unknown")
	}
}
