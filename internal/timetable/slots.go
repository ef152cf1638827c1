package timetable

// SlotCatalog holds the ordered theory and lab slot sequences shared across
// all days, plus the derived lab/theory overlap relation.
type SlotCatalog struct {
	Theory      []TimeSlot
	Lab         []TimeSlot
	labOverlap  map[int][]int // lab index -> overlapping theory indices
	theoryOverlap map[int][]int // theory index -> overlapping lab indices
}

// DefaultSlotCatalog seeds the built-in catalog documented in the original
// spec's external-interfaces section: theory 08:00-18:15 in seven 75-minute
// blocks, lab 08:00-19:30 in four 150-minute blocks.
func DefaultSlotCatalog() *SlotCatalog {
	theoryStarts := []int{480, 570, 660, 750, 840, 930, 1020}
	theoryEnds := []int{555, 645, 735, 825, 915, 1005, 1095}
	labStarts := []int{480, 660, 840, 1020}
	labEnds := []int{630, 810, 990, 1170}

	theory := make([]TimeSlot, len(theoryStarts))
	for i := range theoryStarts {
		theory[i] = TimeSlot{Index: i, Kind: KindTheory, StartMinute: theoryStarts[i], EndMinute: theoryEnds[i]}
	}
	lab := make([]TimeSlot, len(labStarts))
	for i := range labStarts {
		lab[i] = TimeSlot{Index: i, Kind: KindLab, StartMinute: labStarts[i], EndMinute: labEnds[i]}
	}
	return NewSlotCatalog(theory, lab)
}

// NewSlotCatalog builds a catalog from explicit slot lists (used when the
// importer supplies a custom TimeSlots sheet) and derives the overlap map.
func NewSlotCatalog(theory, lab []TimeSlot) *SlotCatalog {
	c := &SlotCatalog{
		Theory:        theory,
		Lab:           lab,
		labOverlap:    make(map[int][]int),
		theoryOverlap: make(map[int][]int),
	}
	for _, ls := range lab {
		for _, ts := range theory {
			if intervalsOverlap(ls.StartMinute, ls.EndMinute, ts.StartMinute, ts.EndMinute) {
				c.labOverlap[ls.Index] = append(c.labOverlap[ls.Index], ts.Index)
				c.theoryOverlap[ts.Index] = append(c.theoryOverlap[ts.Index], ls.Index)
			}
		}
	}
	return c
}

func intervalsOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// Minutes returns the [start, end) minute interval for a catalog slot.
func (c *SlotCatalog) Minutes(kind SlotKind, index int) (start, end int) {
	slots := c.Theory
	if kind == KindLab {
		slots = c.Lab
	}
	for _, s := range slots {
		if s.Index == index {
			return s.StartMinute, s.EndMinute
		}
	}
	return 0, 0
}

// Overlaps reports whether a theory slot and a lab slot intersect in time —
// the authoritative LabOverlapMap predicate.
func (c *SlotCatalog) Overlaps(theoryIdx, labIdx int) bool {
	for _, t := range c.labOverlap[labIdx] {
		if t == theoryIdx {
			return true
		}
	}
	return false
}

// OverlappingTheory returns every theory index overlapping a given lab slot.
func (c *SlotCatalog) OverlappingTheory(labIdx int) []int {
	return c.labOverlap[labIdx]
}

// OverlappingLab returns every lab index overlapping a given theory slot.
func (c *SlotCatalog) OverlappingLab(theoryIdx int) []int {
	return c.theoryOverlap[theoryIdx]
}

// FindSlot resolves a catalog index from a (kind, start, end) minute pair —
// used by ingestion when a source row gives explicit times rather than a
// slot index.
func (c *SlotCatalog) FindSlot(kind SlotKind, start, end int) (int, bool) {
	slots := c.Theory
	if kind == KindLab {
		slots = c.Lab
	}
	for _, s := range slots {
		if s.StartMinute == start && s.EndMinute == end {
			return s.Index, true
		}
	}
	return 0, false
}

// Blackout is true iff the (day, kind, index) triple is the permanent
// blackout slot: Friday, theory, index 3. The boundary is exact — only this
// single triple is blacked out, never the lab catalog.
func Blackout(day Day, kind SlotKind, index int) bool {
	return day == Friday && kind == KindTheory && index == 3
}
