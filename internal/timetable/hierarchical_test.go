package timetable

import (
	"errors"
	"testing"
)

func TestShouldUseHierarchical(t *testing.T) {
	cases := []struct {
		totalCourses, semesters int
		want                    bool
	}{
		{totalCourses: 301, semesters: 2, want: true},
		{totalCourses: 300, semesters: 2, want: false},
		{totalCourses: 500, semesters: 1, want: false},
		{totalCourses: 0, semesters: 3, want: false},
	}
	for _, c := range cases {
		if got := ShouldUseHierarchical(c.totalCourses, c.semesters); got != c.want {
			t.Errorf("ShouldUseHierarchical(%d, %d) = %v, want %v", c.totalCourses, c.semesters, got, c.want)
		}
	}
}

// starvedRequest builds a MainModelRequest with one course that needs far
// more theory periods than a single room/day/slot catalog can offer, so
// checkCapacity rejects it before any CP-SAT model is built.
func starvedRequest(semesters []int) MainModelRequest {
	courses := map[int][]Subject{}
	for _, sem := range semesters {
		courses[sem] = []Subject{{Code: "CS101", Name: "Intro", TimesNeeded: 999}}
	}
	return MainModelRequest{
		SelectedSemesters: semesters,
		SemesterCourses:   courses,
		SectionSizes:      map[int]int{},
		Usage:             NewUsageLedger(),
		Catalog:           DefaultSlotCatalog(),
		Days:              []Day{Monday},
		TheoryRooms:       []string{"R101"},
		LabRooms:          nil,
		SectionSize:       50,
		ProgramCode:       "REG",
	}
}

func TestSolveHierarchicalStopsAtFirstFailingSemester(t *testing.T) {
	req := HierarchicalRequest{MainModelRequest: starvedRequest([]int{1, 2})}
	result, err := SolveHierarchical(req)
	if err == nil {
		t.Fatal("expected capacity error, got nil")
	}
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Kind != KindCapacity {
		t.Fatalf("expected KindCapacity RunError, got %v", err)
	}
	if len(result.Outcomes) != 1 || result.Outcomes[0].Succeeded {
		t.Fatalf("expected exactly one failed outcome, got %+v", result.Outcomes)
	}
}

func TestSolveAutoDispatchesToHierarchicalWhenForced(t *testing.T) {
	req := HierarchicalRequest{MainModelRequest: starvedRequest([]int{1, 2})}
	_, err := SolveAuto(req, true)
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Kind != KindCapacity {
		t.Fatalf("expected the forced-hierarchical path to surface the same capacity error, got %v", err)
	}
}

func TestSolveAutoUsesSingleShotBelowThreshold(t *testing.T) {
	req := HierarchicalRequest{MainModelRequest: starvedRequest([]int{1})}
	_, err := SolveAuto(req, false)
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Kind != KindCapacity {
		t.Fatalf("expected the single-shot path to surface a capacity error, got %v", err)
	}
}
