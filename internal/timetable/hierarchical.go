package timetable

import "sort"

// HierarchicalThreshold is the total-course count above which
// ShouldUseHierarchical recommends solving semester-by-semester instead of
// building one combined model.
const HierarchicalThreshold = 300

// ShouldUseHierarchical mirrors should_use_hierarchical_solving: hierarchical
// solving only pays off once there is more than one semester to split across
// and the combined course count is large enough that a single model would be
// unwieldy.
func ShouldUseHierarchical(totalCourses, semesterCount int) bool {
	return totalCourses > HierarchicalThreshold && semesterCount > 1
}

// SemesterOrder controls the order hierarchical solving visits semesters in.
type SemesterOrder int

const (
	SemesterAscending SemesterOrder = iota
	SemesterDescending
)

// HierarchicalRequest carries one MainModelRequest's worth of shared inputs
// plus the per-semester knobs the decomposition driver needs.
type HierarchicalRequest struct {
	MainModelRequest
	Order SemesterOrder
}

// SemesterOutcome records the result (or failure) of solving one semester,
// returned alongside the combined result so a caller can report progress the
// way the original driver's ProgressTracker does.
type SemesterOutcome struct {
	Semester  int
	Succeeded bool
	Err       error
}

// HierarchicalResult combines every semester's placements into the same
// shape a single-shot SolveMain call would have produced, plus the
// per-semester outcomes for progress reporting.
type HierarchicalResult struct {
	MainModelResult
	Outcomes []SemesterOutcome
}

// SolveHierarchical schedules each semester in req.SelectedSemesters one at a
// time, threading the usage ledger forward so later semesters never collide
// with rooms/slots already claimed by earlier ones. It stops at the first
// infeasible or erroring semester and returns that error, matching the
// original driver's "any semester fails -> whole run fails" semantics.
func SolveHierarchical(req HierarchicalRequest) (*HierarchicalResult, error) {
	semesters := append([]int(nil), req.SelectedSemesters...)
	sort.Slice(semesters, func(i, j int) bool {
		if req.Order == SemesterDescending {
			return semesters[i] > semesters[j]
		}
		return semesters[i] < semesters[j]
	})

	result := &HierarchicalResult{
		MainModelResult: MainModelResult{
			SemesterSections: make(map[int][]Section),
		},
	}

	currentUsage := req.Usage
	if currentUsage == nil {
		currentUsage = NewUsageLedger()
	}

	for _, sem := range semesters {
		semReq := req.MainModelRequest
		semReq.SelectedSemesters = []int{sem}
		semReq.Usage = currentUsage

		semResult, err := SolveMain(semReq)
		if err != nil {
			result.Outcomes = append(result.Outcomes, SemesterOutcome{Semester: sem, Succeeded: false, Err: err})
			return result, err
		}

		result.Slots = append(result.Slots, semResult.Slots...)
		result.Allocations = append(result.Allocations, semResult.Allocations...)
		for s, secs := range semResult.SemesterSections {
			result.SemesterSections[s] = secs
		}
		result.Outcomes = append(result.Outcomes, SemesterOutcome{Semester: sem, Succeeded: true})

		currentUsage = currentUsage.Merge(semResult.Allocations)
	}

	return result, nil
}

// SolveAuto picks between a single combined SolveMain call and
// SolveHierarchical based on ShouldUseHierarchical, mirroring
// schedule_with_auto_optimization's size-driven dispatch.
func SolveAuto(req HierarchicalRequest, forceHierarchical bool) (*HierarchicalResult, error) {
	totalCourses := 0
	for _, sem := range req.SelectedSemesters {
		totalCourses += len(req.SemesterCourses[sem])
	}

	if forceHierarchical || ShouldUseHierarchical(totalCourses, len(req.SelectedSemesters)) {
		return SolveHierarchical(req)
	}

	result, err := SolveMain(req.MainModelRequest)
	if err != nil {
		return nil, err
	}
	outcomes := make([]SemesterOutcome, 0, len(req.SelectedSemesters))
	for _, sem := range req.SelectedSemesters {
		outcomes = append(outcomes, SemesterOutcome{Semester: sem, Succeeded: true})
	}
	return &HierarchicalResult{MainModelResult: *result, Outcomes: outcomes}, nil
}
