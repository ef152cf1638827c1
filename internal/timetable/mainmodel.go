package timetable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-adp-api/internal/timetable/cpsat"
)

// MainModelRequest bundles every input the main CP model needs for one
// solve: the selected semesters, their course lists, student counts, the
// usage ledger already occupied by prior runs, the slot catalog, the room
// inventory, and the runtime-tunable constraints.
type MainModelRequest struct {
	SelectedSemesters []int
	SemesterCourses   map[int][]Subject
	SectionSizes      map[int]int
	Usage             *UsageLedger
	Catalog           *SlotCatalog
	Days              []Day
	TheoryRooms       []string
	LabRooms          []string
	SpecialLabRooms   map[string][]string
	SectionSize       int
	ProgramCode       string
	CohortCourses     []CohortCourse
	EnableCohort      bool
	Constraints       Constraints
	MaxSolveSeconds   float64
	Workers           int
}

// MainModelResult is the placement output plus the sections the solver
// generated for each semester, ready to be merged into the usage ledger by
// the hierarchical driver.
type MainModelResult struct {
	Slots            []TimetableSlot
	SemesterSections map[int][]Section
	Allocations      []Allocation
}

type courseKey struct {
	sem  int
	code string
}

type assignKey struct {
	section string
	code    string
	day     Day
	slot    int
	room    string
	kind    SlotKind
}

// dayAssignKey identifies a per-(section,course,day) boolean. When code is
// empty it instead identifies the per-(section,day) day_in_use boolean
// used by the working-day cap (C9) — a deliberate reuse of one key shape
// for two closely related indicator families, matching how the original
// solver keeps both in plain dict literals keyed by tuple.
type dayAssignKey struct {
	section string
	code    string
	day     Day
}

type cohortVarKey struct {
	section string
	code    string
	label   string
}

// SolveMain runs the main CP model once: variable construction (§4.4.1),
// constraints C1-C12 (§4.4.2), and result extraction (§4.4.3). It returns
// ErrInfeasible when the solver cannot find a feasible schedule, and a
// *RunError of kind capacity when the pre-solve arithmetic check fails
// before any solver is invoked.
func SolveMain(req MainModelRequest) (*MainModelResult, error) {
	days := req.Days
	if len(days) == 0 {
		days = DefaultDays
	}
	catalog := req.Catalog
	if catalog == nil {
		catalog = DefaultSlotCatalog()
	}

	normalLabs, combinedLabs := splitLabRooms(req.LabRooms, req.SpecialLabRooms)

	if err := checkCapacity(req, days, catalog, combinedLabs); err != nil {
		return nil, err
	}

	semesterSections := make(map[int][]Section, len(req.SelectedSemesters))
	var allSections []Section
	for _, sem := range req.SelectedSemesters {
		secs := BuildSections(sem, req.SectionSizes[sem], req.SectionSize, req.ProgramCode)
		semesterSections[sem] = secs
		allSections = append(allSections, secs...)
	}

	isCohortCourse, cohortMap := indexCohort(req.EnableCohort, req.CohortCourses)

	model := cpsat.NewModel()

	assignments := make(map[assignKey]cpsat.BoolVar)
	dayAssigned := make(map[dayAssignKey]cpsat.BoolVar)
	cohortVars := make(map[cohortVarKey]cpsat.BoolVar)

	// Cohort assignment variables (§4.4.1 step 5).
	for _, sem := range req.SelectedSemesters {
		for _, course := range req.SemesterCourses[sem] {
			if !isCohortCourse[courseKey{sem, course.Code}] {
				continue
			}
			for _, sec := range semesterSections[sem] {
				for _, cc := range cohortMap[courseKey{sem, course.Code}] {
					key := cohortVarKey{sec.Code, course.Code, cc.Label}
					cohortVars[key] = model.NewBoolVar(fmt.Sprintf("CohortAssign_%s_%s_%s", sec.Code, course.Code, cc.Label))
				}
			}
		}
	}

	// Normal assignment variables (§4.4.1 step 6).
	for _, sem := range req.SelectedSemesters {
		for _, sec := range semesterSections[sem] {
			for _, course := range req.SemesterCourses[sem] {
				if req.EnableCohort && isCohortCourse[courseKey{sem, course.Code}] {
					continue
				}
				if !course.IsLab {
					for _, d := range days {
						dayAssigned[dayAssignKey{sec.Code, course.Code, d}] = model.NewBoolVar(
							fmt.Sprintf("day_%s_%s_%s", sec.Code, course.Code, d))
					}
					for _, d := range days {
						for _, t := range catalog.Theory {
							if Blackout(d, KindTheory, t.Index) {
								continue
							}
							for _, r := range req.TheoryRooms {
								if req.Usage.Occupied(KindTheory, r, d, t.Index) {
									continue
								}
								k := assignKey{sec.Code, course.Code, d, t.Index, r, KindTheory}
								assignments[k] = model.NewBoolVar(
									fmt.Sprintf("Theory_%s_%s_%s_%d_%s", sec.Code, course.Code, d, t.Index, r))
							}
						}
					}
				} else {
					validLabs := labsForCourse(course.Code, req.SpecialLabRooms, normalLabs)
					for _, d := range days {
						for _, ls := range catalog.Lab {
							for _, labr := range validLabs {
								if req.Usage.Occupied(KindLab, labr, d, ls.Index) {
									continue
								}
								k := assignKey{sec.Code, course.Code, d, ls.Index, labr, KindLab}
								assignments[k] = model.NewBoolVar(
									fmt.Sprintf("Lab_%s_%s_%s_%d_%s", sec.Code, course.Code, d, ls.Index, labr))
							}
						}
					}
				}
			}
		}
	}

	// C1 (exact demand) + C2 (day-cardinality linking) + C3 (no-consecutive-day).
	for _, sem := range req.SelectedSemesters {
		for _, sec := range semesterSections[sem] {
			for _, course := range req.SemesterCourses[sem] {
				if req.EnableCohort && isCohortCourse[courseKey{sem, course.Code}] {
					continue
				}
				if course.IsLab {
					labs := labsForCourse(course.Code, req.SpecialLabRooms, normalLabs)
					var labVars []cpsat.BoolVar
					for _, d := range days {
						for _, ls := range catalog.Lab {
							for _, lbr := range labs {
								if v, ok := assignments[assignKey{sec.Code, course.Code, d, ls.Index, lbr, KindLab}]; ok {
									labVars = append(labVars, v)
								}
							}
						}
					}
					model.AddEqual(cpsat.SumBools(labVars...), int64(course.TimesNeeded))
					continue
				}

				var thVars []cpsat.BoolVar
				for _, d := range days {
					for _, t := range catalog.Theory {
						if Blackout(d, KindTheory, t.Index) {
							continue
						}
						for _, r := range req.TheoryRooms {
							if v, ok := assignments[assignKey{sec.Code, course.Code, d, t.Index, r, KindTheory}]; ok {
								thVars = append(thVars, v)
							}
						}
					}
				}
				model.AddEqual(cpsat.SumBools(thVars...), int64(course.TimesNeeded))

				dayVarList := make([]cpsat.BoolVar, len(days))
				for i, d := range days {
					dayVarList[i] = dayAssigned[dayAssignKey{sec.Code, course.Code, d}]
				}
				model.AddEqual(cpsat.SumBools(dayVarList...), int64(course.TimesNeeded))

				for _, d := range days {
					var relevant []cpsat.BoolVar
					for _, t := range catalog.Theory {
						if Blackout(d, KindTheory, t.Index) {
							continue
						}
						for _, r := range req.TheoryRooms {
							if v, ok := assignments[assignKey{sec.Code, course.Code, d, t.Index, r, KindTheory}]; ok {
								relevant = append(relevant, v)
							}
						}
					}
					dv := dayAssigned[dayAssignKey{sec.Code, course.Code, d}]
					// sum(relevant) - dv >= 0
					model.AddGreaterOrEqual(cpsat.NewExpr().AddBools(relevant, 1).AddBool(dv, -1), 0)
					// sum(relevant) - N*dv <= 0
					model.AddLessOrEqual(cpsat.NewExpr().AddBools(relevant, 1).AddBool(dv, -int64(len(catalog.Theory))), 0)
				}

				if course.TimesNeeded > 1 {
					for i := 0; i < len(days)-1; i++ {
						d1, d2 := days[i], days[i+1]
						model.AddLessOrEqual(cpsat.SumBools(
							dayAssigned[dayAssignKey{sec.Code, course.Code, d1}],
							dayAssigned[dayAssignKey{sec.Code, course.Code, d2}],
						), 1)
					}
				}
			}
		}
	}

	// C4: no double-booking of theory/lab rooms across all sections.
	for _, d := range days {
		for _, t := range catalog.Theory {
			if Blackout(d, KindTheory, t.Index) {
				continue
			}
			for _, r := range req.TheoryRooms {
				var vars []cpsat.BoolVar
				for _, sem2 := range req.SelectedSemesters {
					for _, sec := range semesterSections[sem2] {
						for _, course := range req.SemesterCourses[sem2] {
							if course.IsLab || (req.EnableCohort && isCohortCourse[courseKey{sem2, course.Code}]) {
								continue
							}
							if v, ok := assignments[assignKey{sec.Code, course.Code, d, t.Index, r, KindTheory}]; ok {
								vars = append(vars, v)
							}
						}
					}
				}
				model.AddLessOrEqual(cpsat.SumBools(vars...), 1)
			}
		}
		for _, ls := range catalog.Lab {
			for _, labr := range combinedLabs {
				var vars []cpsat.BoolVar
				for _, sem2 := range req.SelectedSemesters {
					for _, sec := range semesterSections[sem2] {
						for _, course := range req.SemesterCourses[sem2] {
							if !course.IsLab || (req.EnableCohort && isCohortCourse[courseKey{sem2, course.Code}]) {
								continue
							}
							if v, ok := assignments[assignKey{sec.Code, course.Code, d, ls.Index, labr, KindLab}]; ok {
								vars = append(vars, v)
							}
						}
					}
				}
				model.AddLessOrEqual(cpsat.SumBools(vars...), 1)
			}
		}
	}

	// C5 (section mutex within kind) + C6 (theory/lab overlap mutex), both
	// scoped to one section so a section never double-books itself.
	for _, sec := range allSections {
		for _, d := range days {
			for _, t := range catalog.Theory {
				if Blackout(d, KindTheory, t.Index) {
					continue
				}
				var vars []cpsat.BoolVar
				for _, sem2 := range req.SelectedSemesters {
					for _, course := range req.SemesterCourses[sem2] {
						if course.IsLab || (req.EnableCohort && isCohortCourse[courseKey{sem2, course.Code}]) {
							continue
						}
						for _, r := range req.TheoryRooms {
							if v, ok := assignments[assignKey{sec.Code, course.Code, d, t.Index, r, KindTheory}]; ok {
								vars = append(vars, v)
							}
						}
					}
				}
				model.AddLessOrEqual(cpsat.SumBools(vars...), 1)
			}
			for _, ls := range catalog.Lab {
				var vars []cpsat.BoolVar
				for _, sem2 := range req.SelectedSemesters {
					for _, course := range req.SemesterCourses[sem2] {
						if !course.IsLab || (req.EnableCohort && isCohortCourse[courseKey{sem2, course.Code}]) {
							continue
						}
						for _, labr := range combinedLabs {
							if v, ok := assignments[assignKey{sec.Code, course.Code, d, ls.Index, labr, KindLab}]; ok {
								vars = append(vars, v)
							}
						}
					}
				}
				model.AddLessOrEqual(cpsat.SumBools(vars...), 1)
			}

			for _, sem2 := range req.SelectedSemesters {
				for _, course := range req.SemesterCourses[sem2] {
					if !course.IsLab || (req.EnableCohort && isCohortCourse[courseKey{sem2, course.Code}]) {
						continue
					}
					labCandidates := labsForCourse(course.Code, req.SpecialLabRooms, normalLabs)
					for _, ls := range catalog.Lab {
						overlapTheory := catalog.OverlappingTheory(ls.Index)
						for _, labr := range labCandidates {
							labVar, ok := assignments[assignKey{sec.Code, course.Code, d, ls.Index, labr, KindLab}]
							if !ok {
								continue
							}
							for _, sem3 := range req.SelectedSemesters {
								for _, course2 := range req.SemesterCourses[sem3] {
									if course2.IsLab || (req.EnableCohort && isCohortCourse[courseKey{sem3, course2.Code}]) {
										continue
									}
									for _, t2 := range overlapTheory {
										if Blackout(d, KindTheory, t2) {
											continue
										}
										for _, rr2 := range req.TheoryRooms {
											if tv, ok := assignments[assignKey{sec.Code, course2.Code, d, t2, rr2, KindTheory}]; ok {
												model.AddLessOrEqual(cpsat.SumBools(labVar, tv), 1)
											}
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}

	// C8: full cohort logic (parts A-D).
	if req.EnableCohort && len(req.CohortCourses) > 0 {
		applyCohortConstraints(model, req, days, catalog, semesterSections, isCohortCourse, cohortMap, assignments, cohortVars, normalLabs)
	}

	// C9: working-day cap via day_in_use + BIG_M linking.
	const bigM = 999
	dayInUse := make(map[dayAssignKey]cpsat.BoolVar)
	for _, sec := range allSections {
		for _, d := range days {
			dayInUse[dayAssignKey{sec.Code, "", d}] = model.NewBoolVar(fmt.Sprintf("day_in_use_%s_%s", sec.Code, d))
		}
	}
	for _, sem := range req.SelectedSemesters {
		for _, sec := range semesterSections[sem] {
			for _, d := range days {
				var normalVars []cpsat.BoolVar
				for _, course := range req.SemesterCourses[sem] {
					if req.EnableCohort && isCohortCourse[courseKey{sem, course.Code}] {
						continue
					}
					if !course.IsLab {
						for _, t := range catalog.Theory {
							if Blackout(d, KindTheory, t.Index) {
								continue
							}
							for _, r := range req.TheoryRooms {
								if v, ok := assignments[assignKey{sec.Code, course.Code, d, t.Index, r, KindTheory}]; ok {
									normalVars = append(normalVars, v)
								}
							}
						}
					} else {
						labs := labsForCourse(course.Code, req.SpecialLabRooms, normalLabs)
						for _, ls := range catalog.Lab {
							for _, lbR := range labs {
								if v, ok := assignments[assignKey{sec.Code, course.Code, d, ls.Index, lbR, KindLab}]; ok {
									normalVars = append(normalVars, v)
								}
							}
						}
					}
				}
				diu := dayInUse[dayAssignKey{sec.Code, "", d}]
				model.AddGreaterOrEqual(cpsat.NewExpr().AddBools(normalVars, 1).AddBool(diu, -1), 0)
				model.AddLessOrEqual(cpsat.NewExpr().AddBools(normalVars, 1).AddBool(diu, -bigM), 0)
			}
		}
	}
	if req.EnableCohort && len(req.CohortCourses) > 0 {
		for _, sem := range req.SelectedSemesters {
			for _, sec := range semesterSections[sem] {
				for _, course := range req.SemesterCourses[sem] {
					if !isCohortCourse[courseKey{sem, course.Code}] {
						continue
					}
					for _, cc := range cohortMap[courseKey{sem, course.Code}] {
						v, ok := cohortVars[cohortVarKey{sec.Code, course.Code, cc.Label}]
						if !ok {
							continue
						}
						for _, pl := range cc.Placements {
							if Blackout(pl.Day, KindTheory, pl.Slot) {
								continue
							}
							diu := dayInUse[dayAssignKey{sec.Code, "", pl.Day}]
							// var_cohort <= day_in_use
							model.AddLessOrEqual(cpsat.NewExpr().AddBool(v, 1).AddBool(diu, -1), 0)
						}
					}
				}
			}
		}
	}
	for _, sec := range allSections {
		var vars []cpsat.BoolVar
		for _, d := range days {
			vars = append(vars, dayInUse[dayAssignKey{sec.Code, "", d}])
		}
		model.AddLessOrEqual(cpsat.SumBools(vars...), int64(req.Constraints.WorkingDaysPerWeek))
	}

	// C12: cutoff — disable any assignment (or cohort choice) ending after
	// noClassesAfterHour. Applied before the slot-usage indicators below so
	// C10/C11 only ever see already-fixed variables.
	if req.Constraints.NoClassesAfterHour != nil {
		cutoffMinute := *req.Constraints.NoClassesAfterHour * 60
		for k, v := range assignments {
			_, end := catalog.Minutes(k.kind, k.slot)
			if end > cutoffMinute {
				model.FixBool(v, false)
			}
		}
		if req.EnableCohort {
			for _, sem := range req.SelectedSemesters {
				for _, course := range req.SemesterCourses[sem] {
					if !isCohortCourse[courseKey{sem, course.Code}] {
						continue
					}
					for _, cc := range cohortMap[courseKey{sem, course.Code}] {
						violates := false
						for _, pl := range cc.Placements {
							_, end := catalog.Minutes(pl.Kind, pl.Slot)
							if end > cutoffMinute {
								violates = true
								break
							}
						}
						if !violates {
							continue
						}
						for _, sec := range semesterSections[sem] {
							if v, ok := cohortVars[cohortVarKey{sec.Code, course.Code, cc.Label}]; ok {
								model.FixBool(v, false)
							}
						}
					}
				}
			}
		}
	}

	// has_theory / has_lab indicators combine normal + cohort usage,
	// feeding both the gap constraint (C11) and the span constraint (C10).
	hasTheory, hasLab := buildUsageIndicators(model, req, days, catalog, allSections, isCohortCourse, cohortMap, assignments, cohortVars, normalLabs, combinedLabs)

	// C11: minimum gap between classes on the same day.
	if req.Constraints.MinGapMinutes > 0 {
		applyGapConstraints(model, req, days, catalog, allSections, hasTheory, hasLab)
	}

	// C10: daily span constraint.
	applySpanConstraints(model, req, days, catalog, allSections, hasTheory, hasLab)

	solution, err := model.Solve(req.MaxSolveSeconds, req.Workers)
	if err != nil {
		return nil, err
	}
	if solution.Status != cpsat.StatusOptimal && solution.Status != cpsat.StatusFeasible {
		return nil, ErrInfeasible
	}

	return extractMainResult(req, solution, days, catalog, semesterSections, isCohortCourse, cohortMap, assignments, cohortVars, normalLabs, req.SpecialLabRooms), nil
}

func splitLabRooms(labRooms []string, specialLabRooms map[string][]string) (normalLabs, combinedLabs []string) {
	special := make(map[string]struct{})
	for _, rooms := range specialLabRooms {
		for _, r := range rooms {
			special[strings.TrimSpace(r)] = struct{}{}
		}
	}
	combinedSet := make(map[string]struct{})
	for _, r := range labRooms {
		r = strings.TrimSpace(r)
		if _, ok := special[r]; !ok {
			normalLabs = append(normalLabs, r)
		}
		combinedSet[r] = struct{}{}
	}
	for r := range special {
		combinedSet[r] = struct{}{}
	}
	for r := range combinedSet {
		combinedLabs = append(combinedLabs, r)
	}
	sort.Strings(normalLabs)
	sort.Strings(combinedLabs)
	return normalLabs, combinedLabs
}

func labsForCourse(code string, specialLabRooms map[string][]string, normalLabs []string) []string {
	if rooms, ok := specialLabRooms[code]; ok {
		out := make([]string, len(rooms))
		for i, r := range rooms {
			out[i] = strings.TrimSpace(r)
		}
		return out
	}
	return normalLabs
}

func indexCohort(enable bool, cohortCourses []CohortCourse) (map[courseKey]bool, map[courseKey][]CohortCourse) {
	isCohort := make(map[courseKey]bool)
	byKey := make(map[courseKey][]CohortCourse)
	if !enable {
		return isCohort, byKey
	}
	for _, cc := range cohortCourses {
		k := courseKey{cc.Semester, cc.SubjectCode}
		isCohort[k] = true
		byKey[k] = append(byKey[k], cc)
	}
	return isCohort, byKey
}

func checkCapacity(req MainModelRequest, days []Day, catalog *SlotCatalog, combinedLabs []string) error {
	theoryUsed := countUsed(req.Usage, KindTheory, req.TheoryRooms, days, len(catalog.Theory))
	labUsed := countUsed(req.Usage, KindLab, combinedLabs, days, len(catalog.Lab))

	totalTheory := len(days) * len(catalog.Theory) * len(req.TheoryRooms)
	totalLab := len(days) * len(catalog.Lab) * len(combinedLabs)
	availableTheory := totalTheory - theoryUsed
	availableLab := totalLab - labUsed

	neededTheory, neededLab := 0, 0
	for _, sem := range req.SelectedSemesters {
		for _, course := range req.SemesterCourses[sem] {
			if course.IsLab {
				neededLab += course.TimesNeeded
			} else {
				neededTheory += course.TimesNeeded
			}
		}
	}
	if neededTheory > availableTheory || neededLab > availableLab {
		return NewCapacityError(neededTheory, availableTheory, neededLab, availableLab)
	}
	return nil
}

func countUsed(usage *UsageLedger, kind SlotKind, rooms []string, days []Day, catalogSize int) int {
	used := 0
	for _, r := range rooms {
		for _, d := range days {
			for slot := 0; slot < catalogSize; slot++ {
				if usage.Occupied(kind, r, d, slot) {
					used++
				}
			}
		}
	}
	return used
}
