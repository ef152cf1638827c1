package timetable

import (
	"github.com/noah-isme/sma-adp-api/internal/timetable/cpsat"
)

// applyCohortConstraints implements C8, the full cohort-course logic:
// (A) exactly one cohort label chosen per normal section, (B) a capacity
// cap on how many sections can share one label, (C) blocking any other
// subject from the label's occupied (day, slot) pairs, and (D) preventing
// two cohort courses in the same semester from choosing overlapping
// placements for the same normal section.
func applyCohortConstraints(
	model *cpsat.Model,
	req MainModelRequest,
	days []Day,
	catalog *SlotCatalog,
	semesterSections map[int][]Section,
	isCohortCourse map[courseKey]bool,
	cohortMap map[courseKey][]CohortCourse,
	assignments map[assignKey]cpsat.BoolVar,
	cohortVars map[cohortVarKey]cpsat.BoolVar,
	normalLabs []string,
) {
	// (A) Exactly one cohort label per normal section.
	for _, sem := range req.SelectedSemesters {
		for _, course := range req.SemesterCourses[sem] {
			k := courseKey{sem, course.Code}
			if !isCohortCourse[k] {
				continue
			}
			for _, sec := range semesterSections[sem] {
				var vars []cpsat.BoolVar
				for _, cc := range cohortMap[k] {
					if v, ok := cohortVars[cohortVarKey{sec.Code, course.Code, cc.Label}]; ok {
						vars = append(vars, v)
					}
				}
				if len(vars) > 0 {
					model.AddEqual(cpsat.SumBools(vars...), 1)
				}
			}
		}
	}

	// (B) Capacity: at most capacity/SectionSize sections may share one label.
	for key, courses := range cohortMap {
		if !containsInt(req.SelectedSemesters, key.sem) {
			continue
		}
		for _, cc := range courses {
			var expr = cpsat.NewExpr()
			for _, sec := range semesterSections[key.sem] {
				if v, ok := cohortVars[cohortVarKey{sec.Code, key.code, cc.Label}]; ok {
					expr.AddBool(v, int64(req.SectionSize))
				}
			}
			model.AddLessOrEqual(expr, int64(cc.Capacity))
		}
	}

	// (C) Block any other subject's placement on a cohort label's slots.
	for _, sem := range req.SelectedSemesters {
		for _, course := range req.SemesterCourses[sem] {
			key := courseKey{sem, course.Code}
			if !isCohortCourse[key] {
				continue
			}
			for _, cc := range cohortMap[key] {
				for _, sec := range semesterSections[sem] {
					vCohort, ok := cohortVars[cohortVarKey{sec.Code, course.Code, cc.Label}]
					if !ok {
						continue
					}
					for _, pl := range cc.Placements {
						if Blackout(pl.Day, KindTheory, pl.Slot) {
							continue
						}
						blockOtherPlacements(model, req, sem, sec, course.Code, pl, catalog, isCohortCourse, assignments, normalLabs, vCohort)
					}
				}
			}
		}
	}

	// (D) Prevent two cohort courses in the same semester from choosing
	// overlapping placements for the same normal section.
	for _, sem := range req.SelectedSemesters {
		var cohortCodes []string
		courseIsLab := make(map[string]bool)
		for _, course := range req.SemesterCourses[sem] {
			if isCohortCourse[courseKey{sem, course.Code}] {
				cohortCodes = append(cohortCodes, course.Code)
				courseIsLab[course.Code] = course.IsLab
			}
		}
		for i := 0; i < len(cohortCodes); i++ {
			for j := i + 1; j < len(cohortCodes); j++ {
				code1, code2 := cohortCodes[i], cohortCodes[j]
				for _, c1 := range cohortMap[courseKey{sem, code1}] {
					for _, c2 := range cohortMap[courseKey{sem, code2}] {
						if !placementsOverlap(c1.Placements, courseIsLab[code1], c2.Placements, courseIsLab[code2], catalog) {
							continue
						}
						for _, sec := range semesterSections[sem] {
							v1, ok1 := cohortVars[cohortVarKey{sec.Code, code1, c1.Label}]
							v2, ok2 := cohortVars[cohortVarKey{sec.Code, code2, c2.Label}]
							if ok1 && ok2 {
								model.AddLessOrEqual(cpsat.SumBools(v1, v2), 1)
							}
						}
					}
				}
			}
		}
	}
}

// blockOtherPlacements handles the three sub-cases of part C: a direct hit
// on (day, slot), a lab slot blocking the theory slots it overlaps, and a
// theory slot blocking the lab slots that overlap it.
func blockOtherPlacements(
	model *cpsat.Model,
	req MainModelRequest,
	sem int,
	sec Section,
	cohortCode string,
	pl CohortPlacement,
	catalog *SlotCatalog,
	isCohortCourse map[courseKey]bool,
	assignments map[assignKey]cpsat.BoolVar,
	normalLabs []string,
	vCohort cpsat.BoolVar,
) {
	for _, semX := range req.SelectedSemesters {
		for _, course2 := range req.SemesterCourses[semX] {
			if course2.Code == cohortCode || isCohortCourse[courseKey{semX, course2.Code}] {
				continue
			}
			if !course2.IsLab {
				for _, r := range req.TheoryRooms {
					if v, ok := assignments[assignKey{sec.Code, course2.Code, pl.Day, pl.Slot, r, KindTheory}]; ok {
						model.AddLessOrEqual(cpsat.SumBools(vCohort, v), 1)
					}
				}
			} else {
				labs := labsForCourse(course2.Code, req.SpecialLabRooms, normalLabs)
				for _, lb := range labs {
					if v, ok := assignments[assignKey{sec.Code, course2.Code, pl.Day, pl.Slot, lb, KindLab}]; ok {
						model.AddLessOrEqual(cpsat.SumBools(vCohort, v), 1)
					}
				}
			}
		}
	}

	if pl.Kind == KindLab {
		for _, t2 := range catalog.OverlappingTheory(pl.Slot) {
			if Blackout(pl.Day, KindTheory, t2) {
				continue
			}
			for _, semX := range req.SelectedSemesters {
				for _, course2 := range req.SemesterCourses[semX] {
					if course2.Code == cohortCode || course2.IsLab || isCohortCourse[courseKey{semX, course2.Code}] {
						continue
					}
					for _, rr2 := range req.TheoryRooms {
						if v, ok := assignments[assignKey{sec.Code, course2.Code, pl.Day, t2, rr2, KindTheory}]; ok {
							model.AddLessOrEqual(cpsat.SumBools(vCohort, v), 1)
						}
					}
				}
			}
		}
	}
	if pl.Kind == KindTheory {
		for _, ls2 := range catalog.OverlappingLab(pl.Slot) {
			for _, semX := range req.SelectedSemesters {
				for _, course2 := range req.SemesterCourses[semX] {
					if course2.Code == cohortCode || !course2.IsLab || isCohortCourse[courseKey{semX, course2.Code}] {
						continue
					}
					labs := labsForCourse(course2.Code, req.SpecialLabRooms, normalLabs)
					for _, lbX := range labs {
						if v, ok := assignments[assignKey{sec.Code, course2.Code, pl.Day, ls2, lbX, KindLab}]; ok {
							model.AddLessOrEqual(cpsat.SumBools(vCohort, v), 1)
						}
					}
				}
			}
		}
	}
}

// placementsOverlap mirrors slots_overlap: same day, and either identical
// slot index (same kind) or a lab/theory pair related by the overlap map.
func placementsOverlap(p1 []CohortPlacement, isLab1 bool, p2 []CohortPlacement, isLab2 bool, catalog *SlotCatalog) bool {
	for _, a := range p1 {
		for _, b := range p2 {
			if a.Day != b.Day {
				continue
			}
			switch {
			case !isLab1 && !isLab2:
				if a.Slot == b.Slot {
					return true
				}
			case isLab1 && isLab2:
				if a.Slot == b.Slot {
					return true
				}
			case !isLab1 && isLab2:
				if catalog.Overlaps(a.Slot, b.Slot) {
					return true
				}
			case isLab1 && !isLab2:
				if catalog.Overlaps(b.Slot, a.Slot) {
					return true
				}
			}
		}
	}
	return false
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
