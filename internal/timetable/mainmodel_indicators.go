package timetable

import (
	"fmt"

	"github.com/noah-isme/sma-adp-api/internal/timetable/cpsat"
)

// slotUsage maps (section,"",day) -> slot index -> a boolean indicating at
// least one normal/cohort assignment occupies that slot.
type slotUsage map[dayAssignKey]map[int]cpsat.BoolVar

// buildUsageIndicators derives has_theory/has_lab: one boolean (or, under
// cohort mode, a 0-2 valued int folded back to a boolean check) per
// (section, day, slot) combining normal assignment variables with any
// cohort placement landing on that slot.
func buildUsageIndicators(
	model *cpsat.Model,
	req MainModelRequest,
	days []Day,
	catalog *SlotCatalog,
	allSections []Section,
	isCohortCourse map[courseKey]bool,
	cohortMap map[courseKey][]CohortCourse,
	assignments map[assignKey]cpsat.BoolVar,
	cohortVars map[cohortVarKey]cpsat.BoolVar,
	normalLabs, combinedLabs []string,
) (theory, lab slotUsage) {
	theory = make(slotUsage)
	lab = make(slotUsage)

	for _, sec := range allSections {
		for _, d := range days {
			key := dayAssignKey{sec.Code, "", d}
			theory[key] = make(map[int]cpsat.BoolVar)
			lab[key] = make(map[int]cpsat.BoolVar)

			for _, t := range catalog.Theory {
				if Blackout(d, KindTheory, t.Index) {
					continue
				}
				var normalVars []cpsat.BoolVar
				for _, sem2 := range req.SelectedSemesters {
					for _, course := range req.SemesterCourses[sem2] {
						if course.IsLab || isCohortCourse[courseKey{sem2, course.Code}] {
							continue
						}
						for _, r := range req.TheoryRooms {
							if v, ok := assignments[assignKey{sec.Code, course.Code, d, t.Index, r, KindTheory}]; ok {
								normalVars = append(normalVars, v)
							}
						}
					}
				}

				var cohortVarsHere []cpsat.BoolVar
				if req.EnableCohort && len(req.CohortCourses) > 0 {
					for _, sem2 := range req.SelectedSemesters {
						for _, course := range req.SemesterCourses[sem2] {
							k := courseKey{sem2, course.Code}
							if course.IsLab || !isCohortCourse[k] {
								continue
							}
							for _, cc := range cohortMap[k] {
								for _, pl := range cc.Placements {
									if pl.Day == d && pl.Slot == t.Index {
										if v, ok := cohortVars[cohortVarKey{sec.Code, course.Code, cc.Label}]; ok {
											cohortVarsHere = append(cohortVarsHere, v)
										}
									}
								}
							}
						}
					}
				}

				hi := int64(1)
				if len(cohortVarsHere) > 0 {
					hi = 2
				}
				indicator := model.NewIntVar(0, hi, fmt.Sprintf("has_theory_%s_%s_%d", sec.Code, d, t.Index))
				combined := cpsat.NewExpr().AddBools(normalVars, 1).AddBools(cohortVarsHere, 1).AddInt(indicator, -1)
				model.AddEqual(combined, 0)
				theory[key][t.Index] = boolFromIndicator(model, indicator, hi)
			}

			for _, ls := range catalog.Lab {
				var normalVars []cpsat.BoolVar
				for _, sem2 := range req.SelectedSemesters {
					for _, course := range req.SemesterCourses[sem2] {
						if !course.IsLab || isCohortCourse[courseKey{sem2, course.Code}] {
							continue
						}
						for _, labr := range combinedLabs {
							if v, ok := assignments[assignKey{sec.Code, course.Code, d, ls.Index, labr, KindLab}]; ok {
								normalVars = append(normalVars, v)
							}
						}
					}
				}
				var cohortVarsHere []cpsat.BoolVar
				if req.EnableCohort && len(req.CohortCourses) > 0 {
					for _, sem2 := range req.SelectedSemesters {
						for _, course := range req.SemesterCourses[sem2] {
							k := courseKey{sem2, course.Code}
							if !course.IsLab || !isCohortCourse[k] {
								continue
							}
							for _, cc := range cohortMap[k] {
								for _, pl := range cc.Placements {
									if pl.Day == d && pl.Slot == ls.Index {
										if v, ok := cohortVars[cohortVarKey{sec.Code, course.Code, cc.Label}]; ok {
											cohortVarsHere = append(cohortVarsHere, v)
										}
									}
								}
							}
						}
					}
				}
				hi := int64(1)
				if len(cohortVarsHere) > 0 {
					hi = 2
				}
				indicator := model.NewIntVar(0, hi, fmt.Sprintf("has_lab_%s_%s_%d", sec.Code, d, ls.Index))
				combined := cpsat.NewExpr().AddBools(normalVars, 1).AddBools(cohortVarsHere, 1).AddInt(indicator, -1)
				model.AddEqual(combined, 0)
				lab[key][ls.Index] = boolFromIndicator(model, indicator, hi)
			}
		}
	}
	return theory, lab
}

// boolFromIndicator exposes a 0/1-valued IntVar as a BoolVar for the gap
// and span constraints, which only need "is this slot occupied at all".
// When hi==1 the IntVar already behaves like a boolean; when hi==2 (a
// cohort slot can add a second occupant, which higher-level constraints
// already forbid via C8 mutexes) the boolean view is "count >= 1", wired
// through an explicit indicator variable the same way a two-valued count
// gets clamped in the original search by the mutex constraints that make
// the sum provably <= 1 in any feasible solution.
func boolFromIndicator(model *cpsat.Model, indicator cpsat.IntVar, hi int64) cpsat.BoolVar {
	b := model.NewBoolVar("")
	if hi == 1 {
		model.AddEqual(cpsat.NewExpr().AddInt(indicator, 1).AddBool(b, -1), 0)
		return b
	}
	// occupied (b=1) iff indicator >= 1, i.e. indicator - b >= 0 and
	// indicator <= hi*b.
	model.AddGreaterOrEqual(cpsat.NewExpr().AddInt(indicator, 1).AddBool(b, -1), 0)
	model.AddLessOrEqual(cpsat.NewExpr().AddInt(indicator, 1).AddBool(b, -hi), 0)
	return b
}

// applyGapConstraints enforces C11: two occupied slots on the same section
// and day whose minute gap is below MinGapMinutes cannot both be occupied.
func applyGapConstraints(model *cpsat.Model, req MainModelRequest, days []Day, catalog *SlotCatalog, allSections []Section, hasTheory, hasLab slotUsage) {
	minGap := req.Constraints.MinGapMinutes
	for _, sec := range allSections {
		for _, d := range days {
			key := dayAssignKey{sec.Code, "", d}

			for i, t1 := range catalog.Theory {
				if Blackout(d, KindTheory, t1.Index) {
					continue
				}
				for _, t2 := range catalog.Theory[i+1:] {
					if Blackout(d, KindTheory, t2.Index) {
						continue
					}
					_, end1 := catalog.Minutes(KindTheory, t1.Index)
					start2, _ := catalog.Minutes(KindTheory, t2.Index)
					if start2-end1 < minGap {
						model.AddLessOrEqual(cpsat.SumBools(hasTheory[key][t1.Index], hasTheory[key][t2.Index]), 1)
					}
				}
			}

			for i, l1 := range catalog.Lab {
				for _, l2 := range catalog.Lab[i+1:] {
					_, end1 := catalog.Minutes(KindLab, l1.Index)
					start2, _ := catalog.Minutes(KindLab, l2.Index)
					if start2-end1 < minGap {
						model.AddLessOrEqual(cpsat.SumBools(hasLab[key][l1.Index], hasLab[key][l2.Index]), 1)
					}
				}
			}

			for _, t := range catalog.Theory {
				if Blackout(d, KindTheory, t.Index) {
					continue
				}
				_, tEnd := catalog.Minutes(KindTheory, t.Index)
				tStart, _ := catalog.Minutes(KindTheory, t.Index)
				for _, ls := range catalog.Lab {
					lStart, lEnd := catalog.Minutes(KindLab, ls.Index)
					if lStart-tEnd < minGap && tStart-lEnd < minGap {
						model.AddLessOrEqual(cpsat.SumBools(hasTheory[key][t.Index], hasLab[key][ls.Index]), 1)
					}
				}
			}
		}
	}
}

// applySpanConstraints enforces C10: for every (section, day), the gap
// between the earliest start and the latest end among occupied slots may
// not exceed MaxHoursPerDay*60 minutes. Each occupied/unoccupied slot is
// linked to a sentinel start/end value via OnlyEnforceIf-style conditional
// equalities, mirrored here through linkSentinel.
func applySpanConstraints(model *cpsat.Model, req MainModelRequest, days []Day, catalog *SlotCatalog, allSections []Section, hasTheory, hasLab slotUsage) {
	const bigM = 1440
	allowedSpan := int64(req.Constraints.MaxHoursPerDay * 60)
	if allowedSpan < 0 {
		allowedSpan = 0
	}

	for _, sec := range allSections {
		for _, d := range days {
			key := dayAssignKey{sec.Code, "", d}
			minStart := model.NewIntVar(0, bigM, fmt.Sprintf("min_start_%s_%s", sec.Code, d))
			maxEnd := model.NewIntVar(0, bigM, fmt.Sprintf("max_end_%s_%s", sec.Code, d))

			var starts, ends []cpsat.IntVar
			for _, t := range catalog.Theory {
				if Blackout(d, KindTheory, t.Index) {
					continue
				}
				occ := hasTheory[key][t.Index]
				startMin, endMin := catalog.Minutes(KindTheory, t.Index)
				startVar := model.NewIntVar(0, bigM, fmt.Sprintf("theory_start_%s_%s_%d", sec.Code, d, t.Index))
				endVar := model.NewIntVar(0, bigM, fmt.Sprintf("theory_end_%s_%s_%d", sec.Code, d, t.Index))
				linkSentinel(model, startVar, occ, int64(startMin), bigM)
				linkSentinel(model, endVar, occ, int64(endMin), 0)
				starts = append(starts, startVar)
				ends = append(ends, endVar)
			}
			for _, ls := range catalog.Lab {
				occ := hasLab[key][ls.Index]
				startMin, endMin := catalog.Minutes(KindLab, ls.Index)
				startVar := model.NewIntVar(0, bigM, fmt.Sprintf("lab_start_%s_%s_%d", sec.Code, d, ls.Index))
				endVar := model.NewIntVar(0, bigM, fmt.Sprintf("lab_end_%s_%s_%d", sec.Code, d, ls.Index))
				linkSentinel(model, startVar, occ, int64(startMin), bigM)
				linkSentinel(model, endVar, occ, int64(endMin), 0)
				starts = append(starts, startVar)
				ends = append(ends, endVar)
			}

			model.AddMinEquality(minStart, starts)
			model.AddMaxEquality(maxEnd, ends)
			// maxEnd - minStart <= allowedSpan
			model.AddLessOrEqual(cpsat.NewExpr().AddInt(maxEnd, 1).AddInt(minStart, -1), allowedSpan)
		}
	}
}

// linkSentinel enforces target == activeValue when occ holds, and
// target == inactiveValue otherwise — the two OnlyEnforceIf branches the
// original solver writes explicitly for every start/end auxiliary.
func linkSentinel(model *cpsat.Model, target cpsat.IntVar, occ cpsat.BoolVar, activeValue, inactiveValue int64) {
	model.AddEqual(cpsat.NewExpr().AddInt(target, 1), activeValue).OnlyEnforceIf(occ)
	model.AddEqual(cpsat.NewExpr().AddInt(target, 1), inactiveValue).OnlyEnforceIf(occ.Not())
}
