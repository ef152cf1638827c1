package timetable

import (
	"fmt"

	"github.com/noah-isme/sma-adp-api/internal/timetable/cpsat"
)

// extractMainResult walks every decision variable that solved true and
// turns it into a placed TimetableSlot plus a matching Allocation for the
// usage ledger — result extraction (§4.4.3).
func extractMainResult(
	req MainModelRequest,
	solution *cpsat.Solution,
	days []Day,
	catalog *SlotCatalog,
	semesterSections map[int][]Section,
	isCohortCourse map[courseKey]bool,
	cohortMap map[courseKey][]CohortCourse,
	assignments map[assignKey]cpsat.BoolVar,
	cohortVars map[cohortVarKey]cpsat.BoolVar,
	normalLabs []string,
	specialLabRooms map[string][]string,
) *MainModelResult {
	result := &MainModelResult{SemesterSections: semesterSections}

	for _, sem := range req.SelectedSemesters {
		for _, sec := range semesterSections[sem] {
			for _, course := range req.SemesterCourses[sem] {
				if req.EnableCohort && isCohortCourse[courseKey{sem, course.Code}] {
					continue
				}
				occupant := fmt.Sprintf("%s-%s", sec.Code, course.Code)
				if !course.IsLab {
					for _, d := range days {
						for _, t := range catalog.Theory {
							if Blackout(d, KindTheory, t.Index) {
								continue
							}
							for _, r := range req.TheoryRooms {
								v, ok := assignments[assignKey{sec.Code, course.Code, d, t.Index, r, KindTheory}]
								if !ok || !solution.BoolValue(v) {
									continue
								}
								result.Slots = append(result.Slots, TimetableSlot{
									Section: sec.Code, SubjectCode: course.Code, Room: r,
									Day: d, Slot: t.Index, Kind: KindTheory,
								})
								result.Allocations = append(result.Allocations, Allocation{
									Kind: KindTheory, Room: r, Day: d, Slot: t.Index, Occupant: occupant,
								})
							}
						}
					}
				} else {
					labs := labsForCourse(course.Code, specialLabRooms, normalLabs)
					for _, d := range days {
						for _, ls := range catalog.Lab {
							for _, lbR := range labs {
								v, ok := assignments[assignKey{sec.Code, course.Code, d, ls.Index, lbR, KindLab}]
								if !ok || !solution.BoolValue(v) {
									continue
								}
								result.Slots = append(result.Slots, TimetableSlot{
									Section: sec.Code, SubjectCode: course.Code, Room: lbR,
									Day: d, Slot: ls.Index, Kind: KindLab,
								})
								result.Allocations = append(result.Allocations, Allocation{
									Kind: KindLab, Room: lbR, Day: d, Slot: ls.Index, Occupant: occupant,
								})
							}
						}
					}
				}
			}
		}
	}

	if req.EnableCohort && len(req.CohortCourses) > 0 {
		for _, sem := range req.SelectedSemesters {
			for _, course := range req.SemesterCourses[sem] {
				key := courseKey{sem, course.Code}
				if !isCohortCourse[key] {
					continue
				}
				for _, sec := range semesterSections[sem] {
					occupant := fmt.Sprintf("%s-%s", sec.Code, course.Code)
					var chosen *CohortCourse
					for i := range cohortMap[key] {
						cc := cohortMap[key][i]
						v, ok := cohortVars[cohortVarKey{sec.Code, course.Code, cc.Label}]
						if ok && solution.BoolValue(v) {
							chosen = &cc
							break
						}
					}
					if chosen == nil {
						continue
					}
					room := chosen.Room
					if room == "" {
						room = fmt.Sprintf("CohortRoom(%s-%s)", course.Code, chosen.Label)
					}
					for _, pl := range chosen.Placements {
						if Blackout(pl.Day, KindTheory, pl.Slot) {
							continue
						}
						result.Slots = append(result.Slots, TimetableSlot{
							Section: sec.Code, SubjectCode: course.Code, Room: room,
							Day: pl.Day, Slot: pl.Slot, Kind: pl.Kind, CohortLabel: chosen.Label,
						})
						result.Allocations = append(result.Allocations, Allocation{
							Kind: pl.Kind, Room: room, Day: pl.Day, Slot: pl.Slot, Occupant: occupant,
						})
					}
				}
			}
		}
	}

	return result
}
