package timetable

import "sort"

// TeacherAssignmentResult mirrors the original assigner's response dict:
// counts plus per-teacher workload and any warnings worth surfacing to the
// caller.
type TeacherAssignmentResult struct {
	Status           string
	Assigned         int
	Unassigned       int
	TotalSlots       int
	TeacherWorkloads map[string]int
	Warnings         []string
}

// timeslotKey identifies one (day, kind, slot) period — a teacher can only
// hold one assignment per period regardless of room or section.
type timeslotKey struct {
	day  Day
	kind SlotKind
	slot int
}

// AssignTeachers greedily assigns teachers to already-placed timetable slots
// in strict specificity order, without backtracking: once a preference
// claims a slot it is never given up, even if a later, more specific
// preference could also have matched it. Slots is modified in place (each
// matched slot's TeacherID is set) and also returned for convenience.
func AssignTeachers(slots []TimetableSlot, prefs []TeacherPreference, catalog map[string]Subject) (*TeacherAssignmentResult, []TimetableSlot) {
	if len(slots) == 0 {
		return &TeacherAssignmentResult{Status: "no-slots"}, slots
	}
	if len(prefs) == 0 {
		return &TeacherAssignmentResult{Status: "no-preferences", Unassigned: len(slots)}, slots
	}

	sorted := sortPreferencesByPriority(prefs)

	assigned := make(map[int]bool, len(slots))
	workload := make(map[string]int)
	usedTimeslots := make(map[string]map[timeslotKey]bool)

	for _, pref := range sorted {
		if usedTimeslots[pref.TeacherID] == nil {
			usedTimeslots[pref.TeacherID] = make(map[timeslotKey]bool)
		}
		teacherSlots := usedTimeslots[pref.TeacherID]

		matching := findMatchingSlots(slots, pref, assigned, catalog)

		assignedCount := 0
		for _, i := range matching {
			if assignedCount >= pref.SectionsCount {
				break
			}
			slot := &slots[i]
			key := timeslotKey{slot.Day, slot.Kind, slot.Slot}
			if teacherSlots[key] {
				continue
			}
			slot.TeacherID = pref.TeacherID
			assigned[i] = true
			teacherSlots[key] = true
			workload[pref.TeacherID]++
			assignedCount++
		}
	}

	total := len(slots)
	assignedCountTotal := len(assigned)
	unassigned := total - assignedCountTotal

	teacherNames := make(map[string]string, len(prefs))
	for _, p := range prefs {
		teacherNames[p.TeacherID] = p.TeacherName
	}

	var warnings []string
	teacherIDs := make([]string, 0, len(workload))
	for id := range workload {
		teacherIDs = append(teacherIDs, id)
	}
	sort.Strings(teacherIDs)
	for _, id := range teacherIDs {
		warnings = append(warnings, teacherNames[id]+": "+itoa(workload[id])+" slots assigned")
	}
	if unassigned > 0 {
		warnings = append(warnings, "unassigned slots remain: no matching teacher preference")
	}

	return &TeacherAssignmentResult{
		Status:           "ok",
		Assigned:         assignedCountTotal,
		Unassigned:       unassigned,
		TotalSlots:       total,
		TeacherWorkloads: workload,
		Warnings:         warnings,
	}, slots
}

// sortPreferencesByPriority orders preferences most-specific first:
// specific course + specific type, then specific course + either type, then
// wildcard course + specific type, then wildcard course + either type. Ties
// break by course code then teacher name, matching the original's secondary
// sort key.
func sortPreferencesByPriority(prefs []TeacherPreference) []TeacherPreference {
	out := append([]TeacherPreference(nil), prefs...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priorityRank(out[i]), priorityRank(out[j])
		if pi != pj {
			return pi < pj
		}
		if out[i].CourseCode != out[j].CourseCode {
			return out[i].CourseCode < out[j].CourseCode
		}
		return out[i].TeacherName < out[j].TeacherName
	})
	return out
}

func priorityRank(pref TeacherPreference) int {
	wildcardCourse := pref.CourseCode == "*"
	wildcardType := pref.CanTheory && pref.CanLab
	switch {
	case !wildcardCourse && !wildcardType:
		return 0
	case !wildcardCourse && wildcardType:
		return 1
	case wildcardCourse && !wildcardType:
		return 2
	default:
		return 3
	}
}

// findMatchingSlots returns the indices (into slots) of every unassigned
// slot matching pref's course and type filter.
func findMatchingSlots(slots []TimetableSlot, pref TeacherPreference, assigned map[int]bool, catalog map[string]Subject) []int {
	var matching []int
	for i, slot := range slots {
		if assigned[i] {
			continue
		}
		if pref.CourseCode != "*" && slot.SubjectCode != pref.CourseCode {
			continue
		}
		subject, ok := catalog[slot.SubjectCode]
		isLab := ok && subject.IsLab
		if isLab {
			if !pref.CanLab {
				continue
			}
		} else {
			if !pref.CanTheory {
				continue
			}
		}
		matching = append(matching, i)
	}
	return matching
}
