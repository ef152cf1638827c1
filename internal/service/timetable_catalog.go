package service

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-adp-api/internal/importer"
	"github.com/noah-isme/sma-adp-api/internal/timetable"
)

// catalogSnapshot is the JSON shape persisted by TimetableCatalogRepository:
// everything importer.Result carries, flattened into plain slices/maps so it
// round-trips through encoding/json (importer.Result.Catalog holds unexported
// overlap maps and cannot be serialized directly), plus the teacher
// preferences imported separately from a roster workbook.
type catalogSnapshot struct {
	Subjects           map[string]timetable.Subject   `json:"subjects"`
	SemesterCourses    map[int][]timetable.Subject     `json:"semesterCourses"`
	Rooms              []timetable.Room                `json:"rooms"`
	TheoryRooms        []string                         `json:"theoryRooms"`
	LabRooms           []string                         `json:"labRooms"`
	StudentCounts      map[int]int                      `json:"studentCounts"`
	Sections           map[int][]timetable.Section      `json:"sections"`
	TheorySlots        []timetable.TimeSlot             `json:"theorySlots"`
	LabSlots           []timetable.TimeSlot             `json:"labSlots"`
	Electives          []timetable.Elective             `json:"electives"`
	SpecialLabRooms    map[string][]string              `json:"specialLabRooms"`
	CohortCourses      []timetable.CohortCourse         `json:"cohortCourses"`
	TeacherPreferences []timetable.TeacherPreference     `json:"teacherPreferences"`
}

func newCatalogSnapshotFromImport(res *importer.Result) catalogSnapshot {
	snap := catalogSnapshot{
		Subjects:        res.Subjects,
		SemesterCourses: res.SemesterCourses,
		Rooms:           res.Rooms,
		TheoryRooms:     res.TheoryRooms,
		LabRooms:        res.LabRooms,
		StudentCounts:   res.StudentCounts,
		Sections:        res.Sections,
		Electives:       res.Electives,
		SpecialLabRooms: res.SpecialLabRooms,
		CohortCourses:   res.CohortCourses,
	}
	if res.Catalog != nil {
		snap.TheorySlots = res.Catalog.Theory
		snap.LabSlots = res.Catalog.Lab
	}
	return snap
}

func decodeCatalogSnapshot(data types.JSONText) (catalogSnapshot, error) {
	var snap catalogSnapshot
	if len(data) == 0 {
		return snap, fmt.Errorf("catalog snapshot is empty")
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode catalog snapshot: %w", err)
	}
	return snap, nil
}

func (s catalogSnapshot) encode() (types.JSONText, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode catalog snapshot: %w", err)
	}
	return types.JSONText(data), nil
}

func (s catalogSnapshot) slotCatalog() *timetable.SlotCatalog {
	if len(s.TheorySlots) == 0 && len(s.LabSlots) == 0 {
		return timetable.DefaultSlotCatalog()
	}
	return timetable.NewSlotCatalog(s.TheorySlots, s.LabSlots)
}

func (s catalogSnapshot) coursesForSemesters(semesters []int) map[int][]timetable.Subject {
	out := make(map[int][]timetable.Subject, len(semesters))
	for _, sem := range semesters {
		out[sem] = s.SemesterCourses[sem]
	}
	return out
}

func (s catalogSnapshot) catalogMap() map[string]timetable.Subject {
	if s.Subjects != nil {
		return s.Subjects
	}
	return map[string]timetable.Subject{}
}
