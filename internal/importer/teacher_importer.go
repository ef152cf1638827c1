package importer

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/qax-os/excelize/v2"

	"github.com/noah-isme/sma-adp-api/internal/timetable"
)

// TeacherResult is what ImportTeachers derives from a roster workbook: one
// preference row per (teacher, course, type) combination, plus the distinct
// teacher names seen so the caller can mint teacher IDs.
type TeacherResult struct {
	TeacherNames []string
	Preferences  []timetable.TeacherPreference
}

// ImportTeachers parses a single-sheet workbook of Teacher Name/Course
// Code/Sections Count/Type rows into preference entries. Course Code "*"
// means any course; Type accepts theory/t, lab/l, or */both/any for both
// kinds.
func ImportTeachers(data []byte) (*TeacherResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errf("open teacher workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errf("teacher workbook has no sheets")
	}
	t, err := readSheet(f, sheets[0])
	if err != nil {
		return nil, err
	}
	t.applyAliases(map[string][]string{
		"teacher_name":   {"teachername", "teacher", "name", "instructor"},
		"course_code":    {"coursecode", "code", "subject_code", "subject", "course"},
		"sections_count": {"sectionscount", "sections", "count"},
		"type":           {"slot_type", "slottype", "class_type", "kind"},
	})
	if err := t.requireColumns("teacher_name", "course_code", "sections_count", "type"); err != nil {
		return nil, err
	}

	result := &TeacherResult{}
	seenNames := map[string]bool{}

	for _, row := range t.rows {
		if rowIsEmpty(row) {
			continue
		}
		name := t.cell(row, "teacher_name")
		if name == "" {
			continue
		}
		code := t.cell(row, "course_code")
		if code == "" {
			code = "*"
		}
		count, err := strconv.Atoi(t.cell(row, "sections_count"))
		if err != nil {
			return nil, errf("invalid sections_count value: %s", t.cell(row, "sections_count"))
		}
		canTheory, canLab, err := parseTeacherType(t.cell(row, "type"))
		if err != nil {
			return nil, err
		}

		if !seenNames[name] {
			seenNames[name] = true
			result.TeacherNames = append(result.TeacherNames, name)
		}
		result.Preferences = append(result.Preferences, timetable.TeacherPreference{
			TeacherName:   name,
			CourseCode:    code,
			SectionsCount: count,
			CanTheory:     canTheory,
			CanLab:        canLab,
		})
	}

	if len(result.Preferences) == 0 {
		return nil, errf("no valid teacher preference rows found")
	}
	return result, nil
}

func rowIsEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseTeacherType(s string) (canTheory, canLab bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "theory", "t":
		return true, false, nil
	case "lab", "l":
		return false, true, nil
	case "*", "both", "any":
		return true, true, nil
	default:
		return false, false, errf("invalid type value: %s", s)
	}
}
