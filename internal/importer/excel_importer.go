// Package importer turns uploaded spreadsheets into the structures
// internal/timetable needs: subjects, rooms, auto-generated sections, the
// slot catalog, electives, special labs and cohort placements.
package importer

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/qax-os/excelize/v2"

	"github.com/noah-isme/sma-adp-api/internal/timetable"
)

// Error reports a malformed workbook: a missing sheet, a missing column, or
// a cell that couldn't be parsed into the expected type.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func errf(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Result is everything validate_and_import derives from a workbook pair.
type Result struct {
	Subjects        map[string]timetable.Subject
	SemesterCourses map[int][]timetable.Subject
	Rooms           []timetable.Room
	TheoryRooms     []string
	LabRooms        []string
	StudentCounts   map[int]int
	Sections        map[int][]timetable.Section
	Catalog         *timetable.SlotCatalog
	Electives       []timetable.Elective
	SpecialLabRooms map[string][]string
	CohortCourses   []timetable.CohortCourse
}

// SectionSize is the fixed section-splitting rule: ceil(studentCount/50).
const SectionSize = 50

var headerNormalizer = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeHeader(raw string) string {
	return strings.Trim(headerNormalizer.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "_"), "_")
}

// sheetTable is a normalized view over one worksheet: header name -> column
// index, plus the raw data rows.
type sheetTable struct {
	columns map[string]int
	rows    [][]string
}

func readSheet(f *excelize.File, name string) (*sheetTable, error) {
	rows, err := f.GetRows(name)
	if err != nil || len(rows) == 0 {
		return nil, errf("missing required sheet: %s", name)
	}
	columns := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		columns[normalizeHeader(h)] = i
	}
	return &sheetTable{columns: columns, rows: rows[1:]}, nil
}

func readOptionalSheet(f *excelize.File, name string) (*sheetTable, bool) {
	t, err := readSheet(f, name)
	if err != nil {
		return nil, false
	}
	return t, true
}

// applyAliases remaps alternate header spellings onto the canonical target
// name, mirroring _normalize_columns' alias pass. A target already present
// is left untouched.
func (t *sheetTable) applyAliases(aliases map[string][]string) {
	for target, alts := range aliases {
		if _, ok := t.columns[target]; ok {
			continue
		}
		for _, alt := range alts {
			if idx, ok := t.columns[normalizeHeader(alt)]; ok {
				t.columns[target] = idx
				break
			}
		}
	}
}

func (t *sheetTable) requireColumns(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := t.columns[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return errf("sheet must contain columns: %s (missing: %s)", strings.Join(names, ", "), strings.Join(missing, ", "))
	}
	return nil
}

func (t *sheetTable) has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

func (t *sheetTable) cell(row []string, name string) string {
	idx, ok := t.columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "t":
		return true
	default:
		return false
	}
}

var dayNameIndex = map[string]timetable.Day{
	"mon": timetable.Monday, "monday": timetable.Monday,
	"tue": timetable.Tuesday, "tues": timetable.Tuesday, "tuesday": timetable.Tuesday,
	"wed": timetable.Wednesday, "weds": timetable.Wednesday, "wednesday": timetable.Wednesday,
	"thu": timetable.Thursday, "thur": timetable.Thursday, "thurs": timetable.Thursday, "thursday": timetable.Thursday,
	"fri": timetable.Friday, "friday": timetable.Friday,
	"sat": timetable.Saturday, "saturday": timetable.Saturday,
}

func parseDay(s string) (timetable.Day, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errf("day value is empty")
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 5 {
		return timetable.Day(n), nil
	}
	if d, ok := dayNameIndex[strings.ToLower(s)]; ok {
		return d, nil
	}
	return 0, errf("unrecognized day value: %s", s)
}

func parseSlotType(s string) (timetable.SlotKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "theory", "t", "lec", "lecture":
		return timetable.KindTheory, nil
	case "lab", "l":
		return timetable.KindLab, nil
	default:
		return "", errf("unrecognized slot_type: %s", s)
	}
}

var timeLayouts = []string{"15:04", "15.04", "3:04 PM", "3:04PM", "3 PM", "15"}

func parseTimeMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errf("time value is empty")
	}
	for _, layout := range timeLayouts {
		if t, err := parseWithLayout(layout, s); err == nil {
			return t, nil
		}
	}
	return 0, errf("unrecognized time format: %s", s)
}

// parseWithLayout hand-rolls the handful of layouts excel_importer.py
// accepts, since the format set is small and Go's time.Parse strftime-style
// layouts don't map cleanly onto "%I %p" without a reference-time table per
// layout; this mirrors the original's strptime loop without dragging in a
// third-party time-format library for six fixed patterns.
func parseWithLayout(layout, s string) (int, error) {
	switch layout {
	case "15:04", "15.04":
		sep := ":"
		if layout == "15.04" {
			sep = "."
		}
		parts := strings.SplitN(s, sep, 2)
		if len(parts) != 2 {
			return 0, errf("no match")
		}
		h, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		m, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			return 0, errf("no match")
		}
		return h*60 + m, nil
	case "3:04 PM", "3:04PM":
		upper := strings.ToUpper(s)
		suffix := ""
		if strings.HasSuffix(upper, "AM") || strings.HasSuffix(upper, "PM") {
			suffix = upper[len(upper)-2:]
			upper = strings.TrimSpace(upper[:len(upper)-2])
		} else {
			return 0, errf("no match")
		}
		parts := strings.SplitN(upper, ":", 2)
		if len(parts) != 2 {
			return 0, errf("no match")
		}
		h, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		m, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil || h < 1 || h > 12 || m < 0 || m > 59 {
			return 0, errf("no match")
		}
		if suffix == "PM" && h != 12 {
			h += 12
		}
		if suffix == "AM" && h == 12 {
			h = 0
		}
		return h*60 + m, nil
	case "3 PM":
		upper := strings.ToUpper(strings.TrimSpace(s))
		suffix := ""
		if strings.HasSuffix(upper, "AM") || strings.HasSuffix(upper, "PM") {
			suffix = upper[len(upper)-2:]
			upper = strings.TrimSpace(upper[:len(upper)-2])
		} else {
			return 0, errf("no match")
		}
		h, err := strconv.Atoi(upper)
		if err != nil || h < 1 || h > 12 {
			return 0, errf("no match")
		}
		if suffix == "PM" && h != 12 {
			h += 12
		}
		if suffix == "AM" && h == 12 {
			h = 0
		}
		return h * 60, nil
	case "15":
		h, err := strconv.Atoi(s)
		if err != nil || h < 0 || h > 23 {
			return 0, errf("no match")
		}
		return h * 60, nil
	}
	return 0, errf("no match")
}

// ImportMain parses the main workbook (Roadmap, Rooms, StudentCapacity,
// optional TimeSlots/Electives/SpecialLabs sheets) and returns the derived
// domain structures. It does not touch a database — the caller's service
// layer owns persistence.
func ImportMain(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errf("open workbook: %v", err)
	}
	defer f.Close()

	result := &Result{
		Subjects:        make(map[string]timetable.Subject),
		SemesterCourses: make(map[int][]timetable.Subject),
		StudentCounts:   make(map[int]int),
		Sections:        make(map[int][]timetable.Section),
		SpecialLabRooms: make(map[string][]string),
	}

	if err := importRoadmap(f, result); err != nil {
		return nil, err
	}
	if err := importRooms(f, result); err != nil {
		return nil, err
	}
	if err := importStudentCapacity(f, result); err != nil {
		return nil, err
	}
	if err := importTimeSlots(f, result); err != nil {
		return nil, err
	}
	if err := importElectives(f, result); err != nil {
		return nil, err
	}
	if err := importSpecialLabs(f, result); err != nil {
		return nil, err
	}
	return result, nil
}

func importRoadmap(f *excelize.File, result *Result) error {
	t, err := readSheet(f, "Roadmap")
	if err != nil {
		return err
	}
	if err := t.requireColumns("semester", "course_code", "course_name", "is_lab", "times_needed"); err != nil {
		return err
	}
	for _, row := range t.rows {
		sem, err := strconv.Atoi(t.cell(row, "semester"))
		if err != nil {
			return errf("invalid semester value: %s", t.cell(row, "semester"))
		}
		timesNeeded, err := strconv.Atoi(t.cell(row, "times_needed"))
		if err != nil {
			return errf("invalid times_needed value: %s", t.cell(row, "times_needed"))
		}
		code := t.cell(row, "course_code")
		subject := timetable.Subject{
			Code:        code,
			Name:        t.cell(row, "course_name"),
			IsLab:       parseBool(t.cell(row, "is_lab")),
			TimesNeeded: timesNeeded,
		}
		result.Subjects[code] = subject
		result.SemesterCourses[sem] = append(result.SemesterCourses[sem], subject)
	}
	return nil
}

func importRooms(f *excelize.File, result *Result) error {
	t, err := readSheet(f, "Rooms")
	if err != nil {
		return err
	}
	if err := t.requireColumns("room_name", "room_type"); err != nil {
		return err
	}
	for _, row := range t.rows {
		kind, err := parseSlotType(t.cell(row, "room_type"))
		if err != nil {
			return err
		}
		name := t.cell(row, "room_name")
		result.Rooms = append(result.Rooms, timetable.Room{Name: name, Kind: kind})
		if kind == timetable.KindTheory {
			result.TheoryRooms = append(result.TheoryRooms, name)
		} else {
			result.LabRooms = append(result.LabRooms, name)
		}
	}
	return nil
}

func importStudentCapacity(f *excelize.File, result *Result) error {
	t, err := readSheet(f, "StudentCapacity")
	if err != nil {
		return err
	}
	if err := t.requireColumns("semester", "student_count"); err != nil {
		return err
	}
	for _, row := range t.rows {
		sem, err := strconv.Atoi(t.cell(row, "semester"))
		if err != nil {
			return errf("invalid semester value: %s", t.cell(row, "semester"))
		}
		count, err := strconv.Atoi(t.cell(row, "student_count"))
		if err != nil {
			return errf("invalid student_count value: %s", t.cell(row, "student_count"))
		}
		result.StudentCounts[sem] = count

		sectionsNeeded := (count + SectionSize - 1) / SectionSize
		if sectionsNeeded < 1 {
			sectionsNeeded = 1
		}
		for i := 0; i < sectionsNeeded; i++ {
			result.Sections[sem] = append(result.Sections[sem], timetable.Section{
				Semester: sem,
				Code:     fmt.Sprintf("S%dA%d", sem, i+1),
			})
		}
	}
	return nil
}

func importTimeSlots(f *excelize.File, result *Result) error {
	t, ok := readOptionalSheet(f, "TimeSlots")
	if !ok {
		result.Catalog = timetable.DefaultSlotCatalog()
		return nil
	}
	if err := t.requireColumns("day", "start", "end", "slot_type"); err != nil {
		return err
	}
	var theory, lab []timetable.TimeSlot
	theoryIdx, labIdx := 0, 0
	for _, row := range t.rows {
		start, err := parseTimeMinutes(t.cell(row, "start"))
		if err != nil {
			return err
		}
		end, err := parseTimeMinutes(t.cell(row, "end"))
		if err != nil {
			return err
		}
		kind, err := parseSlotType(t.cell(row, "slot_type"))
		if err != nil {
			return err
		}
		if kind == timetable.KindTheory {
			theory = append(theory, timetable.TimeSlot{Index: theoryIdx, Kind: kind, StartMinute: start, EndMinute: end})
			theoryIdx++
		} else {
			lab = append(lab, timetable.TimeSlot{Index: labIdx, Kind: kind, StartMinute: start, EndMinute: end})
			labIdx++
		}
	}
	result.Catalog = timetable.NewSlotCatalog(theory, lab)
	return nil
}

func importElectives(f *excelize.File, result *Result) error {
	t, ok := readOptionalSheet(f, "Electives")
	if !ok {
		return nil
	}
	if err := t.requireColumns("elective_code", "elective_name", "sections_count", "can_use_theory", "can_use_lab"); err != nil {
		return err
	}
	for _, row := range t.rows {
		count, err := strconv.Atoi(t.cell(row, "sections_count"))
		if err != nil {
			return errf("invalid sections_count value: %s", t.cell(row, "sections_count"))
		}
		code := t.cell(row, "elective_code")
		name := t.cell(row, "elective_name")
		if name == "" {
			name = code
		}
		result.Electives = append(result.Electives, timetable.Elective{
			Code:          code,
			Name:          name,
			SectionsCount: count,
			CanUseTheory:  parseBool(t.cell(row, "can_use_theory")),
			CanUseLab:     parseBool(t.cell(row, "can_use_lab")),
		})
	}
	return nil
}

func importSpecialLabs(f *excelize.File, result *Result) error {
	t, ok := readOptionalSheet(f, "SpecialLabs")
	if !ok {
		return nil
	}
	t.applyAliases(map[string][]string{
		"course_code": {"coursecode", "code", "subject_code", "subject", "course"},
		"room_name":   {"roomname", "room", "lab_room", "lab"},
	})

	if !t.has("room_name") {
		for _, multi := range []string{"lab_rooms", "rooms", "labrooms"} {
			if !t.has(multi) {
				continue
			}
			for _, row := range t.rows {
				code := t.cell(row, "course_code")
				raw := t.cell(row, multi)
				for _, rn := range strings.Split(strings.ReplaceAll(raw, ";", ","), ",") {
					rn = strings.TrimSpace(rn)
					if rn == "" || strings.EqualFold(rn, "nan") {
						continue
					}
					result.SpecialLabRooms[code] = append(result.SpecialLabRooms[code], rn)
				}
			}
			return nil
		}
	}

	if err := t.requireColumns("course_code", "room_name"); err != nil {
		return err
	}
	for _, row := range t.rows {
		code := t.cell(row, "course_code")
		if _, ok := result.Subjects[code]; !ok {
			return errf("SpecialLabs refers to unknown course_code %q; add it to Roadmap first", code)
		}
		result.SpecialLabRooms[code] = append(result.SpecialLabRooms[code], t.cell(row, "room_name"))
	}
	return nil
}

// ImportCohorts parses the separate cohort workbook against an already
// parsed main Result, producing CohortCourse entries with catalog-indexed
// placements. Two layouts are supported: one row per (course, section,
// day) with an explicit day column, or one row per (course, section) with
// per-day columns (mon..sat) whose cell values resolve to a placement.
func ImportCohorts(data []byte, result *Result) ([]timetable.CohortCourse, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errf("open cohort workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errf("cohort workbook has no sheets")
	}
	t, err := readSheet(f, sheets[0])
	if err != nil {
		return nil, err
	}
	t.applyAliases(map[string][]string{
		"cohort_semester": {"cohortsemester", "semester", "sem", "sem_no", "semnumber", "sem_number"},
		"course_code":     {"coursecode", "code", "subject_code", "subjectcode", "course"},
		"section":         {"cohort_section", "cohortsection", "cohort", "section_label", "sectionlabel", "section_name"},
		"capacity":        {"cap", "size", "count", "student_count"},
		"day":             {"weekday", "day_of_week", "weekday_index"},
		"timeslot":        {"timeslotid", "slot_id", "slotid", "timeslot_id", "timeslot_index"},
		"start":           {"start_time", "starttime", "begin", "from"},
		"end":             {"end_time", "endtime", "finish", "to"},
		"slot_type":       {"slottype", "type", "class_type"},
		"mon":             {"monday"},
		"tue":             {"tuesday", "tues"},
		"wed":             {"wednesday", "weds"},
		"thu":             {"thursday", "thur", "thurs"},
		"fri":             {"friday"},
		"sat":             {"saturday"},
	})

	if err := t.requireColumns("cohort_semester", "course_code", "section", "capacity"); err != nil {
		return nil, err
	}

	hasDay := t.has("day")
	dayColumns := map[string]timetable.Day{
		"mon": timetable.Monday, "tue": timetable.Tuesday, "wed": timetable.Wednesday,
		"thu": timetable.Thursday, "fri": timetable.Friday, "sat": timetable.Saturday,
	}
	var presentDayCols []string
	for col := range dayColumns {
		if t.has(col) {
			presentDayCols = append(presentDayCols, col)
		}
	}
	if !hasDay && len(presentDayCols) == 0 {
		return nil, errf("cohort file must include either a 'day' column or daily columns like mon,tue,wed,thu,fri,sat")
	}

	var cohorts []timetable.CohortCourse
	catalog := result.Catalog
	if catalog == nil {
		catalog = timetable.DefaultSlotCatalog()
	}

	for _, row := range t.rows {
		sem, err := strconv.Atoi(t.cell(row, "cohort_semester"))
		if err != nil {
			return nil, errf("invalid cohort_semester value: %s", t.cell(row, "cohort_semester"))
		}
		code := t.cell(row, "course_code")
		if _, ok := result.Subjects[code]; !ok {
			return nil, errf("cohort references unknown course_code %q; add it to Roadmap first", code)
		}
		label := t.cell(row, "section")
		capacity, err := strconv.Atoi(t.cell(row, "capacity"))
		if err != nil {
			return nil, errf("invalid capacity value: %s", t.cell(row, "capacity"))
		}

		if hasDay {
			placement, err := resolveCohortCell(t, row, "day", catalog)
			if err != nil {
				return nil, err
			}
			if placement == nil {
				continue
			}
			cohorts = append(cohorts, timetable.CohortCourse{
				Semester: sem, SubjectCode: code, Label: label, Capacity: capacity,
				Placements: []timetable.CohortPlacement{*placement},
			})
			continue
		}

		var placements []timetable.CohortPlacement
		for col, d := range dayColumns {
			if !t.has(col) {
				continue
			}
			val := t.cell(row, col)
			if val == "" || strings.EqualFold(val, "na") || strings.EqualFold(val, "n/a") || val == "-" || val == "0" {
				continue
			}
			placement, err := resolveCohortCellValue(val, d, catalog)
			if err != nil {
				return nil, err
			}
			if placement != nil {
				placements = append(placements, *placement)
			}
		}
		if len(placements) == 0 {
			continue
		}
		cohorts = append(cohorts, timetable.CohortCourse{
			Semester: sem, SubjectCode: code, Label: label, Capacity: capacity, Placements: placements,
		})
	}
	return cohorts, nil
}

func resolveCohortCell(t *sheetTable, row []string, dayColumn string, catalog *timetable.SlotCatalog) (*timetable.CohortPlacement, error) {
	d, err := parseDay(t.cell(row, dayColumn))
	if err != nil {
		return nil, err
	}
	if t.has("timeslot") {
		if raw := t.cell(row, "timeslot"); raw != "" {
			if idx, err := strconv.Atoi(raw); err == nil {
				kind := timetable.KindTheory
				if t.has("slot_type") {
					if k, err := parseSlotType(t.cell(row, "slot_type")); err == nil {
						kind = k
					}
				}
				return &timetable.CohortPlacement{Day: d, Slot: idx, Kind: kind}, nil
			}
		}
	}
	if t.has("start") && t.has("end") && t.has("slot_type") {
		start, err := parseTimeMinutes(t.cell(row, "start"))
		if err != nil {
			return nil, err
		}
		end, err := parseTimeMinutes(t.cell(row, "end"))
		if err != nil {
			return nil, err
		}
		kind, err := parseSlotType(t.cell(row, "slot_type"))
		if err != nil {
			return nil, err
		}
		idx, ok := catalog.FindSlot(kind, start, end)
		if !ok {
			return nil, errf("cohort row could not resolve a timeslot with day=%v start=%d end=%d type=%s", d, start, end, kind)
		}
		return &timetable.CohortPlacement{Day: d, Slot: idx, Kind: kind}, nil
	}
	return nil, errf("cohort row could not resolve a timeslot by id or by start/end/slot_type")
}

// resolveCohortCellValue parses a per-day column cell: either a bare
// integer timeslot index, or "start-end [type]" text.
func resolveCohortCellValue(val string, day timetable.Day, catalog *timetable.SlotCatalog) (*timetable.CohortPlacement, error) {
	if idx, err := strconv.Atoi(val); err == nil {
		return &timetable.CohortPlacement{Day: day, Slot: idx, Kind: timetable.KindTheory}, nil
	}
	parts := splitRange(val)
	if parts == nil {
		return nil, nil
	}
	startStr, rest := parts[0], parts[1]
	restFields := strings.Fields(rest)
	if len(restFields) == 0 {
		return nil, errf("unrecognized cohort cell: %s", val)
	}
	endStr := restFields[0]
	remainder := strings.ToLower(strings.Join(restFields[1:], " "))

	start, err := parseTimeMinutes(startStr)
	if err != nil {
		return nil, err
	}
	end, err := parseTimeMinutes(endStr)
	if err != nil {
		return nil, err
	}
	kind := timetable.KindTheory
	if strings.Contains(remainder, "lab") {
		kind = timetable.KindLab
	}
	idx, ok := catalog.FindSlot(kind, start, end)
	if !ok {
		return nil, errf("unresolved cohort timeslot: %s", val)
	}
	return &timetable.CohortPlacement{Day: day, Slot: idx, Kind: kind}, nil
}

var rangeSeparators = regexp.MustCompile(`\s*(?:-|to|–|—)\s*`)

func splitRange(s string) []string {
	parts := rangeSeparators.Split(strings.TrimSpace(s), 2)
	if len(parts) != 2 {
		return nil
	}
	return parts
}
