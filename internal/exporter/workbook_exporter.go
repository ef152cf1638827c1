// Package exporter renders generated timetable data into downloadable
// artifacts.
package exporter

import (
	"fmt"
	"sort"

	"github.com/qax-os/excelize/v2"

	"github.com/noah-isme/sma-adp-api/internal/timetable"
)

// WorkbookExporter builds the multi-sheet timetable workbook handed back by
// the export endpoint: a flat Timetable sheet, a day-by-time pivot, the
// Electives sheet, and a per-teacher schedule.
type WorkbookExporter struct{}

// NewWorkbookExporter builds a workbook exporter.
func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{}
}

// SectionInfo resolves a section code to the labels the workbook needs
// without importing the repository layer into this package.
type SectionInfo struct {
	Semester int
	Name     string
}

// WorkbookInput bundles everything Render needs to lay out every sheet.
type WorkbookInput struct {
	Slots         []timetable.TimetableSlot
	ElectiveSlots []timetable.ElectiveSlot
	Sections      map[string]SectionInfo
	Catalog       *timetable.SlotCatalog
	TeacherNames  map[string]string
}

var dayLabels = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func dayLabel(d timetable.Day) string {
	if int(d) < 0 || int(d) >= len(dayLabels) {
		return "?"
	}
	return dayLabels[d]
}

// Render builds the workbook and returns its bytes, ready to stream back as
// an application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// response.
func (e *WorkbookExporter) Render(in WorkbookInput) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeTimetableSheet(f, in); err != nil {
		return nil, fmt.Errorf("write timetable sheet: %w", err)
	}
	if err := e.writePivotSheet(f, in); err != nil {
		return nil, fmt.Errorf("write pivot sheet: %w", err)
	}
	if err := e.writeElectivesSheet(f, in); err != nil {
		return nil, fmt.Errorf("write electives sheet: %w", err)
	}
	if err := e.writeTeacherScheduleSheet(f, in); err != nil {
		return nil, fmt.Errorf("write teacher schedule sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type timetableRow struct {
	Semester int
	Section  string
	Subject  string
	Room     string
	Kind     timetable.SlotKind
	Day      timetable.Day
	Start    int
	End      int
	Teacher  string
}

func (e *WorkbookExporter) timetableRows(in WorkbookInput) []timetableRow {
	rows := make([]timetableRow, 0, len(in.Slots))
	for _, s := range in.Slots {
		info := in.Sections[s.Section]
		start, end := in.Catalog.Minutes(s.Kind, s.Slot)
		rows = append(rows, timetableRow{
			Semester: info.Semester,
			Section:  s.Section,
			Subject:  s.SubjectCode,
			Room:     s.Room,
			Kind:     s.Kind,
			Day:      s.Day,
			Start:    start,
			End:      end,
			Teacher:  in.TeacherNames[s.TeacherID],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Semester != rows[j].Semester {
			return rows[i].Semester < rows[j].Semester
		}
		if rows[i].Section != rows[j].Section {
			return rows[i].Section < rows[j].Section
		}
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		return rows[i].Start < rows[j].Start
	})
	return rows
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func (e *WorkbookExporter) writeTimetableSheet(f *excelize.File, in WorkbookInput) error {
	const sheet = "Timetable"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Semester", "Section", "Subject", "Room", "Type", "Day", "Start", "End", "Teacher"}
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		return err
	}
	for i, row := range e.timetableRows(in) {
		r := i + 2
		values := []interface{}{
			row.Semester, row.Section, row.Subject, row.Room, string(row.Kind),
			dayLabel(row.Day), formatMinutes(row.Start), formatMinutes(row.End), row.Teacher,
		}
		if err := writeDataRow(f, sheet, r, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writePivotSheet(f *excelize.File, in WorkbookInput) error {
	const sheet = "Timetable_Pivot"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := append([]string{"Semester", "Section", "Time"}, dayLabels[:]...)
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		return err
	}

	rows := e.timetableRows(in)

	type sectionKey struct {
		semester int
		section  string
	}
	type timeKey struct{ start, end int }
	type cellKey struct {
		sectionKey
		day   timetable.Day
		start int
		end   int
	}

	seenTimes := map[timeKey]bool{}
	var times []timeKey
	seenSections := map[sectionKey]bool{}
	var sections []sectionKey
	cells := map[cellKey][]string{}

	for _, row := range rows {
		tk := timeKey{row.Start, row.End}
		if !seenTimes[tk] {
			seenTimes[tk] = true
			times = append(times, tk)
		}
		sk := sectionKey{row.Semester, row.Section}
		if !seenSections[sk] {
			seenSections[sk] = true
			sections = append(sections, sk)
		}
		label := fmt.Sprintf("%s @ %s", row.Subject, row.Room)
		if row.Kind == timetable.KindLab {
			label += " (LAB)"
		}
		if row.Teacher != "" {
			label += fmt.Sprintf(" [%s]", row.Teacher)
		}
		ck := cellKey{sk, row.Day, row.Start, row.End}
		cells[ck] = append(cells[ck], label)
	}

	sort.Slice(times, func(i, j int) bool {
		if times[i].start != times[j].start {
			return times[i].start < times[j].start
		}
		return times[i].end < times[j].end
	})
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].semester != sections[j].semester {
			return sections[i].semester < sections[j].semester
		}
		return sections[i].section < sections[j].section
	})

	r := 2
	for _, sk := range sections {
		for _, tk := range times {
			values := []interface{}{sk.semester, sk.section, fmt.Sprintf("%s-%s", formatMinutes(tk.start), formatMinutes(tk.end))}
			for _, d := range timetable.DefaultDays {
				ck := cellKey{sk, d, tk.start, tk.end}
				values = append(values, joinLabels(cells[ck]))
			}
			if err := writeDataRow(f, sheet, r, values); err != nil {
				return err
			}
			r++
		}
	}
	return nil
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += " | "
		}
		out += l
	}
	return out
}

func (e *WorkbookExporter) writeElectivesSheet(f *excelize.File, in WorkbookInput) error {
	const sheet = "Electives"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Elective", "Room", "Type", "Day", "Start", "End"}
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		return err
	}
	rows := append([]timetable.ElectiveSlot(nil), in.ElectiveSlots...)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		return rows[i].Slot < rows[j].Slot
	})
	for i, s := range rows {
		start, end := in.Catalog.Minutes(s.Kind, s.Slot)
		values := []interface{}{
			s.ElectiveCode, s.Room, string(s.Kind), dayLabel(s.Day), formatMinutes(start), formatMinutes(end),
		}
		if err := writeDataRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeTeacherScheduleSheet(f *excelize.File, in WorkbookInput) error {
	const sheet = "Teacher_Schedule"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Teacher", "Course", "Section", "Room", "Day", "Time"}
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		return err
	}
	rows := e.timetableRows(in)
	var filtered []timetableRow
	for _, row := range rows {
		if row.Teacher == "" {
			continue
		}
		filtered = append(filtered, row)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Teacher != filtered[j].Teacher {
			return filtered[i].Teacher < filtered[j].Teacher
		}
		if filtered[i].Day != filtered[j].Day {
			return filtered[i].Day < filtered[j].Day
		}
		return filtered[i].Start < filtered[j].Start
	})
	for i, row := range filtered {
		values := []interface{}{
			row.Teacher, row.Subject, row.Section, row.Room, dayLabel(row.Day),
			fmt.Sprintf("%s-%s", formatMinutes(row.Start), formatMinutes(row.End)),
		}
		if err := writeDataRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	return nil
}

func writeDataRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
