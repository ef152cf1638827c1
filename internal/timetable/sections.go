package timetable

import "fmt"

// BuildSections derives the deterministic, idempotent section codes for one
// semester's student population: ceil(n/sectionSize) sections, at least one,
// named S<sem><programCode><index>.
func BuildSections(semester, studentCount, sectionSize int, programCode string) []Section {
	if sectionSize <= 0 {
		sectionSize = 50
	}
	count := (studentCount + sectionSize - 1) / sectionSize
	if count < 1 {
		count = 1
	}
	sections := make([]Section, count)
	for i := 0; i < count; i++ {
		sections[i] = Section{
			Semester: semester,
			Code:     fmt.Sprintf("S%d%s%d", semester, programCode, i+1),
		}
	}
	return sections
}
