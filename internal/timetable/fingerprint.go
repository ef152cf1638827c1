package timetable

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// FingerprintPayload mirrors the deterministic input snapshot hashed before
// every main-model run: the same (selected semesters, section sizes, course
// list, rooms, slot windows, special-lab map, cohort flattening, program
// code, section size, constraints) shape the run is short-circuited against.
type FingerprintPayload struct {
	SelectedSemesters []int                `json:"selected_semesters"`
	SectionSizes      map[string]int       `json:"section_sizes"`
	SemesterCourses   map[string][]CourseTuple `json:"semester_courses"`
	TheoryRooms       []string             `json:"theory_rooms"`
	LabRooms          []string             `json:"lab_rooms"`
	TheoryWindows     []string             `json:"theory_windows"`
	LabWindows        []string             `json:"lab_windows"`
	SpecialLabRooms   map[string][]string  `json:"special_lab_rooms"`
	Cohort            []CohortTuple        `json:"cohort,omitempty"`
	ProgramCode       string               `json:"program_code"`
	SectionSize       int                  `json:"section_size"`
	EnableCohort      bool                 `json:"enable_cohort"`
	Constraints       Constraints          `json:"constraints"`
}

// CourseTuple is one (code, is_lab, times_needed, credit_hour) entry.
type CourseTuple struct {
	Code        string  `json:"code"`
	IsLab       bool    `json:"is_lab"`
	TimesNeeded int     `json:"times_needed"`
	CreditHour  float64 `json:"credit_hour"`
}

// CohortTuple flattens one cohort placement for hashing.
type CohortTuple struct {
	Semester int    `json:"semester"`
	Code     string `json:"code"`
	Label    string `json:"label"`
	Capacity int    `json:"capacity"`
	Day      string `json:"day"`
	Slot     int    `json:"slot"`
	IsLab    bool   `json:"is_lab"`
}

// Fingerprint canonicalizes a payload with sorted map keys and hashes it
// with SHA-256, matching the historical run short-circuit: an unchanged
// fingerprint against the last recorded run means "no-change", not a
// re-solve.
func Fingerprint(p FingerprintPayload) string {
	sort.Ints(p.SelectedSemesters)
	sort.Strings(p.TheoryRooms)
	sort.Strings(p.LabRooms)
	sort.Strings(p.TheoryWindows)
	sort.Strings(p.LabWindows)
	for _, courses := range p.SemesterCourses {
		sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	}
	for _, rooms := range p.SpecialLabRooms {
		sort.Strings(rooms)
	}
	sort.Slice(p.Cohort, func(i, j int) bool {
		a, b := p.Cohort[i], p.Cohort[j]
		if a.Semester != b.Semester {
			return a.Semester < b.Semester
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Label < b.Label
	})

	// json.Marshal emits map keys in sorted order and struct fields in
	// their fixed declaration order; combined with the slice sorts above
	// this gives a canonical encoding independent of input ordering.
	encoded, err := json.Marshal(p)
	if err != nil {
		// Payload is always a plain value type; Marshal cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// CanonicalTimeWindows returns the sorted, deduplicated set of "HH:MM-HH:MM"
// strings for a slot list, ignoring day — used to build the fingerprint's
// theory_windows/lab_windows fields.
func CanonicalTimeWindows(slots []TimeSlot) []string {
	seen := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		seen[formatWindow(s.StartMinute, s.EndMinute)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func formatWindow(startMinute, endMinute int) string {
	return formatHHMM(startMinute) + "-" + formatHHMM(endMinute)
}

func formatHHMM(minute int) string {
	h := minute / 60
	m := minute % 60
	digits := func(n int) string {
		if n < 10 {
			return "0" + itoa(n)
		}
		return itoa(n)
	}
	return digits(h) + ":" + digits(m)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
