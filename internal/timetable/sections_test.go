package timetable

import "testing"

func TestBuildSectionsCeilsToSectionSize(t *testing.T) {
	cases := []struct {
		name         string
		studentCount int
		sectionSize  int
		wantCount    int
	}{
		{"exact multiple", 100, 50, 2},
		{"remainder rounds up", 101, 50, 3},
		{"smaller than one section", 10, 50, 1},
		{"zero students still yields one section", 0, 50, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sections := BuildSections(3, tc.studentCount, tc.sectionSize, "REG")
			if len(sections) != tc.wantCount {
				t.Fatalf("got %d sections, want %d", len(sections), tc.wantCount)
			}
			for i, s := range sections {
				if s.Semester != 3 {
					t.Errorf("section %d has semester %d, want 3", i, s.Semester)
				}
			}
		})
	}
}

func TestBuildSectionsDefaultsSectionSize(t *testing.T) {
	sections := BuildSections(1, 120, 0, "REG")
	if len(sections) != 3 {
		t.Fatalf("got %d sections with default section size, want 3 (ceil(120/50))", len(sections))
	}
}

func TestBuildSectionsCodesAreStableAndDistinct(t *testing.T) {
	sections := BuildSections(2, 140, 50, "SCI")
	seen := make(map[string]bool)
	for _, s := range sections {
		if seen[s.Code] {
			t.Fatalf("duplicate section code %q", s.Code)
		}
		seen[s.Code] = true
	}
	if sections[0].Code != "S2SCI1" {
		t.Errorf("got first code %q, want S2SCI1", sections[0].Code)
	}
}
