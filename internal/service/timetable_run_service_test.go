package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/internal/timetable"
)

func newTimetableRunService(catalogs *fakeTimetableCatalogStore, runs *fakeTimetableRunStore) *TimetableRunService {
	return NewTimetableRunService(runs, catalogs, nil, nil, nil, nil, nil, TimetableRunConfig{})
}

func newTimetableRunServiceWithTx(t *testing.T, catalogs *fakeTimetableCatalogStore, runs *fakeTimetableRunStore) *TimetableRunService {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	return NewTimetableRunService(runs, catalogs, tx, nil, nil, nil, nil, TimetableRunConfig{})
}

func TestTimetableRunServiceRunMainRejectsInvalidRequest(t *testing.T) {
	svc := newTimetableRunService(&fakeTimetableCatalogStore{}, newFakeTimetableRunStore())

	_, err := svc.RunMain(context.Background(), dto.RunMainRequest{})
	require.Error(t, err, "SelectedSemesters is required")
}

func TestTimetableRunServiceRunMainFailsWithoutCatalog(t *testing.T) {
	svc := newTimetableRunService(&fakeTimetableCatalogStore{}, newFakeTimetableRunStore())

	_, err := svc.RunMain(context.Background(), dto.RunMainRequest{SelectedSemesters: []int{1}})
	require.Error(t, err)
}

func TestTimetableRunServiceRunMainShortCircuitsOnUnchangedFingerprint(t *testing.T) {
	catalogs := &fakeTimetableCatalogStore{}
	seedCatalog(t, catalogs, catalogSnapshot{
		SemesterCourses: map[int][]timetable.Subject{1: {{Code: "CS101", TimesNeeded: 1}}},
		StudentCounts:   map[int]int{1: 40},
		TheoryRooms:     []string{"R101"},
	})
	runs := newFakeTimetableRunStore()
	svc := newTimetableRunService(catalogs, runs)

	req := dto.RunMainRequest{SelectedSemesters: []int{1}}
	snap, err := svc.loadSnapshot(context.Background())
	require.NoError(t, err)
	hash := svc.mainFingerprint(snap, req, svc.cfg.DefaultSectionSize, svc.cfg.DefaultProgramCode, svc.cfg.Constraints)
	runs.latest[models.TimetableRunMain] = &models.TimetableRun{ID: "prev-run", InputHash: hash, CreatedCount: 7, Status: models.TimetableRunStatusOK}

	result, err := svc.RunMain(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, string(models.TimetableRunStatusNoChange), result.Status)
	assert.Equal(t, "prev-run", result.RunID)
	assert.Equal(t, 7, result.CreatedCount)
}

func TestTimetableRunServiceRunElectivesFailsWithoutElectives(t *testing.T) {
	catalogs := &fakeTimetableCatalogStore{}
	seedCatalog(t, catalogs, catalogSnapshot{TheoryRooms: []string{"R101"}})
	svc := newTimetableRunService(catalogs, newFakeTimetableRunStore())

	_, err := svc.RunElectives(context.Background(), dto.RunElectivesRequest{})
	require.Error(t, err)
}

func TestTimetableRunServiceAssignTeachersFailsWithoutPreferences(t *testing.T) {
	catalogs := &fakeTimetableCatalogStore{}
	seedCatalog(t, catalogs, catalogSnapshot{TheoryRooms: []string{"R101"}})
	svc := newTimetableRunService(catalogs, newFakeTimetableRunStore())

	_, err := svc.AssignTeachers(context.Background(), dto.AssignTeachersRequest{})
	require.Error(t, err)
}

func TestTimetableRunServiceAssignTeachersFailsWithoutExistingTimetable(t *testing.T) {
	catalogs := &fakeTimetableCatalogStore{}
	seedCatalog(t, catalogs, catalogSnapshot{
		TheoryRooms:        []string{"R101"},
		TeacherPreferences: []timetable.TeacherPreference{{TeacherID: "t1", SectionsCount: 1}},
	})
	svc := newTimetableRunService(catalogs, newFakeTimetableRunStore())

	_, err := svc.AssignTeachers(context.Background(), dto.AssignTeachersRequest{})
	require.Error(t, err)
}

func TestTimetableRunServiceAssignTeachersSucceeds(t *testing.T) {
	catalogs := &fakeTimetableCatalogStore{}
	seedCatalog(t, catalogs, catalogSnapshot{
		TheoryRooms: []string{"R101"},
		Subjects:    map[string]timetable.Subject{"CS101": {Code: "CS101", IsLab: false}},
		TeacherPreferences: []timetable.TeacherPreference{
			{TeacherID: "t1", TeacherName: "Jane", CourseCode: "CS101", SectionsCount: 1, CanTheory: true},
		},
	})
	runs := newFakeTimetableRunStore()
	runs.mainSlots = []models.TimetableSlotRow{
		{Section: "S1A1", SubjectCode: "CS101", Room: "R101", DayOfWeek: int(timetable.Monday), SlotIndex: 0, Kind: string(timetable.KindTheory)},
	}
	svc := newTimetableRunServiceWithTx(t, catalogs, runs)

	result, err := svc.AssignTeachers(context.Background(), dto.AssignTeachersRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Assigned)
	require.Len(t, runs.mainSlots, 1)
	require.NotNil(t, runs.mainSlots[0].TeacherID)
	assert.Equal(t, "t1", *runs.mainSlots[0].TeacherID)
}

func TestTimetableRunServiceGetRunReportsNotFound(t *testing.T) {
	svc := newTimetableRunService(&fakeTimetableCatalogStore{}, newFakeTimetableRunStore())

	_, err := svc.GetRun(context.Background(), "missing")
	require.Error(t, err)
}

func TestTimetableRunServiceGetRunReturnsStatus(t *testing.T) {
	runs := newFakeTimetableRunStore()
	run := &models.TimetableRun{ID: "run-1", RunType: models.TimetableRunMain, Status: models.TimetableRunStatusOK, CreatedCount: 3}
	require.NoError(t, runs.Create(context.Background(), nil, run))
	svc := newTimetableRunService(&fakeTimetableCatalogStore{}, runs)

	resp, err := svc.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", resp.ID)
	assert.Equal(t, string(models.TimetableRunStatusOK), resp.Status)
	assert.Equal(t, 3, resp.CreatedCount)
}
