package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/internal/timetable"
	"github.com/noah-isme/sma-adp-api/pkg/storage"
)

func newTimetableExportService(t *testing.T, catalogs *fakeTimetableCatalogStore, runs *fakeTimetableRunStore, store *fakeTimetableFileStorage) *TimetableExportService {
	t.Helper()
	signer := storage.NewSignedURLSigner("test-secret", 0)
	return NewTimetableExportService(catalogs, runs, store, signer, TimetableExportConfig{APIPrefix: "/api/v1"})
}

func TestTimetableExportServiceRejectsEmptyTimetable(t *testing.T) {
	catalogs := &fakeTimetableCatalogStore{}
	seedCatalog(t, catalogs, catalogSnapshot{TheoryRooms: []string{"R101"}})
	runs := newFakeTimetableRunStore()
	svc := newTimetableExportService(t, catalogs, runs, newFakeTimetableFileStorage())

	_, err := svc.Export(context.Background())
	require.Error(t, err)
}

func TestTimetableExportServiceRendersAndDownloads(t *testing.T) {
	catalogs := &fakeTimetableCatalogStore{}
	seedCatalog(t, catalogs, catalogSnapshot{
		TheoryRooms: []string{"R101"},
		Sections:    map[int][]timetable.Section{1: {{Semester: 1, Code: "S1A1"}}},
	})
	runs := newFakeTimetableRunStore()
	runs.mainSlots = []models.TimetableSlotRow{
		{Section: "S1A1", SubjectCode: "CS101", Room: "R101", DayOfWeek: int(timetable.Monday), SlotIndex: 0, Kind: string(timetable.KindTheory)},
	}
	store := newFakeTimetableFileStorage()
	svc := newTimetableExportService(t, catalogs, runs, store)

	result, err := svc.Export(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, result.URL, "/timetable/export/")
	assert.Len(t, store.saved, 1)

	f, relPath, err := svc.ResolveDownload(result.Token)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, result.RelativePath, relPath)
}

func TestTimetableExportServiceResolveDownloadRejectsBadToken(t *testing.T) {
	catalogs := &fakeTimetableCatalogStore{}
	runs := newFakeTimetableRunStore()
	svc := newTimetableExportService(t, catalogs, runs, newFakeTimetableFileStorage())

	_, _, err := svc.ResolveDownload("not-a-real-token")
	require.Error(t, err)
}
