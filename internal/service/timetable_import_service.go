package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/importer"
	"github.com/noah-isme/sma-adp-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

// TimetableImportService wraps the spreadsheet ingestion helpers and
// persists their output as the single latest-wins catalog snapshot every
// solve reads from.
type TimetableImportService struct {
	catalogs timetableCatalogStore
}

// NewTimetableImportService wires the import service.
func NewTimetableImportService(catalogs timetableCatalogStore) *TimetableImportService {
	return &TimetableImportService{catalogs: catalogs}
}

func (s *TimetableImportService) currentSnapshot(ctx context.Context) (catalogSnapshot, bool, error) {
	row, err := s.catalogs.Get(ctx)
	if err != nil {
		if s.catalogs.IsNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return catalogSnapshot{}, false, nil
		}
		return catalogSnapshot{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing timetable catalog")
	}
	snap, err := decodeCatalogSnapshot(row.Data)
	if err != nil {
		return catalogSnapshot{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode existing timetable catalog")
	}
	return snap, true, nil
}

// ImportMain parses the main roadmap/rooms/sections workbook and, when
// cohortData is non-nil, the companion cohort workbook, replacing every
// catalog field those imports cover while preserving any teacher
// preferences imported separately.
func (s *TimetableImportService) ImportMain(ctx context.Context, mainData []byte, cohortData []byte) (*dto.ImportResultResponse, error) {
	result, err := importer.ImportMain(mainData)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if len(cohortData) > 0 {
		cohorts, err := importer.ImportCohorts(cohortData, result)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		result.CohortCourses = cohorts
	}

	existing, hadExisting, err := s.currentSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	snap := newCatalogSnapshotFromImport(result)
	if hadExisting {
		snap.TeacherPreferences = existing.TeacherPreferences
	}

	encoded, err := snap.encode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable catalog")
	}
	if err := s.catalogs.Upsert(ctx, encoded); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable catalog")
	}

	return &dto.ImportResultResponse{
		Subjects:  len(result.Subjects),
		Rooms:     len(result.Rooms),
		Electives: len(result.Electives),
		Cohorts:   len(result.CohortCourses),
		Sections:  countSections(result.Sections),
	}, nil
}

// ImportTeachers parses a teacher-preference roster workbook, mints a
// stable UUID for every distinct teacher name, and merges the resulting
// preferences into the existing catalog snapshot.
func (s *TimetableImportService) ImportTeachers(ctx context.Context, data []byte) (*dto.TeacherImportResultResponse, error) {
	result, err := importer.ImportTeachers(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	existing, hadExisting, err := s.currentSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !hadExisting {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "import the main timetable catalog before importing teacher preferences")
	}

	ids := make(map[string]string, len(result.TeacherNames))
	for _, name := range result.TeacherNames {
		ids[name] = uuid.NewString()
	}
	for i := range result.Preferences {
		result.Preferences[i].TeacherID = ids[result.Preferences[i].TeacherName]
	}

	existing.TeacherPreferences = result.Preferences
	encoded, err := existing.encode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable catalog")
	}
	if err := s.catalogs.Upsert(ctx, encoded); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable catalog")
	}

	return &dto.TeacherImportResultResponse{
		Teachers:    len(result.TeacherNames),
		Preferences: len(result.Preferences),
	}, nil
}

func countSections(sections map[int][]timetable.Section) int {
	total := 0
	for _, secs := range sections {
		total += len(secs)
	}
	return total
}
