package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// fakeTimetableRunStore is a hand-rolled in-memory timetableRunStore for
// the timetable service tests, following the mockAnalyticsRepo pattern.
type fakeTimetableRunStore struct {
	runs           map[string]*models.TimetableRun
	latest         map[models.TimetableRunType]*models.TimetableRun
	mainSlots      []models.TimetableSlotRow
	electiveSlots  []models.TimetableElectiveSlotRow
	createErr      error
	findErr        error
	latestErr      error
	listMainErr    error
	listElectErr   error
	updateSlotsErr error
	nextID         int
}

func newFakeTimetableRunStore() *fakeTimetableRunStore {
	return &fakeTimetableRunStore{runs: map[string]*models.TimetableRun{}, latest: map[models.TimetableRunType]*models.TimetableRun{}}
}

func (f *fakeTimetableRunStore) Create(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	if run.ID == "" {
		run.ID = "run-" + strconv.Itoa(f.nextID)
	}
	run.CreatedAt = time.Unix(0, 0)
	f.runs[run.ID] = run
	return nil
}

func (f *fakeTimetableRunStore) UpdateOutcome(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableRunStatus, createdCount int, errMsg *string) error {
	run, ok := f.runs[id]
	if !ok {
		return sql.ErrNoRows
	}
	run.Status = status
	run.CreatedCount = createdCount
	run.ErrorMessage = errMsg
	if status == models.TimetableRunStatusOK {
		f.latest[run.RunType] = run
	}
	return nil
}

func (f *fakeTimetableRunStore) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	run, ok := f.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return run, nil
}

func (f *fakeTimetableRunStore) LatestSuccessful(ctx context.Context, runType models.TimetableRunType) (*models.TimetableRun, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	run, ok := f.latest[runType]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return run, nil
}

func (f *fakeTimetableRunStore) ReplaceMainSlots(ctx context.Context, exec sqlx.ExtContext, rows []models.TimetableSlotRow) error {
	f.mainSlots = rows
	return nil
}

func (f *fakeTimetableRunStore) ReplaceElectiveSlots(ctx context.Context, exec sqlx.ExtContext, rows []models.TimetableElectiveSlotRow) error {
	f.electiveSlots = rows
	return nil
}

func (f *fakeTimetableRunStore) ListMainSlots(ctx context.Context) ([]models.TimetableSlotRow, error) {
	if f.listMainErr != nil {
		return nil, f.listMainErr
	}
	return f.mainSlots, nil
}

func (f *fakeTimetableRunStore) ListElectiveSlots(ctx context.Context) ([]models.TimetableElectiveSlotRow, error) {
	if f.listElectErr != nil {
		return nil, f.listElectErr
	}
	return f.electiveSlots, nil
}

func (f *fakeTimetableRunStore) UpdateSlotTeachers(ctx context.Context, exec sqlx.ExtContext, rows []models.TimetableSlotRow) error {
	if f.updateSlotsErr != nil {
		return f.updateSlotsErr
	}
	byKey := make(map[string]models.TimetableSlotRow, len(rows))
	for _, r := range rows {
		byKey[r.Section+"|"+r.SubjectCode+"|"+r.Kind] = r
	}
	for i, existing := range f.mainSlots {
		key := existing.Section + "|" + existing.SubjectCode + "|" + existing.Kind
		if updated, ok := byKey[key]; ok {
			f.mainSlots[i].TeacherID = updated.TeacherID
		}
	}
	return nil
}

// fakeTimetableCatalogStore is a hand-rolled in-memory timetableCatalogStore.
type fakeTimetableCatalogStore struct {
	data      types.JSONText
	hasData   bool
	getErr    error
	upsertErr error
}

func (f *fakeTimetableCatalogStore) Get(ctx context.Context) (*models.TimetableCatalog, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if !f.hasData {
		return nil, sql.ErrNoRows
	}
	return &models.TimetableCatalog{ID: models.TimetableCatalogID, Data: f.data}, nil
}

func (f *fakeTimetableCatalogStore) Upsert(ctx context.Context, data types.JSONText) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.data = data
	f.hasData = true
	return nil
}

func (f *fakeTimetableCatalogStore) IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// fakeTimetableFileStorage is a hand-rolled in-memory timetableFileStorage.
type fakeTimetableFileStorage struct {
	saved map[string][]byte
}

func newFakeTimetableFileStorage() *fakeTimetableFileStorage {
	return &fakeTimetableFileStorage{saved: map[string][]byte{}}
}

func (f *fakeTimetableFileStorage) Save(filename string, data []byte) (string, error) {
	f.saved[filename] = data
	return filename, nil
}

func (f *fakeTimetableFileStorage) Open(filename string) (*os.File, error) {
	if _, ok := f.saved[filename]; !ok {
		return nil, os.ErrNotExist
	}
	tmp, err := os.CreateTemp("", "timetable-export-*.xlsx")
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Write(f.saved[filename]); err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return nil, err
	}
	return tmp, nil
}

func (f *fakeTimetableFileStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}
