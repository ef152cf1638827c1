package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// TimetableRunRepository persists solver invocations and the slot rows each
// successful run produces.
type TimetableRunRepository struct {
	db *sqlx.DB
}

// NewTimetableRunRepository constructs the repository.
func NewTimetableRunRepository(db *sqlx.DB) *TimetableRunRepository {
	return &TimetableRunRepository{db: db}
}

func (r *TimetableRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new run row, defaulting ID and timestamps.
func (r *TimetableRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if run == nil {
		return fmt.Errorf("run payload is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	const query = `
INSERT INTO timetable_runs (id, run_type, input_hash, status, params, created_count, error_message, created_at, updated_at)
VALUES (:id, :run_type, :input_hash, :status, :params, :created_count, :error_message, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, run); err != nil {
		return fmt.Errorf("insert timetable run: %w", err)
	}
	return nil
}

// UpdateOutcome records the terminal state of a run (status, created slot
// count, and error message when the solve failed or was infeasible).
func (r *TimetableRunRepository) UpdateOutcome(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableRunStatus, createdCount int, errMsg *string) error {
	const query = `UPDATE timetable_runs SET status = $1, created_count = $2, error_message = $3, updated_at = $4 WHERE id = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, status, createdCount, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable run outcome: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run outcome rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID loads a run by identifier, for status polling.
func (r *TimetableRunRepository) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	const query = `SELECT id, run_type, input_hash, status, params, created_count, error_message, created_at, updated_at
FROM timetable_runs WHERE id = $1`
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// LatestSuccessful returns the most recent ok/no-change run of the given
// type, used to short-circuit a solve when the input fingerprint is
// unchanged.
func (r *TimetableRunRepository) LatestSuccessful(ctx context.Context, runType models.TimetableRunType) (*models.TimetableRun, error) {
	const query = `SELECT id, run_type, input_hash, status, params, created_count, error_message, created_at, updated_at
FROM timetable_runs WHERE run_type = $1 AND status IN ('ok', 'no-change') ORDER BY created_at DESC LIMIT 1`
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, runType); err != nil {
		return nil, err
	}
	return &run, nil
}

// ReplaceMainSlots atomically swaps the current main timetable for the
// given rows (all produced by one run): the solver is all-or-nothing per invocation, so
// there is never a partial previous set to preserve.
func (r *TimetableRunRepository) ReplaceMainSlots(ctx context.Context, exec sqlx.ExtContext, rows []models.TimetableSlotRow) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_slots`); err != nil {
		return fmt.Errorf("clear timetable slots: %w", err)
	}
	const insertQuery = `
INSERT INTO timetable_slots (id, run_id, section, subject_code, room, day_of_week, slot_index, kind, cohort_label, teacher_id, created_at)
VALUES (:id, :run_id, :section, :subject_code, :room, :day_of_week, :slot_index, :kind, :cohort_label, :teacher_id, :created_at)`
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		rows[i].CreatedAt = now
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, rows); err != nil {
		return fmt.Errorf("insert timetable slots: %w", err)
	}
	return nil
}

// ReplaceElectiveSlots swaps the current elective placement set.
func (r *TimetableRunRepository) ReplaceElectiveSlots(ctx context.Context, exec sqlx.ExtContext, rows []models.TimetableElectiveSlotRow) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_elective_slots`); err != nil {
		return fmt.Errorf("clear timetable elective slots: %w", err)
	}
	const insertQuery = `
INSERT INTO timetable_elective_slots (id, run_id, elective_code, section_index, room, day_of_week, slot_index, kind, created_at)
VALUES (:id, :run_id, :elective_code, :section_index, :room, :day_of_week, :slot_index, :kind, :created_at)`
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		rows[i].CreatedAt = now
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, rows); err != nil {
		return fmt.Errorf("insert timetable elective slots: %w", err)
	}
	return nil
}

// ListMainSlots returns the current main timetable.
func (r *TimetableRunRepository) ListMainSlots(ctx context.Context) ([]models.TimetableSlotRow, error) {
	const query = `SELECT id, run_id, section, subject_code, room, day_of_week, slot_index, kind, cohort_label, teacher_id, created_at
FROM timetable_slots ORDER BY day_of_week, slot_index, section`
	var rows []models.TimetableSlotRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return rows, nil
}

// ListElectiveSlots returns the current elective placement set.
func (r *TimetableRunRepository) ListElectiveSlots(ctx context.Context) ([]models.TimetableElectiveSlotRow, error) {
	const query = `SELECT id, run_id, elective_code, section_index, room, day_of_week, slot_index, kind, created_at
FROM timetable_elective_slots ORDER BY day_of_week, slot_index, elective_code`
	var rows []models.TimetableElectiveSlotRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list timetable elective slots: %w", err)
	}
	return rows, nil
}

// UpdateSlotTeachers writes back the teacher_id assigned to each main slot
// after a teacher-assignment run, matched by (section, subject_code, day_of_week, slot_index, kind).
func (r *TimetableRunRepository) UpdateSlotTeachers(ctx context.Context, exec sqlx.ExtContext, rows []models.TimetableSlotRow) error {
	target := r.exec(exec)
	const query = `UPDATE timetable_slots SET teacher_id = $1
WHERE section = $2 AND subject_code = $3 AND day_of_week = $4 AND slot_index = $5 AND kind = $6`
	for _, row := range rows {
		if _, err := target.ExecContext(ctx, query, row.TeacherID, row.Section, row.SubjectCode, row.DayOfWeek, row.SlotIndex, row.Kind); err != nil {
			return fmt.Errorf("update timetable slot teacher: %w", err)
		}
	}
	return nil
}
