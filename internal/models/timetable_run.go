package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableRunType distinguishes the three independent solver invocations
// the timetable endpoints expose.
type TimetableRunType string

const (
	TimetableRunMain      TimetableRunType = "main"
	TimetableRunElectives TimetableRunType = "electives"
	TimetableRunTeachers  TimetableRunType = "teachers"
)

// TimetableRunStatus mirrors the run_main/run_electives response contract:
// ok, no-change (fingerprint unchanged since the last successful run of the
// same type), or infeasible. Queued/failed are internal bookkeeping states
// for the async hierarchical path.
type TimetableRunStatus string

const (
	TimetableRunStatusQueued     TimetableRunStatus = "queued"
	TimetableRunStatusOK         TimetableRunStatus = "ok"
	TimetableRunStatusNoChange  TimetableRunStatus = "no-change"
	TimetableRunStatusInfeasible TimetableRunStatus = "infeasible"
	TimetableRunStatusFailed    TimetableRunStatus = "failed"
)

// TimetableRun is the persisted ScheduleRun record: one row per solver
// invocation, carrying the fingerprint used for the idempotence
// short-circuit and the outcome for GET /timetable/runs/:id polling.
type TimetableRun struct {
	ID           string             `db:"id" json:"id"`
	RunType      TimetableRunType   `db:"run_type" json:"run_type"`
	InputHash    string             `db:"input_hash" json:"input_hash"`
	Status       TimetableRunStatus `db:"status" json:"status"`
	Params       types.JSONText     `db:"params" json:"params"`
	CreatedCount int                `db:"created_count" json:"created_count"`
	ErrorMessage *string            `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// TimetableSlotRow is one persisted main-timetable placement, owned by the
// run that produced it.
type TimetableSlotRow struct {
	ID          string    `db:"id" json:"id"`
	RunID       string    `db:"run_id" json:"run_id"`
	Section     string    `db:"section" json:"section"`
	SubjectCode string    `db:"subject_code" json:"subject_code"`
	Room        string    `db:"room" json:"room"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	SlotIndex   int       `db:"slot_index" json:"slot_index"`
	Kind        string    `db:"kind" json:"kind"`
	CohortLabel *string   `db:"cohort_label" json:"cohort_label,omitempty"`
	TeacherID   *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TimetableElectiveSlotRow is one persisted elective placement.
type TimetableElectiveSlotRow struct {
	ID           string    `db:"id" json:"id"`
	RunID        string    `db:"run_id" json:"run_id"`
	ElectiveCode string    `db:"elective_code" json:"elective_code"`
	SectionIndex int       `db:"section_index" json:"section_index"`
	Room         string    `db:"room" json:"room"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	SlotIndex    int       `db:"slot_index" json:"slot_index"`
	Kind         string    `db:"kind" json:"kind"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TimetableCatalogID is the fixed single-row key the latest imported
// roadmap/rooms/electives/cohort/teacher-preference snapshot is stored
// under, the same latest-wins shape Configuration uses for its defaults.
const TimetableCatalogID = "active"

// TimetableCatalog holds the latest imported input snapshot as an opaque
// JSON document; internal/service decodes it into the internal/timetable
// request shapes it needs for a solve.
type TimetableCatalog struct {
	ID        string         `db:"id" json:"id"`
	Data      types.JSONText `db:"data" json:"data"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
