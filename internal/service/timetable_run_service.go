package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
	"github.com/noah-isme/sma-adp-api/pkg/jobs"
)

type timetableRunStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error
	UpdateOutcome(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableRunStatus, createdCount int, errMsg *string) error
	FindByID(ctx context.Context, id string) (*models.TimetableRun, error)
	LatestSuccessful(ctx context.Context, runType models.TimetableRunType) (*models.TimetableRun, error)
	ReplaceMainSlots(ctx context.Context, exec sqlx.ExtContext, rows []models.TimetableSlotRow) error
	ReplaceElectiveSlots(ctx context.Context, exec sqlx.ExtContext, rows []models.TimetableElectiveSlotRow) error
	ListMainSlots(ctx context.Context) ([]models.TimetableSlotRow, error)
	ListElectiveSlots(ctx context.Context) ([]models.TimetableElectiveSlotRow, error)
	UpdateSlotTeachers(ctx context.Context, exec sqlx.ExtContext, rows []models.TimetableSlotRow) error
}

type timetableCatalogStore interface {
	Get(ctx context.Context) (*models.TimetableCatalog, error)
	Upsert(ctx context.Context, data types.JSONText) error
	IsNotFound(err error) bool
}

// TimetableRunConfig governs solver defaults and the hierarchical dispatch
// threshold, loaded from config.TimetableConfig.
type TimetableRunConfig struct {
	DefaultSectionSize    int
	DefaultProgramCode    string
	HierarchicalThreshold int
	SolverTimeout         time.Duration
	SolverWorkers         int
	Constraints           timetable.Constraints
	AsyncJobThreshold     int // total course count above which a main run is dispatched to the queue
}

// TimetableRunService orchestrates the main/hierarchical/elective CP solves
// and the teacher-assignment pass, persisting outcomes transactionally and
// short-circuiting re-runs whose input fingerprint is unchanged.
type TimetableRunService struct {
	runs     timetableRunStore
	catalogs timetableCatalogStore
	tx       txProvider
	queue    jobDispatcher
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
	cfg      TimetableRunConfig
}

// NewTimetableRunService wires the run orchestrator.
func NewTimetableRunService(runs timetableRunStore, catalogs timetableCatalogStore, tx txProvider, queue jobDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg TimetableRunConfig) *TimetableRunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultSectionSize <= 0 {
		cfg.DefaultSectionSize = 50
	}
	if cfg.HierarchicalThreshold <= 0 {
		cfg.HierarchicalThreshold = timetable.HierarchicalThreshold
	}
	if cfg.AsyncJobThreshold <= 0 {
		cfg.AsyncJobThreshold = cfg.HierarchicalThreshold
	}
	if cfg.Constraints == (timetable.Constraints{}) {
		cfg.Constraints = timetable.DefaultConstraints()
	}
	return &TimetableRunService{runs: runs, catalogs: catalogs, tx: tx, queue: queue, metrics: metrics, validate: validate, logger: logger, cfg: cfg}
}

func (s *TimetableRunService) loadSnapshot(ctx context.Context) (catalogSnapshot, error) {
	catalog, err := s.catalogs.Get(ctx)
	if err != nil {
		if s.catalogs.IsNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return catalogSnapshot{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "no timetable catalog has been imported yet")
		}
		return catalogSnapshot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable catalog")
	}
	snap, err := decodeCatalogSnapshot(catalog.Data)
	if err != nil {
		return catalogSnapshot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode timetable catalog")
	}
	return snap, nil
}

func constraintsFromInput(in *dto.ConstraintsInput, defaults timetable.Constraints) timetable.Constraints {
	if in == nil {
		return defaults
	}
	out := defaults
	if in.MaxHoursPerDay > 0 {
		out.MaxHoursPerDay = in.MaxHoursPerDay
	}
	if in.WorkingDaysPerWeek > 0 {
		out.WorkingDaysPerWeek = in.WorkingDaysPerWeek
	}
	if in.MinGapMinutes > 0 {
		out.MinGapMinutes = in.MinGapMinutes
	}
	if in.NoClassesAfterHour != nil {
		out.NoClassesAfterHour = in.NoClassesAfterHour
	}
	return out
}

// RunMain runs (or dispatches) the main CP model / hierarchical driver over
// the currently imported catalog for req.SelectedSemesters.
func (s *TimetableRunService) RunMain(ctx context.Context, req dto.RunMainRequest) (*dto.RunResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run-main payload")
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	sectionSize := req.SectionSize
	if sectionSize <= 0 {
		sectionSize = s.cfg.DefaultSectionSize
	}
	programCode := req.ProgramCode
	if programCode == "" {
		programCode = s.cfg.DefaultProgramCode
	}
	constraints := constraintsFromInput(req.Constraints, s.cfg.Constraints)

	hash := s.mainFingerprint(snap, req, sectionSize, programCode, constraints)

	if latest, err := s.runs.LatestSuccessful(ctx, models.TimetableRunMain); err == nil && latest.InputHash == hash {
		return &dto.RunResult{RunID: latest.ID, Status: string(models.TimetableRunStatusNoChange), CreatedCount: latest.CreatedCount, InputHash: hash}, nil
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous timetable run")
	}

	paramsJSON, _ := json.Marshal(req)
	run := &models.TimetableRun{
		RunType:   models.TimetableRunMain,
		InputHash: hash,
		Status:    models.TimetableRunStatusQueued,
		Params:    paramsJSON,
	}
	if err := s.runs.Create(ctx, nil, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable run")
	}

	totalCourses := 0
	for _, sem := range req.SelectedSemesters {
		totalCourses += len(snap.SemesterCourses[sem])
	}

	if s.queue != nil && totalCourses > s.cfg.AsyncJobThreshold {
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: string(models.TimetableRunMain)}); err != nil {
			msg := err.Error()
			_ = s.runs.UpdateOutcome(ctx, nil, run.ID, models.TimetableRunStatusFailed, 0, &msg)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue timetable run")
		}
		return &dto.RunResult{RunID: run.ID, Status: string(models.TimetableRunStatusQueued), InputHash: hash}, nil
	}

	status, created, runErr := s.executeMain(ctx, run.ID, snap, req, sectionSize, programCode, constraints)
	if runErr != nil {
		return nil, runErr
	}
	return &dto.RunResult{RunID: run.ID, Status: string(status), CreatedCount: created, InputHash: hash}, nil
}

// HandleMainJob is the pkg/jobs.Handler entrypoint for async main-model runs.
func (s *TimetableRunService) HandleMainJob(ctx context.Context, job jobs.Job) error {
	run, err := s.runs.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}
	var req dto.RunMainRequest
	if err := json.Unmarshal(run.Params, &req); err != nil {
		msg := err.Error()
		_ = s.runs.UpdateOutcome(ctx, nil, run.ID, models.TimetableRunStatusFailed, 0, &msg)
		return err
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		msg := err.Error()
		_ = s.runs.UpdateOutcome(ctx, nil, run.ID, models.TimetableRunStatusFailed, 0, &msg)
		return err
	}
	sectionSize := req.SectionSize
	if sectionSize <= 0 {
		sectionSize = s.cfg.DefaultSectionSize
	}
	programCode := req.ProgramCode
	if programCode == "" {
		programCode = s.cfg.DefaultProgramCode
	}
	constraints := constraintsFromInput(req.Constraints, s.cfg.Constraints)

	_, _, err = s.executeMain(ctx, run.ID, snap, req, sectionSize, programCode, constraints)
	return err
}

func (s *TimetableRunService) executeMain(ctx context.Context, runID string, snap catalogSnapshot, req dto.RunMainRequest, sectionSize int, programCode string, constraints timetable.Constraints) (models.TimetableRunStatus, int, error) {
	start := time.Now()
	catalog := snap.slotCatalog()

	hreq := timetable.HierarchicalRequest{
		MainModelRequest: timetable.MainModelRequest{
			SelectedSemesters: req.SelectedSemesters,
			SemesterCourses:   snap.coursesForSemesters(req.SelectedSemesters),
			SectionSizes:      snap.StudentCounts,
			Catalog:           catalog,
			TheoryRooms:       snap.TheoryRooms,
			LabRooms:          snap.LabRooms,
			SpecialLabRooms:   snap.SpecialLabRooms,
			SectionSize:       sectionSize,
			ProgramCode:       programCode,
			CohortCourses:     snap.CohortCourses,
			EnableCohort:      req.EnableCohort,
			Constraints:       constraints,
			MaxSolveSeconds:   solveSeconds(req.MaxSolveSeconds, s.cfg.SolverTimeout),
			Workers:           solveWorkers(req.Workers, s.cfg.SolverWorkers),
		},
	}

	totalCourses := 0
	for _, sem := range req.SelectedSemesters {
		totalCourses += len(hreq.SemesterCourses[sem])
	}
	mode := "single-shot"
	if req.ForceHierarchical || timetable.ShouldUseHierarchical(totalCourses, len(req.SelectedSemesters)) {
		mode = "hierarchical"
	}

	result, err := timetable.SolveAuto(hreq, req.ForceHierarchical)
	duration := time.Since(start)
	s.metrics.ObserveTimetableSolve(string(models.TimetableRunMain), mode, duration)
	if err != nil {
		return s.failMain(ctx, runID, models.TimetableRunMain, err, duration)
	}

	rows := make([]models.TimetableSlotRow, 0, len(result.Slots))
	for _, slot := range result.Slots {
		row := models.TimetableSlotRow{RunID: runID, Section: slot.Section, SubjectCode: slot.SubjectCode, Room: slot.Room, DayOfWeek: int(slot.Day), SlotIndex: slot.Slot, Kind: string(slot.Kind)}
		if slot.CohortLabel != "" {
			label := slot.CohortLabel
			row.CohortLabel = &label
		}
		rows = append(rows, row)
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.runs.ReplaceMainSlots(ctx, tx, rows); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable slots")
		return "", 0, err
	}
	if err = s.runs.UpdateOutcome(ctx, tx, runID, models.TimetableRunStatusOK, len(rows), nil); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable run outcome")
		return "", 0, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable run")
		return "", 0, err
	}

	s.logger.Sugar().Infow("timetable main run completed", "run_id", runID, "status", "ok", "slots", len(rows), "duration_ms", duration.Milliseconds())
	return models.TimetableRunStatusOK, len(rows), nil
}

func (s *TimetableRunService) failMain(ctx context.Context, runID string, runType models.TimetableRunType, err error, duration time.Duration) (models.TimetableRunStatus, int, error) {
	mapped := mapRunError(err)
	msg := mapped.Message
	status := models.TimetableRunStatusFailed
	if mapped.Code == appErrors.ErrInfeasible.Code {
		status = models.TimetableRunStatusInfeasible
		s.metrics.RecordTimetableInfeasible(string(runType))
	}
	if updateErr := s.runs.UpdateOutcome(ctx, nil, runID, status, 0, &msg); updateErr != nil {
		s.logger.Sugar().Warnw("failed to record timetable run failure", "run_id", runID, "error", updateErr)
	}
	s.logger.Sugar().Warnw("timetable main run failed", "run_id", runID, "status", status, "duration_ms", duration.Milliseconds(), "error", err)
	return status, 0, mapped
}

// RunElectives solves the elective model over the imported catalog.
func (s *TimetableRunService) RunElectives(ctx context.Context, req dto.RunElectivesRequest) (*dto.RunResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run-electives payload")
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(snap.Electives) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no electives defined in the imported catalog")
	}

	hash := s.electiveFingerprint(snap, req)
	if latest, err := s.runs.LatestSuccessful(ctx, models.TimetableRunElectives); err == nil && latest.InputHash == hash {
		return &dto.RunResult{RunID: latest.ID, Status: string(models.TimetableRunStatusNoChange), CreatedCount: latest.CreatedCount, InputHash: hash}, nil
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous elective run")
	}

	paramsJSON, _ := json.Marshal(req)
	run := &models.TimetableRun{RunType: models.TimetableRunElectives, InputHash: hash, Status: models.TimetableRunStatusQueued, Params: paramsJSON}
	if err := s.runs.Create(ctx, nil, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create elective run")
	}

	start := time.Now()
	result, err := timetable.SolveElectives(timetable.ElectiveModelRequest{
		Electives:       snap.Electives,
		Catalog:         snap.slotCatalog(),
		TheoryRooms:     snap.TheoryRooms,
		LabRooms:        snap.LabRooms,
		TheoryNeeded:    req.TheoryNeeded,
		LabNeeded:       req.LabNeeded,
		MaxSolveSeconds: solveSeconds(req.MaxSolveSeconds, s.cfg.SolverTimeout),
		Workers:         solveWorkers(req.Workers, s.cfg.SolverWorkers),
	})
	duration := time.Since(start)
	s.metrics.ObserveTimetableSolve(string(models.TimetableRunElectives), "single-shot", duration)
	if err != nil {
		_, _, mapped := s.failMain(ctx, run.ID, models.TimetableRunElectives, err, duration)
		return nil, mapped
	}

	rows := make([]models.TimetableElectiveSlotRow, 0, len(result.Slots))
	for _, slot := range result.Slots {
		rows = append(rows, models.TimetableElectiveSlotRow{RunID: run.ID, ElectiveCode: slot.ElectiveCode, SectionIndex: slot.SectionIndex, Room: slot.Room, DayOfWeek: int(slot.Day), SlotIndex: slot.Slot, Kind: string(slot.Kind)})
	}

	tx, txErr := s.beginTx(ctx)
	if txErr != nil {
		return nil, txErr
	}
	var opErr error
	defer func() {
		if opErr != nil {
			_ = tx.Rollback()
		}
	}()
	if opErr = s.runs.ReplaceElectiveSlots(ctx, tx, rows); opErr != nil {
		opErr = appErrors.Wrap(opErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist elective slots")
		return nil, opErr
	}
	if opErr = s.runs.UpdateOutcome(ctx, tx, run.ID, models.TimetableRunStatusOK, len(rows), nil); opErr != nil {
		opErr = appErrors.Wrap(opErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update elective run outcome")
		return nil, opErr
	}
	if opErr = tx.Commit(); opErr != nil {
		opErr = appErrors.Wrap(opErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit elective run")
		return nil, opErr
	}

	s.logger.Sugar().Infow("timetable elective run completed", "run_id", run.ID, "slots", len(rows), "duration_ms", duration.Milliseconds())
	return &dto.RunResult{RunID: run.ID, Status: string(models.TimetableRunStatusOK), CreatedCount: len(rows), InputHash: hash}, nil
}

// AssignTeachers runs the greedy teacher assigner over the current main
// timetable and the catalog's imported teacher preferences.
func (s *TimetableRunService) AssignTeachers(ctx context.Context, req dto.AssignTeachersRequest) (*dto.AssignTeachersResult, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(snap.TeacherPreferences) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no teacher preferences have been imported yet")
	}

	existing, err := s.runs.ListMainSlots(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current timetable")
	}
	if len(existing) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no timetable has been generated yet")
	}

	slots := make([]timetable.TimetableSlot, 0, len(existing))
	for _, row := range existing {
		slot := timetable.TimetableSlot{Section: row.Section, SubjectCode: row.SubjectCode, Room: row.Room, Day: timetable.Day(row.DayOfWeek), Slot: row.SlotIndex, Kind: timetable.SlotKind(row.Kind)}
		if !req.ClearExisting && row.TeacherID != nil {
			slot.TeacherID = *row.TeacherID
		}
		slots = append(slots, slot)
	}

	result, assigned := timetable.AssignTeachers(slots, snap.TeacherPreferences, snap.catalogMap())

	rows := make([]models.TimetableSlotRow, 0, len(assigned))
	for _, slot := range assigned {
		row := models.TimetableSlotRow{Section: slot.Section, SubjectCode: slot.SubjectCode, DayOfWeek: int(slot.Day), SlotIndex: slot.Slot, Kind: string(slot.Kind)}
		if slot.TeacherID != "" {
			id := slot.TeacherID
			row.TeacherID = &id
		}
		rows = append(rows, row)
	}
	tx, txErr := s.beginTx(ctx)
	if txErr != nil {
		return nil, txErr
	}
	var opErr error
	defer func() {
		if opErr != nil {
			_ = tx.Rollback()
		}
	}()
	if opErr = s.runs.UpdateSlotTeachers(ctx, tx, rows); opErr != nil {
		opErr = appErrors.Wrap(opErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist teacher assignments")
		return nil, opErr
	}
	if opErr = tx.Commit(); opErr != nil {
		opErr = appErrors.Wrap(opErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit teacher assignments")
		return nil, opErr
	}

	workloads := make([]dto.TeacherWorkloadEntry, 0, len(result.TeacherWorkloads))
	for id, count := range result.TeacherWorkloads {
		workloads = append(workloads, dto.TeacherWorkloadEntry{TeacherID: id, Count: count})
	}

	s.logger.Sugar().Infow("teacher assignment completed", "status", result.Status, "assigned", result.Assigned, "unassigned", result.Unassigned)

	return &dto.AssignTeachersResult{
		Status:     result.Status,
		Assigned:   result.Assigned,
		Unassigned: result.Unassigned,
		TotalSlots: result.TotalSlots,
		Workloads:  workloads,
		Warnings:   result.Warnings,
	}, nil
}

// GetRun exposes run metadata for polling.
func (s *TimetableRunService) GetRun(ctx context.Context, id string) (*dto.RunStatusResponse, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
	}
	resp := &dto.RunStatusResponse{
		ID:           run.ID,
		RunType:      string(run.RunType),
		Status:       string(run.Status),
		CreatedCount: run.CreatedCount,
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
	}
	if run.ErrorMessage != nil {
		resp.Error = *run.ErrorMessage
	}
	return resp, nil
}

func (s *TimetableRunService) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	return tx, nil
}

func (s *TimetableRunService) mainFingerprint(snap catalogSnapshot, req dto.RunMainRequest, sectionSize int, programCode string, constraints timetable.Constraints) string {
	catalog := snap.slotCatalog()
	semesterCourses := make(map[string][]timetable.CourseTuple, len(req.SelectedSemesters))
	for _, sem := range req.SelectedSemesters {
		var tuples []timetable.CourseTuple
		for _, c := range snap.SemesterCourses[sem] {
			tuples = append(tuples, timetable.CourseTuple{Code: c.Code, IsLab: c.IsLab, TimesNeeded: c.TimesNeeded, CreditHour: c.CreditHour})
		}
		semesterCourses[fmt.Sprintf("%d", sem)] = tuples
	}
	sectionSizes := make(map[string]int, len(snap.StudentCounts))
	for sem, count := range snap.StudentCounts {
		sectionSizes[fmt.Sprintf("%d", sem)] = count
	}
	var cohort []timetable.CohortTuple
	for _, c := range snap.CohortCourses {
		for _, p := range c.Placements {
			cohort = append(cohort, timetable.CohortTuple{Semester: c.Semester, Code: c.SubjectCode, Label: c.Label, Capacity: c.Capacity, Day: p.Day.String(), Slot: p.Slot, IsLab: p.Kind == timetable.KindLab})
		}
	}
	payload := timetable.FingerprintPayload{
		SelectedSemesters: req.SelectedSemesters,
		SectionSizes:      sectionSizes,
		SemesterCourses:   semesterCourses,
		TheoryRooms:       snap.TheoryRooms,
		LabRooms:          snap.LabRooms,
		TheoryWindows:     timetable.CanonicalTimeWindows(catalog.Theory),
		LabWindows:        timetable.CanonicalTimeWindows(catalog.Lab),
		SpecialLabRooms:   snap.SpecialLabRooms,
		Cohort:            cohort,
		ProgramCode:       programCode,
		SectionSize:       sectionSize,
		EnableCohort:      req.EnableCohort,
		Constraints:       constraints,
	}
	return timetable.Fingerprint(payload)
}

func (s *TimetableRunService) electiveFingerprint(snap catalogSnapshot, req dto.RunElectivesRequest) string {
	electives := append([]timetable.Elective(nil), snap.Electives...)
	sort.Slice(electives, func(i, j int) bool { return electives[i].Code < electives[j].Code })
	theoryRooms := append([]string(nil), snap.TheoryRooms...)
	labRooms := append([]string(nil), snap.LabRooms...)
	sort.Strings(theoryRooms)
	sort.Strings(labRooms)

	data, _ := json.Marshal(struct {
		Electives    []timetable.Elective `json:"electives"`
		TheoryRooms  []string             `json:"theory_rooms"`
		LabRooms     []string             `json:"lab_rooms"`
		TheoryNeeded int                  `json:"theory_needed"`
		LabNeeded    int                  `json:"lab_needed"`
	}{electives, theoryRooms, labRooms, req.TheoryNeeded, req.LabNeeded})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func mapRunError(err error) *appErrors.Error {
	var runErr *timetable.RunError
	if errors.As(err, &runErr) {
		switch runErr.Kind {
		case timetable.KindCapacity:
			return appErrors.Wrap(runErr, appErrors.ErrCapacityShortfall.Code, appErrors.ErrCapacityShortfall.Status, runErr.Message)
		case timetable.KindInfeasible:
			return appErrors.Wrap(runErr, appErrors.ErrInfeasible.Code, appErrors.ErrInfeasible.Status, runErr.Message)
		case timetable.KindInput:
			return appErrors.Wrap(runErr, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, runErr.Message)
		case timetable.KindIntegrity:
			return appErrors.Wrap(runErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, runErr.Message)
		}
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable solve failed")
}

func solveSeconds(requested int, fallback time.Duration) float64 {
	if requested > 0 {
		return float64(requested)
	}
	if fallback > 0 {
		return fallback.Seconds()
	}
	return 30
}

func solveWorkers(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	if fallback > 0 {
		return fallback
	}
	return 4
}
