package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

// PlanSummaryConfig governs the default section size used when no catalog
// section size override is supplied and the response cache TTL.
type PlanSummaryConfig struct {
	DefaultSectionSize int
	DefaultProgramCode string
}

// PlanSummaryService answers capacity-planning questions ("is there enough
// room for these semesters before I commit to a full solve?") against the
// currently imported catalog and the timetable's current usage ledger,
// caching responses behind the shared Redis-backed CacheService the same
// way every other read-heavy summary endpoint does.
type PlanSummaryService struct {
	catalogs timetableCatalogStore
	runs     timetableRunStore
	cache    *CacheService
	cfg      PlanSummaryConfig
}

// NewPlanSummaryService wires the capacity-planning service.
func NewPlanSummaryService(catalogs timetableCatalogStore, runs timetableRunStore, cache *CacheService, cfg PlanSummaryConfig) *PlanSummaryService {
	if cfg.DefaultSectionSize <= 0 {
		cfg.DefaultSectionSize = 50
	}
	return &PlanSummaryService{catalogs: catalogs, runs: runs, cache: cache, cfg: cfg}
}

func planSummaryCacheKey(semesters []int) string {
	sorted := append([]int(nil), semesters...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, s := range sorted {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return "timetable:plan-summary:" + strings.Join(parts, ",")
}

// GetSummary computes theory/lab capacity vs demand for the requested
// semesters (all imported semesters when query.Semesters is empty).
func (s *PlanSummaryService) GetSummary(ctx context.Context, query dto.PlanSummaryQuery) (*dto.PlanSummaryResponse, error) {
	cacheKey := planSummaryCacheKey(query.Semesters)
	var cached dto.PlanSummaryResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	catalog, err := s.catalogs.Get(ctx)
	if err != nil {
		if s.catalogs.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no timetable catalog has been imported yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable catalog")
	}
	snap, err := decodeCatalogSnapshot(catalog.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode timetable catalog")
	}

	semesters := query.Semesters
	if len(semesters) == 0 {
		for sem := range snap.SemesterCourses {
			semesters = append(semesters, sem)
		}
		sort.Ints(semesters)
	}

	theoryNeeded, labNeeded := 0, 0
	for _, sem := range semesters {
		sections := timetable.BuildSections(sem, snap.StudentCounts[sem], s.cfg.DefaultSectionSize, s.cfg.DefaultProgramCode)
		for _, course := range snap.SemesterCourses[sem] {
			needed := course.TimesNeeded * len(sections)
			if course.IsLab {
				labNeeded += needed
			} else {
				theoryNeeded += needed
			}
		}
	}

	slotCatalog := snap.slotCatalog()
	ledger, err := s.buildUsageLedger(ctx)
	if err != nil {
		return nil, err
	}

	theoryFree := 0
	for _, room := range snap.TheoryRooms {
		theoryFree += ledger.FreeCount(timetable.KindTheory, room, timetable.DefaultDays, len(slotCatalog.Theory))
	}
	labFree := 0
	for _, room := range snap.LabRooms {
		labFree += ledger.FreeCount(timetable.KindLab, room, timetable.DefaultDays, len(slotCatalog.Lab))
	}

	resp := &dto.PlanSummaryResponse{
		SelectedSemesters: semesters,
		TheoryNeeded:      theoryNeeded,
		TheoryFree:        theoryFree,
		LabNeeded:         labNeeded,
		LabFree:           labFree,
		Feasible:          theoryNeeded <= theoryFree && labNeeded <= labFree,
	}

	_ = s.cache.Set(ctx, cacheKey, resp, 0)
	return resp, nil
}

func (s *PlanSummaryService) buildUsageLedger(ctx context.Context) (*timetable.UsageLedger, error) {
	rows, err := s.runs.ListMainSlots(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current timetable")
	}
	allocations := make([]timetable.Allocation, 0, len(rows))
	for _, row := range rows {
		allocations = append(allocations, timetable.Allocation{
			Kind: timetable.SlotKind(row.Kind),
			Room: row.Room,
			Day:  timetable.Day(row.DayOfWeek),
			Slot: row.SlotIndex,
		})
	}
	return timetable.NewUsageLedger().Merge(allocations), nil
}
