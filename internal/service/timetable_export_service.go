package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/sma-adp-api/internal/exporter"
	"github.com/noah-isme/sma-adp-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
	"github.com/noah-isme/sma-adp-api/pkg/storage"
)

// timetableFileStorage mirrors fileStorage in export_service.go; kept
// separate so this package doesn't couple its storage needs to the report
// exporter's interface.
type timetableFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// TimetableExportConfig tunes the signed-download surface.
type TimetableExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// TimetableExportResult captures where a rendered workbook landed and how
// to fetch it back.
type TimetableExportResult struct {
	RelativePath string
	Token        string
	URL          string
	ExpiresAt    time.Time
}

// TimetableExportService renders the current timetable (main + elective
// slots, from the currently imported catalog) into a downloadable workbook,
// the same signed-URL-over-local-storage flow report_service.go uses for
// analytics exports.
type TimetableExportService struct {
	catalogs timetableCatalogStore
	runs     timetableRunStore
	storage  timetableFileStorage
	signer   *storage.SignedURLSigner
	exporter *exporter.WorkbookExporter
	cfg      TimetableExportConfig
}

// NewTimetableExportService wires the export service.
func NewTimetableExportService(catalogs timetableCatalogStore, runs timetableRunStore, store timetableFileStorage, signer *storage.SignedURLSigner, cfg TimetableExportConfig) *TimetableExportService {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &TimetableExportService{
		catalogs: catalogs,
		runs:     runs,
		storage:  store,
		signer:   signer,
		exporter: exporter.NewWorkbookExporter(),
		cfg:      cfg,
	}
}

// Export renders the current timetable to a workbook and returns a
// time-limited signed download.
func (s *TimetableExportService) Export(ctx context.Context) (*TimetableExportResult, error) {
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

	mainRows, err := s.runs.ListMainSlots(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current timetable")
	}
	electiveRows, err := s.runs.ListElectiveSlots(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current elective timetable")
	}
	if len(mainRows) == 0 && len(electiveRows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no timetable has been generated yet")
	}

	slots := make([]timetable.TimetableSlot, 0, len(mainRows))
	for _, row := range mainRows {
		slot := timetable.TimetableSlot{Section: row.Section, SubjectCode: row.SubjectCode, Room: row.Room, Day: timetable.Day(row.DayOfWeek), Slot: row.SlotIndex, Kind: timetable.SlotKind(row.Kind)}
		if row.CohortLabel != nil {
			slot.CohortLabel = *row.CohortLabel
		}
		if row.TeacherID != nil {
			slot.TeacherID = *row.TeacherID
		}
		slots = append(slots, slot)
	}
	electiveSlots := make([]timetable.ElectiveSlot, 0, len(electiveRows))
	for _, row := range electiveRows {
		electiveSlots = append(electiveSlots, timetable.ElectiveSlot{ElectiveCode: row.ElectiveCode, SectionIndex: row.SectionIndex, Room: row.Room, Day: timetable.Day(row.DayOfWeek), Slot: row.SlotIndex, Kind: timetable.SlotKind(row.Kind)})
	}

	sections := make(map[string]exporter.SectionInfo)
	for sem, secs := range snap.Sections {
		for _, sec := range secs {
			sections[sec.Code] = exporter.SectionInfo{Semester: sem, Name: sec.Code}
		}
	}
	teacherNames := make(map[string]string)
	for _, pref := range snap.TeacherPreferences {
		if pref.TeacherID != "" {
			teacherNames[pref.TeacherID] = pref.TeacherName
		}
	}

	payload, err := s.exporter.Render(exporter.WorkbookInput{
		Slots:         slots,
		ElectiveSlots: electiveSlots,
		Sections:      sections,
		Catalog:       snap.slotCatalog(),
		TeacherNames:  teacherNames,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable workbook")
	}

	filename := fmt.Sprintf("timetable_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable workbook")
	}
	token, expiresAt, err := s.signer.Generate(filename, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &TimetableExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/timetable/export/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// ResolveDownload validates a download token and opens the stored workbook.
func (s *TimetableExportService) ResolveDownload(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "exported workbook not found")
	}
	return f, relPath, nil
}
