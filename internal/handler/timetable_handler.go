package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/service"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
	"github.com/noah-isme/sma-adp-api/pkg/response"
)

type timetableRunner interface {
	RunMain(ctx context.Context, req dto.RunMainRequest) (*dto.RunResult, error)
	RunElectives(ctx context.Context, req dto.RunElectivesRequest) (*dto.RunResult, error)
	AssignTeachers(ctx context.Context, req dto.AssignTeachersRequest) (*dto.AssignTeachersResult, error)
	GetRun(ctx context.Context, id string) (*dto.RunStatusResponse, error)
}

type timetablePlanner interface {
	GetSummary(ctx context.Context, query dto.PlanSummaryQuery) (*dto.PlanSummaryResponse, error)
}

type timetableImporter interface {
	ImportMain(ctx context.Context, mainData []byte, cohortData []byte) (*dto.ImportResultResponse, error)
	ImportTeachers(ctx context.Context, data []byte) (*dto.TeacherImportResultResponse, error)
}

// TimetableHandler exposes the timetable generation/import/export surface.
type TimetableHandler struct {
	runner   timetableRunner
	planner  timetablePlanner
	importer timetableImporter
	exporter *service.TimetableExportService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(runner timetableRunner, planner timetablePlanner, importer timetableImporter, exporter *service.TimetableExportService) *TimetableHandler {
	return &TimetableHandler{runner: runner, planner: planner, importer: importer, exporter: exporter}
}

func readMultipartFile(c *gin.Context, field string) ([]byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close() //nolint:errcheck
	reader, ok := src.(io.ReadSeeker)
	if ok {
		return io.ReadAll(reader)
	}
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, src); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunMain godoc
// @Summary Run the main timetable CP solve
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.RunMainRequest true "Run-main payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/run-main [post]
func (h *TimetableHandler) RunMain(c *gin.Context) {
	var req dto.RunMainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run-main payload"))
		return
	}
	result, err := h.runner.RunMain(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RunElectives godoc
// @Summary Run the elective CP solve
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.RunElectivesRequest true "Run-electives payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/run-electives [post]
func (h *TimetableHandler) RunElectives(c *gin.Context) {
	var req dto.RunElectivesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run-electives payload"))
		return
	}
	result, err := h.runner.RunElectives(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AssignTeachers godoc
// @Summary Assign teachers to the current main timetable
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.AssignTeachersRequest true "Assign-teachers payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/assign-teachers [post]
func (h *TimetableHandler) AssignTeachers(c *gin.Context) {
	var req dto.AssignTeachersRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assign-teachers payload"))
		return
	}
	result, err := h.runner.AssignTeachers(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GetRun godoc
// @Summary Poll a timetable run's status
// @Tags Timetable
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/runs/{id} [get]
func (h *TimetableHandler) GetRun(c *gin.Context) {
	id := c.Param("id")
	result, err := h.runner.GetRun(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// PlanSummary godoc
// @Summary Capacity-planning summary for the imported catalog
// @Tags Timetable
// @Produce json
// @Param semesters query []int false "Semesters to include (all when omitted)"
// @Success 200 {object} response.Envelope
// @Router /timetable/plan-summary [get]
func (h *TimetableHandler) PlanSummary(c *gin.Context) {
	query := dto.PlanSummaryQuery{}
	for _, raw := range c.QueryArray("semesters") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semesters must be integers"))
				return
			}
			query.Semesters = append(query.Semesters, n)
		}
	}
	result, err := h.planner.GetSummary(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Import godoc
// @Summary Import the main roadmap/rooms/sections workbook (and optional cohort workbook)
// @Tags Timetable
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Main workbook"
// @Param cohortFile formData file false "Cohort workbook"
// @Success 200 {object} response.Envelope
// @Router /timetable/import [post]
func (h *TimetableHandler) Import(c *gin.Context) {
	mainData, err := readMultipartFile(c, "file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	var cohortData []byte
	if _, ferr := c.FormFile("cohortFile"); ferr == nil {
		cohortData, err = readMultipartFile(c, "cohortFile")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read cohort file"))
			return
		}
	}
	result, err := h.importer.ImportMain(c.Request.Context(), mainData, cohortData)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ImportTeachers godoc
// @Summary Import the teacher-preference roster workbook
// @Tags Timetable
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Teacher roster workbook"
// @Success 200 {object} response.Envelope
// @Router /timetable/teachers/import [post]
func (h *TimetableHandler) ImportTeachers(c *gin.Context) {
	data, err := readMultipartFile(c, "file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	result, err := h.importer.ImportTeachers(c.Request.Context(), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Render the current timetable to a downloadable workbook
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "timetable export not configured"))
		return
	}
	result, err := h.exporter.Export(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DownloadExport godoc
// @Summary Download an exported timetable workbook via signed token
// @Tags Timetable
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /timetable/export/{token} [get]
func (h *TimetableHandler) DownloadExport(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "timetable export not configured"))
		return
	}
	token := c.Param("token")
	file, relPath, err := h.exporter.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export metadata"))
		return
	}
	filename := relPath
	if idx := strings.LastIndex(relPath, "/"); idx >= 0 {
		filename = relPath[idx+1:]
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", file, nil)
}
