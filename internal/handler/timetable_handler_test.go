package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

type fakeTimetableRunner struct {
	runMainResp      *dto.RunResult
	runMainErr       error
	runElectivesResp *dto.RunResult
	runElectivesErr  error
	assignResp       *dto.AssignTeachersResult
	assignErr        error
	getRunResp       *dto.RunStatusResponse
	getRunErr        error
	lastRunID        string
}

func (f *fakeTimetableRunner) RunMain(context.Context, dto.RunMainRequest) (*dto.RunResult, error) {
	return f.runMainResp, f.runMainErr
}

func (f *fakeTimetableRunner) RunElectives(context.Context, dto.RunElectivesRequest) (*dto.RunResult, error) {
	return f.runElectivesResp, f.runElectivesErr
}

func (f *fakeTimetableRunner) AssignTeachers(context.Context, dto.AssignTeachersRequest) (*dto.AssignTeachersResult, error) {
	return f.assignResp, f.assignErr
}

func (f *fakeTimetableRunner) GetRun(_ context.Context, id string) (*dto.RunStatusResponse, error) {
	f.lastRunID = id
	return f.getRunResp, f.getRunErr
}

type fakeTimetablePlanner struct {
	resp       *dto.PlanSummaryResponse
	err        error
	lastQuery  dto.PlanSummaryQuery
}

func (f *fakeTimetablePlanner) GetSummary(_ context.Context, query dto.PlanSummaryQuery) (*dto.PlanSummaryResponse, error) {
	f.lastQuery = query
	return f.resp, f.err
}

type fakeTimetableImporter struct {
	importMainResp     *dto.ImportResultResponse
	importMainErr      error
	importTeachersResp *dto.TeacherImportResultResponse
	importTeachersErr  error
	lastCohortData     []byte
}

func (f *fakeTimetableImporter) ImportMain(_ context.Context, mainData []byte, cohortData []byte) (*dto.ImportResultResponse, error) {
	f.lastCohortData = cohortData
	return f.importMainResp, f.importMainErr
}

func (f *fakeTimetableImporter) ImportTeachers(context.Context, []byte) (*dto.TeacherImportResultResponse, error) {
	return f.importTeachersResp, f.importTeachersErr
}

func TestTimetableHandlerRunMainRejectsInvalidJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(&fakeTimetableRunner{}, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/run-main", bytes.NewBufferString("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	h.RunMain(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimetableHandlerRunMainSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &fakeTimetableRunner{runMainResp: &dto.RunResult{RunID: "run-1", Status: "ok", CreatedCount: 5}}
	h := NewTimetableHandler(runner, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	body, _ := json.Marshal(dto.RunMainRequest{SelectedSemesters: []int{1}})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/run-main", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.RunMain(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "run-1", envelope.Data["runId"])
}

func TestTimetableHandlerRunMainPropagatesServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &fakeTimetableRunner{runMainErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "no catalog")}
	h := NewTimetableHandler(runner, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	body, _ := json.Marshal(dto.RunMainRequest{SelectedSemesters: []int{1}})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/run-main", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.RunMain(c)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestTimetableHandlerGetRunUsesPathParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &fakeTimetableRunner{getRunResp: &dto.RunStatusResponse{ID: "run-7", Status: "ok"}}
	h := NewTimetableHandler(runner, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/timetable/runs/run-7", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-7"}}

	h.GetRun(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-7", runner.lastRunID)
}

func TestTimetableHandlerPlanSummaryParsesCommaSeparatedSemesters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	planner := &fakeTimetablePlanner{resp: &dto.PlanSummaryResponse{Feasible: true}}
	h := NewTimetableHandler(&fakeTimetableRunner{}, planner, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/timetable/plan-summary?semesters=1,2,3", nil)

	h.PlanSummary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{1, 2, 3}, planner.lastQuery.Semesters)
}

func TestTimetableHandlerPlanSummaryRejectsNonIntegerSemester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(&fakeTimetableRunner{}, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/timetable/plan-summary?semesters=abc", nil)

	h.PlanSummary(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/timetable/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestTimetableHandlerImportRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(&fakeTimetableRunner{}, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.Close())
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/import", body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	h.Import(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimetableHandlerImportForwardsMainAndCohortFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	importer := &fakeTimetableImporter{importMainResp: &dto.ImportResultResponse{Subjects: 3}}
	h := NewTimetableHandler(&fakeTimetableRunner{}, &fakeTimetablePlanner{}, importer, nil)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	mainPart, err := writer.CreateFormFile("file", "main.xlsx")
	require.NoError(t, err)
	_, err = mainPart.Write([]byte("main-data"))
	require.NoError(t, err)
	cohortPart, err := writer.CreateFormFile("cohortFile", "cohort.xlsx")
	require.NoError(t, err)
	_, err = cohortPart.Write([]byte("cohort-data"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/import", body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	h.Import(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("cohort-data"), importer.lastCohortData)
}

func TestTimetableHandlerExportWithoutExporterConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(&fakeTimetableRunner{}, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/timetable/export", nil)

	h.Export(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTimetableHandlerDownloadExportWithoutExporterConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(&fakeTimetableRunner{}, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/timetable/export/sometoken", nil)
	c.Params = gin.Params{{Key: "token", Value: "sometoken"}}

	h.DownloadExport(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTimetableHandlerAssignTeachersRejectsInvalidJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(&fakeTimetableRunner{}, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/assign-teachers", bytes.NewBufferString("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	h.AssignTeachers(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimetableHandlerAssignTeachersAllowsEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &fakeTimetableRunner{assignResp: &dto.AssignTeachersResult{Status: "ok", Assigned: 4}}
	h := NewTimetableHandler(runner, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/assign-teachers", bytes.NewReader(nil))

	h.AssignTeachers(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimetableHandlerAssignTeachersSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &fakeTimetableRunner{assignResp: &dto.AssignTeachersResult{Status: "ok", Assigned: 4}}
	h := NewTimetableHandler(runner, &fakeTimetablePlanner{}, &fakeTimetableImporter{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/assign-teachers", bytes.NewBufferString("{}"))
	c.Request.Header.Set("Content-Type", "application/json")

	h.AssignTeachers(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
