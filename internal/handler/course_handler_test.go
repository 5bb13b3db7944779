package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-timetable-api/internal/dto"
	"github.com/noah-isme/exam-timetable-api/internal/middleware"
	"github.com/noah-isme/exam-timetable-api/internal/models"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
)

type courseListerMock struct {
	query string
	all   bool
}

func (m *courseListerMock) AvailableCourses(query string, includeScheduled bool) []dto.CourseSummary {
	m.query, m.all = query, includeScheduled
	return []dto.CourseSummary{{ID: "a", Code: "MATH101"}}
}

type catalogImporterMock struct {
	body     string
	filename string
	actor    string
	err      error
	latest   *models.CatalogImport
}

func (m *catalogImporterMock) Import(_ context.Context, r io.Reader, filename, actorID string) (*dto.ImportResponse, error) {
	data, _ := io.ReadAll(r)
	m.body, m.filename, m.actor = string(data), filename, actorID
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ImportResponse{Courses: 1, Students: 2, Rows: 2}, nil
}

func (m *catalogImporterMock) LatestImport(context.Context) (*models.CatalogImport, error) {
	if m.latest == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no enrollment file has been imported")
	}
	return m.latest, nil
}

func newUploadContext(t *testing.T, field, filename, content string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/import", &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator})
	return c, w
}

func TestCourseHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lister := &courseListerMock{}
	h := NewCourseHandler(lister, &catalogImporterMock{}, 1)

	c, w := newJSONContext(http.MethodGet, "/courses?q=math&all=true", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "math", lister.query)
	assert.True(t, lister.all)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestCourseHandlerImport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	importer := &catalogImporterMock{}
	h := NewCourseHandler(&courseListerMock{}, importer, 1)

	c, w := newUploadContext(t, "file", "enrollments.csv", "CRN,Course\n1001,MATH101\n")
	h.Import(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "enrollments.csv", importer.filename)
	assert.Equal(t, "coord-1", importer.actor)
	assert.Contains(t, importer.body, "MATH101")
}

func TestCourseHandlerImportRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewCourseHandler(&courseListerMock{}, &catalogImporterMock{}, 1)
	c, w := newUploadContext(t, "upload", "enrollments.csv", "x")
	h.Import(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newUploadContext(t, "file", "huge.csv", strings.Repeat("a", 2<<20))
	h.Import(c)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	c, w = newUploadContext(t, "file", "enrollments.csv", "x")
	c.Keys = nil
	h.Import(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	h = NewCourseHandler(&courseListerMock{}, &catalogImporterMock{err: appErrors.ErrNoCourses}, 1)
	c, w = newUploadContext(t, "file", "enrollments.csv", "x")
	h.Import(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "NO_COURSES")
}

func TestCourseHandlerLatestImport(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, w := newJSONContext(http.MethodGet, "/courses/imports/latest", nil)
	NewCourseHandler(&courseListerMock{}, &catalogImporterMock{}, 1).LatestImport(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	importer := &catalogImporterMock{latest: &models.CatalogImport{ID: "batch-1", Filename: "enrollments.csv"}}
	c, w = newJSONContext(http.MethodGet, "/courses/imports/latest", nil)
	NewCourseHandler(&courseListerMock{}, importer, 1).LatestImport(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "batch-1", decodeData(t, w)["id"])
}
