package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-timetable-api/internal/dto"
	"github.com/noah-isme/exam-timetable-api/internal/middleware"
	"github.com/noah-isme/exam-timetable-api/internal/models"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
	"github.com/noah-isme/exam-timetable-api/pkg/response"
)

type courseLister interface {
	AvailableCourses(query string, includeScheduled bool) []dto.CourseSummary
}

type catalogImporter interface {
	Import(ctx context.Context, r io.Reader, filename, actorID string) (*dto.ImportResponse, error)
	LatestImport(ctx context.Context) (*models.CatalogImport, error)
}

// CourseHandler serves the course catalog and enrollment uploads.
type CourseHandler struct {
	courses        courseLister
	catalog        catalogImporter
	maxUploadBytes int64
}

// NewCourseHandler constructs the handler. maxUploadMB caps import bodies.
func NewCourseHandler(courses courseLister, catalog catalogImporter, maxUploadMB int64) *CourseHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &CourseHandler{courses: courses, catalog: catalog, maxUploadBytes: maxUploadMB << 20}
}

// List godoc
// @Summary List courses
// @Description Scheduled courses are hidden unless all=true.
// @Tags Courses
// @Produce json
// @Param q query string false "Matches code, title, section or CRN"
// @Param all query bool false "Include scheduled courses"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var query dto.CourseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid course query"))
		return
	}
	items := h.courses.AvailableCourses(query.Q, query.All)
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
}

// Import godoc
// @Summary Upload an enrollment export
// @Description Replaces the catalog and resets the timetable to one empty week.
// @Tags Courses
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Enrollment CSV"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /courses/import [post]
func (h *CourseHandler) Import(c *gin.Context) {
	if h.catalog == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "catalog service not configured"))
		return
	}
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if c.Request.ContentLength > h.maxUploadBytes {
		response.Error(c, h.tooLarge())
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, h.tooLarge())
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.catalog.Import(c.Request.Context(), src, fileHeader.Filename, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func (h *CourseHandler) tooLarge() *appErrors.Error {
	return appErrors.New("UPLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge,
		fmt.Sprintf("upload exceeds %d MB", h.maxUploadBytes>>20))
}

// LatestImport godoc
// @Summary Describe the most recent enrollment upload
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/imports/latest [get]
func (h *CourseHandler) LatestImport(c *gin.Context) {
	batch, err := h.catalog.LatestImport(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch)
}
