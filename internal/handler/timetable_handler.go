package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-timetable-api/internal/dto"
	"github.com/noah-isme/exam-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
	"github.com/noah-isme/exam-timetable-api/pkg/response"
)

type timetableService interface {
	Settings() dto.SettingsResponse
	UpdateSettings(ctx context.Context, req dto.UpdateSettingsRequest) (*dto.SettingsResponse, error)
	Weeks() []int
	AddWeek(ctx context.Context) (*dto.WeekResponse, error)
	Place(ctx context.Context, req dto.PlacementRequest) (*dto.PlacementResponse, error)
	Remove(ctx context.Context, req dto.PlacementRequest) error
	Reset(ctx context.Context) error
	WeekView(week int) (*dto.WeekView, error)
	Roster(ctx context.Context, week int) (*timetable.WeekRoster, error)
	Conflicts() timetable.ConflictReport
	Overview() timetable.Overview
}

// TimetableHandler exposes the exam grid.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(service timetableService) *TimetableHandler {
	return &TimetableHandler{service: service}
}

// GetSettings godoc
// @Summary Current grid settings and slot sequence
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/settings [get]
func (h *TimetableHandler) GetSettings(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Settings())
}

// UpdateSettings godoc
// @Summary Change slot interval, hours, room size or invigilator pool
// @Description Placements whose start slot no longer exists are removed and listed in droppedCourseIds.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.UpdateSettingsRequest true "Settings"
// @Success 200 {object} response.Envelope
// @Router /timetable/settings [put]
func (h *TimetableHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid settings payload"))
		return
	}
	result, err := h.service.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ListWeeks godoc
// @Summary List exam weeks
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks [get]
func (h *TimetableHandler) ListWeeks(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"weeks": h.service.Weeks(), "maxWeeks": timetable.MaxWeeks})
}

// AddWeek godoc
// @Summary Append an exam week
// @Tags Timetable
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/weeks [post]
func (h *TimetableHandler) AddWeek(c *gin.Context) {
	result, err := h.service.AddWeek(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GetWeek godoc
// @Summary Grid view of one week
// @Tags Timetable
// @Produce json
// @Param week path int true "Week number"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week} [get]
func (h *TimetableHandler) GetWeek(c *gin.Context) {
	week, ok := weekParam(c)
	if !ok {
		return
	}
	view, err := h.service.WeekView(week)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// GetRoster godoc
// @Summary Room packing, invigilator staffing and student lists of one week
// @Tags Timetable
// @Produce json
// @Param week path int true "Week number"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/roster [get]
func (h *TimetableHandler) GetRoster(c *gin.Context) {
	week, ok := weekParam(c)
	if !ok {
		return
	}
	roster, err := h.service.Roster(c.Request.Context(), week)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster)
}

// Place godoc
// @Summary Place or move an exam
// @Description Conflicts never block a placement; the cell's advisories are returned.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.PlacementRequest true "Target cell"
// @Success 200 {object} response.Envelope
// @Router /timetable/placements [post]
func (h *TimetableHandler) Place(c *gin.Context) {
	var req dto.PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid placement payload"))
		return
	}
	result, err := h.service.Place(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Remove godoc
// @Summary Remove an exam from a cell
// @Tags Timetable
// @Produce json
// @Param courseId query string true "Course ID"
// @Param week query int true "Week"
// @Param day query string true "Day"
// @Param slotId query string true "Slot ID"
// @Success 204
// @Router /timetable/placements [delete]
func (h *TimetableHandler) Remove(c *gin.Context) {
	var req dto.PlacementRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid placement query"))
		return
	}
	if err := h.service.Remove(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reset godoc
// @Summary Clear every placement
// @Tags Timetable
// @Success 204
// @Router /timetable/reset [post]
func (h *TimetableHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Conflicts godoc
// @Summary Every conflict advisory across all weeks
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/conflicts [get]
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	report := h.service.Conflicts()
	overall := report.Overall
	if overall == nil {
		overall = []string{}
	}
	response.JSON(c, http.StatusOK, gin.H{"conflicts": overall}, map[string]interface{}{"count": len(overall)})
}

// Overview godoc
// @Summary Totals across all weeks
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/overview [get]
func (h *TimetableHandler) Overview(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Overview())
}

func weekParam(c *gin.Context) (int, bool) {
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil || week < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid week %q", c.Param("week"))))
		return 0, false
	}
	return week, true
}
