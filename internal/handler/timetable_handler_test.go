package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-timetable-api/internal/dto"
	"github.com/noah-isme/exam-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
)

type timetableServiceMock struct {
	placeReq   dto.PlacementRequest
	removeReq  dto.PlacementRequest
	placeErr   error
	addWeekErr error
	rosterWeek int
	rosterErr  error
	report     timetable.ConflictReport
	resets     int
}

func (m *timetableServiceMock) Settings() dto.SettingsResponse {
	return dto.SettingsResponse{Weeks: []int{1}}
}

func (m *timetableServiceMock) UpdateSettings(_ context.Context, req dto.UpdateSettingsRequest) (*dto.SettingsResponse, error) {
	return &dto.SettingsResponse{Weeks: []int{1}, DroppedCourseIDs: []string{"b"}}, nil
}

func (m *timetableServiceMock) Weeks() []int { return []int{1, 2} }

func (m *timetableServiceMock) AddWeek(context.Context) (*dto.WeekResponse, error) {
	if m.addWeekErr != nil {
		return nil, m.addWeekErr
	}
	return &dto.WeekResponse{Week: 3, Weeks: []int{1, 2, 3}}, nil
}

func (m *timetableServiceMock) Place(_ context.Context, req dto.PlacementRequest) (*dto.PlacementResponse, error) {
	m.placeReq = req
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	return &dto.PlacementResponse{
		Placement: timetable.Placement{CourseID: req.CourseID, Week: req.Week, Day: timetable.Day(req.Day), SlotID: req.SlotID},
		Conflicts: []string{},
	}, nil
}

func (m *timetableServiceMock) Remove(_ context.Context, req dto.PlacementRequest) error {
	m.removeReq = req
	return nil
}

func (m *timetableServiceMock) Reset(context.Context) error {
	m.resets++
	return nil
}

func (m *timetableServiceMock) WeekView(week int) (*dto.WeekView, error) {
	return &dto.WeekView{Week: week}, nil
}

func (m *timetableServiceMock) Roster(_ context.Context, week int) (*timetable.WeekRoster, error) {
	m.rosterWeek = week
	if m.rosterErr != nil {
		return nil, m.rosterErr
	}
	return &timetable.WeekRoster{Week: week}, nil
}

func (m *timetableServiceMock) Conflicts() timetable.ConflictReport { return m.report }

func (m *timetableServiceMock) Overview() timetable.Overview {
	return timetable.Overview{TotalCourses: 2, TotalStudents: 34}
}

func newJSONContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestTimetableHandlerPlace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc)

	c, w := newJSONContext(http.MethodPost, "/timetable/placements", dto.PlacementRequest{CourseID: "a", Week: 1, Day: "Monday", SlotID: "09:00"})
	h.Place(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a", svc.placeReq.CourseID)
	data := decodeData(t, w)
	assert.Equal(t, "09:00", data["placement"].(map[string]interface{})["slotId"])
}

func TestTimetableHandlerPlaceErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewTimetableHandler(&timetableServiceMock{})
	c, w := newJSONContext(http.MethodPost, "/timetable/placements", nil)
	c.Request = httptest.NewRequest(http.MethodPost, "/timetable/placements", bytes.NewBufferString("{"))
	h.Place(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h = NewTimetableHandler(&timetableServiceMock{placeErr: appErrors.ErrInvalidPlacement})
	c, w = newJSONContext(http.MethodPost, "/timetable/placements", dto.PlacementRequest{CourseID: "a", Week: 1, Day: "Monday", SlotID: "16:30"})
	h.Place(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_PLACEMENT")
}

func TestTimetableHandlerRemoveReadsQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc)

	c, w := newJSONContext(http.MethodDelete, "/timetable/placements?courseId=a&week=2&day=Tuesday&slotId=10:00", nil)
	h.Remove(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, dto.PlacementRequest{CourseID: "a", Week: 2, Day: "Tuesday", SlotID: "10:00"}, svc.removeReq)
}

func TestTimetableHandlerAddWeek(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, w := newJSONContext(http.MethodPost, "/timetable/weeks", nil)
	NewTimetableHandler(&timetableServiceMock{}).AddWeek(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newJSONContext(http.MethodPost, "/timetable/weeks", nil)
	NewTimetableHandler(&timetableServiceMock{addWeekErr: appErrors.ErrWeekLimitReached}).AddWeek(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTimetableHandlerWeekParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc)

	c, w := newJSONContext(http.MethodGet, "/timetable/weeks/2/roster", nil)
	c.Params = gin.Params{{Key: "week", Value: "2"}}
	h.GetRoster(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.rosterWeek)

	for _, raw := range []string{"0", "abc", "-1"} {
		c, w = newJSONContext(http.MethodGet, "/timetable/weeks/"+raw, nil)
		c.Params = gin.Params{{Key: "week", Value: raw}}
		h.GetWeek(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}
}

func TestTimetableHandlerConflictsNeverNull(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, w := newJSONContext(http.MethodGet, "/timetable/conflicts", nil)
	NewTimetableHandler(&timetableServiceMock{}).Conflicts(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conflicts":[]`)

	svc := &timetableServiceMock{report: timetable.ConflictReport{Overall: []string{"Week 1 Monday 09:00: clash"}}}
	c, w = newJSONContext(http.MethodGet, "/timetable/conflicts", nil)
	NewTimetableHandler(svc).Conflicts(c)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestTimetableHandlerReadEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc)

	c, w := newJSONContext(http.MethodGet, "/timetable/overview", nil)
	h.Overview(c)
	assert.Equal(t, float64(34), decodeData(t, w)["totalStudents"])

	c, w = newJSONContext(http.MethodGet, "/timetable/weeks", nil)
	h.ListWeeks(c)
	assert.Equal(t, float64(timetable.MaxWeeks), decodeData(t, w)["maxWeeks"])

	c, w = newJSONContext(http.MethodPut, "/timetable/settings", dto.UpdateSettingsRequest{SlotIntervalMinutes: 30, StartHour: 8, EndHour: 12, StudentsPerRoom: 25, InvigilatorPoolSize: 15})
	h.UpdateSettings(c)
	assert.Equal(t, []interface{}{"b"}, decodeData(t, w)["droppedCourseIds"])

	c, w = newJSONContext(http.MethodPost, "/timetable/reset", nil)
	h.Reset(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, svc.resets)
}
