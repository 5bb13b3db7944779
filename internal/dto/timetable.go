package dto

import (
	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/internal/timetable"
)

// UpdateSettingsRequest captures PUT /timetable/settings payload.
type UpdateSettingsRequest struct {
	SlotIntervalMinutes int    `json:"slotIntervalMinutes" validate:"required,oneof=30 60"`
	StartHour           int    `json:"startHour" validate:"min=0,max=23"`
	EndHour             int    `json:"endHour" validate:"required,max=24,gtfield=StartHour"`
	StudentsPerRoom     int    `json:"studentsPerRoom" validate:"required,min=1"`
	InvigilatorPoolSize int    `json:"invigilatorPoolSize" validate:"required,min=1,max=500"`
	StartDate           string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
}

// SettingsResponse describes the active grid configuration.
type SettingsResponse struct {
	Settings         models.TimetableSettings `json:"settings"`
	Slots            []timetable.TimeSlot     `json:"slots"`
	Weeks            []int                    `json:"weeks"`
	DroppedCourseIDs []string                 `json:"droppedCourseIds,omitempty"`
}

// PlacementRequest targets one grid cell.
type PlacementRequest struct {
	CourseID string `json:"courseId" form:"courseId" validate:"required"`
	Week     int    `json:"week" form:"week" validate:"required,min=1,max=10"`
	Day      string `json:"day" form:"day" validate:"required"`
	SlotID   string `json:"slotId" form:"slotId" validate:"required"`
}

// PlacementResponse echoes the stored placement with the advisories now
// attached to its cell.
type PlacementResponse struct {
	Placement timetable.Placement `json:"placement"`
	Conflicts []string            `json:"conflicts"`
}

// WeekResponse is returned after a week is added.
type WeekResponse struct {
	Week  int   `json:"week"`
	Weeks []int `json:"weeks"`
}

// CourseQuery filters the course list.
type CourseQuery struct {
	Q   string `form:"q"`
	All bool   `form:"all"`
}

// CourseSummary is the list view of a course.
type CourseSummary struct {
	ID           string               `json:"id"`
	Code         string               `json:"code"`
	Title        string               `json:"title"`
	Sections     []string             `json:"sections"`
	CRNs         []string             `json:"crns"`
	Instructors  []string             `json:"instructors"`
	StudentCount int                  `json:"studentCount"`
	Scheduled    *timetable.Placement `json:"scheduled,omitempty"`
}

// CellView is one (day, slot) cell of a week.
type CellView struct {
	SlotID       string                `json:"slotId"`
	Label        string                `json:"label"`
	CanStart     bool                  `json:"canStart"`
	Courses      []CourseSummary       `json:"courses"`
	ContinuedIDs []string              `json:"continuedCourseIds"`
	Summary      timetable.SlotSummary `json:"summary"`
	Conflicts    []string              `json:"conflicts"`
}

// DayView lists the cells of one weekday.
type DayView struct {
	Day   timetable.Day `json:"day"`
	Date  string        `json:"date"`
	Cells []CellView    `json:"cells"`
}

// WeekView is the full grid view of one week.
type WeekView struct {
	Week          int                  `json:"week"`
	Slots         []timetable.TimeSlot `json:"slots"`
	OccupiedSlots []string             `json:"occupiedSlots"`
	Days          []DayView            `json:"days"`
	ConflictCount int                  `json:"conflictCount"`
}
