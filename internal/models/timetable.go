package models

import "time"

// TimetableSettings holds the coordinator-facing grid configuration.
type TimetableSettings struct {
	SlotIntervalMinutes int       `db:"slot_interval_minutes" json:"slotIntervalMinutes"`
	StartHour           int       `db:"start_hour" json:"startHour"`
	EndHour             int       `db:"end_hour" json:"endHour"`
	StudentsPerRoom     int       `db:"students_per_room" json:"studentsPerRoom"`
	InvigilatorPoolSize int       `db:"invigilator_pool_size" json:"invigilatorPoolSize"`
	WeekCount           int       `db:"week_count" json:"weekCount"`
	StartDate           time.Time `db:"start_date" json:"startDate"`
	UpdatedAt           time.Time `db:"updated_at" json:"updatedAt"`
}

// ExamAssignment is one persisted grid placement.
type ExamAssignment struct {
	CourseID  string    `db:"course_id" json:"courseId"`
	Week      int       `db:"week" json:"week"`
	Day       string    `db:"day" json:"day"`
	SlotID    string    `db:"slot_id" json:"slotId"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
