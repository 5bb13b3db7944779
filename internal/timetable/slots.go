// Package timetable evaluates exam placements on a weekly grid: it derives
// room and invigilator needs, reports conflicts and builds rosters. It never
// decides where an exam goes.
package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxWeeks bounds the number of weeks a grid may hold.
const MaxWeeks = 10

// ExamSpan is the number of consecutive slots an exam occupies.
const ExamSpan = 2

// Day is a weekday of the exam grid.
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
)

// Days lists the grid days in order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

// ParseDay resolves a day name case-insensitively.
func ParseDay(raw string) (Day, bool) {
	for _, d := range Days {
		if strings.EqualFold(string(d), strings.TrimSpace(raw)) {
			return d, true
		}
	}
	return "", false
}

// DayIndex returns the position of d within Days, or -1.
func DayIndex(d Day) int {
	for i, candidate := range Days {
		if candidate == d {
			return i
		}
	}
	return -1
}

// TimeSlot is one fixed-length interval of a day.
type TimeSlot struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Minutes int    `json:"minutes"`
}

// BuildTimeSlots generates the slot sequence for a day. It returns an empty
// slice when the interval is not positive or the window is empty.
func BuildTimeSlots(startHour, endHour, intervalMinutes int) []TimeSlot {
	slots := make([]TimeSlot, 0)
	if intervalMinutes <= 0 || endHour <= startHour {
		return slots
	}
	last := endHour*60 - intervalMinutes
	for minutes := startHour * 60; minutes <= last; minutes += intervalMinutes {
		slots = append(slots, TimeSlot{
			ID:      FormatSlotID(minutes),
			Label:   FormatTimeLabel(minutes),
			Minutes: minutes,
		})
	}
	return slots
}

// FormatSlotID renders minutes since midnight as "HH:MM".
func FormatSlotID(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FormatTimeLabel renders minutes since midnight as a 12-hour label.
func FormatTimeLabel(minutes int) string {
	hours := (minutes / 60) % 24
	suffix := "AM"
	if hours >= 12 {
		suffix = "PM"
	}
	display := hours % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, minutes%60, suffix)
}

// ParseSlotMinutes converts a slot id back to minutes since midnight.
// Malformed ids yield 0.
func ParseSlotMinutes(id string) int {
	hours, mins, ok := strings.Cut(id, ":")
	if !ok {
		return 0
	}
	h, err := strconv.Atoi(hours)
	if err != nil {
		return 0
	}
	m, err := strconv.Atoi(mins)
	if err != nil {
		return 0
	}
	return h*60 + m
}

// FormatSlotRange renders the hour-long window starting at the slot.
func FormatSlotRange(slotID string) string {
	start := ParseSlotMinutes(slotID)
	return fmt.Sprintf("%s - %s", FormatTimeLabel(start), FormatTimeLabel(start+60))
}

// AlignToMonday returns the Monday on or before t, at midnight.
func AlignToMonday(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// DayDate returns the calendar date of a grid day given the first week's start.
func DayDate(start time.Time, week int, day Day) time.Time {
	idx := DayIndex(day)
	if idx < 0 {
		idx = 0
	}
	return AlignToMonday(start).AddDate(0, 0, (week-1)*7+idx)
}

// FormatDate renders the long date label used on rosters.
func FormatDate(t time.Time) string {
	return t.Format("Monday, Jan 2, 2006")
}
