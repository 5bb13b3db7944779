package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/exam-timetable-api/internal/models"
)

func TestSummarizeWeekCountsUniqueStudents(t *testing.T) {
	catalog := NewCatalog([]models.Course{
		makeCourse("a", "A101", makeStudents("s", 1, 30)...),
		makeCourse("b", "B101", makeStudents("s", 25, 40)...),
	}, nil)
	g := NewGrid(1, defaultSlots())
	g = mustPlace(g, "a", 1, Monday, "09:00")
	g = mustPlace(g, "b", 1, Monday, "09:00")

	summary := SummarizeWeek(g, catalog, 1, 25)
	cell := summary[Monday]["09:00"]
	assert.Equal(t, SlotSummary{StudentCount: 40, RoomCount: 2, InvigilatorCount: 4, IsStartSlot: true}, cell)

	continuation := summary[Monday]["09:30"]
	assert.Equal(t, SlotSummary{}, continuation)
}

func TestSummarizeWeekInvigilatorsAreTwicePerRoom(t *testing.T) {
	catalog := NewCatalog([]models.Course{
		makeCourse("a", "A101", makeStudents("a", 1, 7)...),
		makeCourse("b", "B101", makeStudents("b", 1, 51)...),
		makeCourse("c", "C101"),
	}, nil)
	g := NewGrid(1, defaultSlots())
	g = mustPlace(g, "a", 1, Monday, "08:00")
	g = mustPlace(g, "b", 1, Wednesday, "14:00")
	g = mustPlace(g, "c", 1, Friday, "10:00")

	for _, cells := range SummarizeWeek(g, catalog, 1, 25) {
		for _, cell := range cells {
			assert.Equal(t, cell.RoomCount*2, cell.InvigilatorCount)
		}
	}
	summary := SummarizeWeek(g, catalog, 1, 25)
	assert.Equal(t, 3, summary[Wednesday]["14:00"].RoomCount)
	assert.True(t, summary[Friday]["10:00"].IsStartSlot)
	assert.Zero(t, summary[Friday]["10:00"].RoomCount)
}

func TestSummarizeWeekSkipsDanglingCourses(t *testing.T) {
	catalog := NewCatalog(nil, nil)
	g := mustPlace(NewGrid(1, defaultSlots()), "ghost", 1, Tuesday, "11:00")

	cell := SummarizeWeek(g, catalog, 1, 25)[Tuesday]["11:00"]
	assert.True(t, cell.IsStartSlot)
	assert.Zero(t, cell.StudentCount)
	assert.Zero(t, cell.RoomCount)
}

func TestSummarizeWeekFloorsRoomSize(t *testing.T) {
	catalog := NewCatalog([]models.Course{makeCourse("a", "A101", makeStudents("s", 1, 3)...)}, nil)
	g := mustPlace(NewGrid(1, defaultSlots()), "a", 1, Monday, "08:00")
	assert.Equal(t, 3, SummarizeWeek(g, catalog, 1, 0)[Monday]["08:00"].RoomCount)
}

func TestSummarizeOverview(t *testing.T) {
	catalog := NewCatalog([]models.Course{
		makeCourse("a", "A101", makeStudents("s", 1, 30)...),
		makeCourse("b", "B101", makeStudents("s", 21, 30)...),
		makeCourse("c", "C101", makeStudents("s", 1, 5)...),
	}, nil)
	g := NewGrid(2, defaultSlots())
	g = mustPlace(g, "a", 1, Monday, "08:00")
	g = mustPlace(g, "b", 2, Monday, "08:00")

	overview := Summarize(g, catalog, 25)
	assert.Equal(t, Overview{TotalCourses: 2, TotalStudents: 30, TotalRooms: 3, TotalInvigilators: 6}, overview)
}

func TestOccupiedSlotsIncludesContinuations(t *testing.T) {
	g := NewGrid(1, defaultSlots())
	g = mustPlace(g, "a", 1, Monday, "09:00")
	g = mustPlace(g, "b", 1, Thursday, "13:00")
	assert.Equal(t, []string{"09:00", "09:30", "13:00", "13:30"}, OccupiedSlots(g, 1))
}
