package timetable

import (
	"fmt"

	"github.com/noah-isme/exam-timetable-api/internal/models"
)

func makeStudents(prefix string, from, to int) []models.Student {
	out := make([]models.Student, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, models.Student{ID: fmt.Sprintf("%s%03d", prefix, i)})
	}
	return out
}

func makeCourse(id, code string, students ...models.Student) models.Course {
	return models.Course{ID: id, Code: code, Title: code + " Exam", Students: students}
}

func defaultSlots() []TimeSlot {
	return BuildTimeSlots(8, 17, 30)
}

func mustPlace(g *Grid, courseID string, week int, day Day, slotID string) *Grid {
	next, err := g.Place(courseID, week, day, slotID)
	if err != nil {
		panic(err)
	}
	return next
}
