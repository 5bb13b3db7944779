package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-timetable-api/internal/timetable"
)

func TestParsePlan(t *testing.T) {
	input := "course_id,week,day,slot\n" +
		"MATH-101,1,monday,9:00\n" +
		"PHYS-201,2,Friday,13:30\n" +
		",1,Monday,09:00\n" +
		"CS-100,zero,Monday,09:00\n" +
		"CS-200,1,Sunday,09:00\n"

	placements, problems, err := ParsePlan(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []timetable.Placement{
		{CourseID: "MATH-101", Week: 1, Day: timetable.Monday, SlotID: "09:00", Position: 0},
		{CourseID: "PHYS-201", Week: 2, Day: timetable.Friday, SlotID: "13:30", Position: 1},
	}, placements)
	require.Len(t, problems, 3)
	assert.Equal(t, 4, problems[0].Line)
	assert.Equal(t, "line 5: invalid week \"zero\"", problems[1].Error())
	assert.Contains(t, problems[2].Reason, "Sunday")
}

func TestParsePlanEmpty(t *testing.T) {
	placements, problems, err := ParsePlan(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, placements)
	assert.Empty(t, problems)
}
