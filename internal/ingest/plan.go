package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/noah-isme/exam-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
)

// planRow is one line of a placement plan: course_id,week,day,slot.
type planRow struct {
	CourseID string `csv:"course_id"`
	Week     string `csv:"week"`
	Day      string `csv:"day"`
	Slot     string `csv:"slot"`
}

// PlanError describes a plan line that could not be read.
type PlanError struct {
	Line   int
	Reason string
}

func (e PlanError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// ParsePlan reads a placement plan in file order. Lines with an unreadable
// week or day are reported and left out. Whether a slot exists is decided
// later by the grid.
func ParsePlan(r io.Reader) ([]timetable.Placement, []PlanError, error) {
	var rows []planRow
	if err := unmarshal(r, &rows); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read the plan file")
	}

	placements := make([]timetable.Placement, 0, len(rows))
	problems := make([]PlanError, 0)
	for i, row := range rows {
		line := i + 2
		courseID := strings.TrimSpace(row.CourseID)
		if courseID == "" {
			problems = append(problems, PlanError{Line: line, Reason: "missing course_id"})
			continue
		}
		week, err := strconv.Atoi(strings.TrimSpace(row.Week))
		if err != nil || week < 1 {
			problems = append(problems, PlanError{Line: line, Reason: fmt.Sprintf("invalid week %q", row.Week)})
			continue
		}
		day, ok := timetable.ParseDay(strings.TrimSpace(row.Day))
		if !ok {
			problems = append(problems, PlanError{Line: line, Reason: fmt.Sprintf("invalid day %q", row.Day)})
			continue
		}
		placements = append(placements, timetable.Placement{
			CourseID: courseID,
			Week:     week,
			Day:      day,
			SlotID:   normalizeSlot(row.Slot),
			Position: len(placements),
		})
	}
	return placements, problems, nil
}

// normalizeSlot pads "9:00" to "09:00".
func normalizeSlot(raw string) string {
	slot := strings.TrimSpace(raw)
	if len(slot) == 4 && slot[1] == ':' {
		return "0" + slot
	}
	return slot
}
