package timetable

import (
	"errors"
	"sort"
)

var (
	// ErrUnknownWeek is returned when a placement targets a week the grid does not hold.
	ErrUnknownWeek = errors.New("timetable: unknown week")
	// ErrUnknownDay is returned for days outside Monday to Friday.
	ErrUnknownDay = errors.New("timetable: unknown day")
	// ErrUnknownSlot is returned for slot ids not in the current slot sequence.
	ErrUnknownSlot = errors.New("timetable: unknown slot")
	// ErrInvalidStartSlot is returned when an exam would overrun the last slot.
	ErrInvalidStartSlot = errors.New("timetable: slot cannot start an exam")
	// ErrMaxWeeks is returned when adding a week beyond MaxWeeks.
	ErrMaxWeeks = errors.New("timetable: maximum number of weeks reached")
)

type dayCells map[string][]string

type weekCells map[Day]dayCells

// Grid maps week, day and slot id to the ordered course ids starting there.
// A Grid is never mutated in place: every change returns a new Grid.
type Grid struct {
	slots []TimeSlot
	weeks map[int]weekCells
}

// Placement locates one course in the grid.
type Placement struct {
	CourseID string `json:"courseId"`
	Week     int    `json:"week"`
	Day      Day    `json:"day"`
	SlotID   string `json:"slotId"`
	Position int    `json:"position"`
}

// NewGrid builds an empty grid holding weeks 1..weekCount.
func NewGrid(weekCount int, slots []TimeSlot) *Grid {
	if weekCount < 1 {
		weekCount = 1
	}
	if weekCount > MaxWeeks {
		weekCount = MaxWeeks
	}
	g := &Grid{slots: append([]TimeSlot(nil), slots...), weeks: make(map[int]weekCells, weekCount)}
	for w := 1; w <= weekCount; w++ {
		g.weeks[w] = g.emptyWeek()
	}
	return g
}

// FromPlacements rebuilds a grid from stored placements. Placements pointing
// outside the grid or repeating a course are skipped and returned.
func FromPlacements(weekCount int, slots []TimeSlot, placements []Placement) (*Grid, []Placement) {
	g := NewGrid(weekCount, slots)
	ordered := append([]Placement(nil), placements...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	seen := make(map[string]struct{}, len(ordered))
	skipped := make([]Placement, 0)
	for _, p := range ordered {
		if _, dup := seen[p.CourseID]; dup || p.CourseID == "" {
			skipped = append(skipped, p)
			continue
		}
		if err := g.validateTarget(p.Week, p.Day, p.SlotID); err != nil {
			skipped = append(skipped, p)
			continue
		}
		seen[p.CourseID] = struct{}{}
		cell := g.weeks[p.Week][p.Day]
		cell[p.SlotID] = append(cell[p.SlotID], p.CourseID)
	}
	return g, skipped
}

func (g *Grid) emptyWeek() weekCells {
	week := make(weekCells, len(Days))
	for _, d := range Days {
		cells := make(dayCells, len(g.slots))
		for _, s := range g.slots {
			cells[s.ID] = []string{}
		}
		week[d] = cells
	}
	return week
}

func (g *Grid) clone() *Grid {
	out := &Grid{slots: g.slots, weeks: make(map[int]weekCells, len(g.weeks))}
	for w, week := range g.weeks {
		copyWeek := make(weekCells, len(week))
		for d, cells := range week {
			copyCells := make(dayCells, len(cells))
			for id, courses := range cells {
				copyCells[id] = append([]string{}, courses...)
			}
			copyWeek[d] = copyCells
		}
		out.weeks[w] = copyWeek
	}
	return out
}

// Slots returns the slot sequence the grid is built over.
func (g *Grid) Slots() []TimeSlot {
	return append([]TimeSlot(nil), g.slots...)
}

// Weeks returns the week numbers in ascending order.
func (g *Grid) Weeks() []int {
	weeks := make([]int, 0, len(g.weeks))
	for w := range g.weeks {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)
	return weeks
}

// HasWeek reports whether the grid holds the week.
func (g *Grid) HasWeek(week int) bool {
	_, ok := g.weeks[week]
	return ok
}

// SlotIndex returns the position of a slot id, or -1.
func (g *Grid) SlotIndex(slotID string) int {
	for i, s := range g.slots {
		if s.ID == slotID {
			return i
		}
	}
	return -1
}

// CanStartAt reports whether an exam may start in the slot.
func (g *Grid) CanStartAt(slotID string) bool {
	idx := g.SlotIndex(slotID)
	return idx >= 0 && idx <= len(g.slots)-ExamSpan
}

// Courses returns a copy of the course ids starting in the cell. Unknown
// cells read as empty.
func (g *Grid) Courses(week int, day Day, slotID string) []string {
	cell := g.weeks[week][day][slotID]
	return append([]string{}, cell...)
}

// Locate finds the cell holding a course.
func (g *Grid) Locate(courseID string) (Placement, bool) {
	for _, p := range g.Cells() {
		if p.CourseID == courseID {
			return p, true
		}
	}
	return Placement{}, false
}

// Cells flattens the grid into placements in week, day, slot, list order.
func (g *Grid) Cells() []Placement {
	out := make([]Placement, 0)
	position := 0
	for _, w := range g.Weeks() {
		for _, d := range Days {
			for _, s := range g.slots {
				for _, id := range g.weeks[w][d][s.ID] {
					out = append(out, Placement{CourseID: id, Week: w, Day: d, SlotID: s.ID, Position: position})
					position++
				}
			}
		}
	}
	return out
}

// ScheduledCourseIDs returns the set of course ids placed anywhere.
func (g *Grid) ScheduledCourseIDs() map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range g.Cells() {
		out[p.CourseID] = struct{}{}
	}
	return out
}

func (g *Grid) validateTarget(week int, day Day, slotID string) error {
	if _, ok := g.weeks[week]; !ok {
		return ErrUnknownWeek
	}
	if DayIndex(day) < 0 {
		return ErrUnknownDay
	}
	if g.SlotIndex(slotID) < 0 {
		return ErrUnknownSlot
	}
	if !g.CanStartAt(slotID) {
		return ErrInvalidStartSlot
	}
	return nil
}

// Place moves a course to the target cell, removing it from wherever it was.
// The course always ends up last in the target cell, so placing it again on
// its own cell moves it behind the cell's other courses.
func (g *Grid) Place(courseID string, week int, day Day, slotID string) (*Grid, error) {
	if err := g.validateTarget(week, day, slotID); err != nil {
		return g, err
	}
	out := g.clone()
	for _, wk := range out.weeks {
		for _, cells := range wk {
			for id, courses := range cells {
				cells[id] = without(courses, courseID)
			}
		}
	}
	target := out.weeks[week][day]
	if !contains(target[slotID], courseID) {
		target[slotID] = append(target[slotID], courseID)
	}
	return out, nil
}

// Remove drops a course from exactly one cell. Other cells are untouched.
func (g *Grid) Remove(week int, day Day, slotID, courseID string) *Grid {
	cells, ok := g.weeks[week][day]
	if !ok {
		return g
	}
	if _, ok := cells[slotID]; !ok {
		return g
	}
	out := g.clone()
	out.weeks[week][day][slotID] = without(out.weeks[week][day][slotID], courseID)
	return out
}

// Reshape rebuilds the grid over a new slot sequence. Cells whose slot id
// survives and can still start an exam keep their courses; the rest are
// dropped and their ids returned.
func (g *Grid) Reshape(slots []TimeSlot) (*Grid, []string) {
	out := &Grid{slots: append([]TimeSlot(nil), slots...), weeks: make(map[int]weekCells, len(g.weeks))}
	dropped := make([]string, 0)
	for _, w := range g.Weeks() {
		week := out.emptyWeek()
		for _, d := range Days {
			for _, s := range g.slots {
				courses := g.weeks[w][d][s.ID]
				if len(courses) == 0 {
					continue
				}
				if _, ok := week[d][s.ID]; ok && out.CanStartAt(s.ID) {
					week[d][s.ID] = append([]string{}, courses...)
					continue
				}
				dropped = append(dropped, courses...)
			}
		}
		out.weeks[w] = week
	}
	return out, dropped
}

// AddWeek appends week max+1.
func (g *Grid) AddWeek() (*Grid, int, error) {
	weeks := g.Weeks()
	next := 1
	if len(weeks) > 0 {
		next = weeks[len(weeks)-1] + 1
	}
	if len(weeks) >= MaxWeeks || next > MaxWeeks {
		return g, 0, ErrMaxWeeks
	}
	out := g.clone()
	out.weeks[next] = out.emptyWeek()
	return out, next, nil
}

// Reset empties every cell, keeping weeks and slots.
func (g *Grid) Reset() *Grid {
	return NewGrid(len(g.weeks), g.slots)
}

func without(courses []string, courseID string) []string {
	out := make([]string, 0, len(courses))
	for _, id := range courses {
		if id != courseID {
			out = append(out, id)
		}
	}
	return out
}

func contains(courses []string, courseID string) bool {
	for _, id := range courses {
		if id == courseID {
			return true
		}
	}
	return false
}
