package timetable

import (
	"fmt"
	"strings"

	"github.com/noah-isme/exam-timetable-api/internal/models"
)

// MaxExamsPerDay is the largest number of exams a student may sit in one day
// before it is reported as an overload.
const MaxExamsPerDay = 2

// ConflictKind classifies a finding.
type ConflictKind string

const (
	ConflictOverlap  ConflictKind = "overlap"
	ConflictCapacity ConflictKind = "capacity"
	ConflictOverload ConflictKind = "overload"
)

// Conflict is one message attached to one cell.
type Conflict struct {
	Kind    ConflictKind `json:"kind"`
	Message string       `json:"message"`
	Week    int          `json:"week"`
	Day     Day          `json:"day"`
	SlotID  string       `json:"slotId"`
}

// WeekConflicts maps day and slot id to the cell's messages.
type WeekConflicts map[Day]map[string][]string

// ConflictReport is the advisory outcome of a detection run.
type ConflictReport struct {
	Overall  []string              `json:"overall"`
	ByWeek   map[int]WeekConflicts `json:"byWeek"`
	Findings []Conflict            `json:"findings"`
}

// Cell returns the messages of one cell, never nil.
func (r ConflictReport) Cell(week int, day Day, slotID string) []string {
	msgs := r.ByWeek[week][day][slotID]
	if msgs == nil {
		return []string{}
	}
	return msgs
}

type conflictCollector struct {
	report  ConflictReport
	overall map[string]struct{}
	week    int
	cells   WeekConflicts
}

func (c *conflictCollector) add(kind ConflictKind, day Day, slotID, message string) {
	if _, seen := c.overall[message]; !seen {
		c.overall[message] = struct{}{}
		c.report.Overall = append(c.report.Overall, message)
	}
	cell := c.cells[day][slotID]
	for _, existing := range cell {
		if existing == message {
			return
		}
	}
	c.cells[day][slotID] = append(cell, message)
	c.report.Findings = append(c.report.Findings, Conflict{Kind: kind, Message: message, Week: c.week, Day: day, SlotID: slotID})
}

// DetectConflicts reports overlapping exams, daily overloads and staffing
// shortfalls across every week. Nothing it finds blocks a placement.
func DetectConflicts(g *Grid, catalog *Catalog, studentsPerRoom, availableInvigilators int) ConflictReport {
	if availableInvigilators < 0 {
		availableInvigilators = 0
	}
	col := &conflictCollector{
		report: ConflictReport{
			Overall:  []string{},
			ByWeek:   make(map[int]WeekConflicts, len(g.weeks)),
			Findings: []Conflict{},
		},
		overall: make(map[string]struct{}),
	}

	for _, week := range g.Weeks() {
		col.week = week
		col.cells = make(WeekConflicts, len(Days))
		for _, d := range Days {
			cells := make(map[string][]string, len(g.slots))
			for _, s := range g.slots {
				cells[s.ID] = []string{}
			}
			col.cells[d] = cells
		}
		col.report.ByWeek[week] = col.cells

		daily := newDailyCounter()
		for _, day := range Days {
			for i, slot := range g.slots {
				starting := catalog.Resolve(g.Courses(week, day, slot.ID))
				var carried []*models.Course
				if i > 0 {
					carried = catalog.Resolve(g.Courses(week, day, g.slots[i-1].ID))
				}
				for _, course := range starting {
					for _, st := range course.Students {
						daily.add(st.ID, day)
					}
				}

				active := newStudentCourses()
				for _, course := range starting {
					active.addCourse(course)
				}
				for _, course := range carried {
					active.addCourse(course)
				}
				if active.len() == 0 {
					continue
				}

				capacity := uniqueStudents(starting)
				if len(capacity) == 0 {
					capacity = uniqueStudents(carried)
				}
				if len(capacity) > 0 {
					required := RoomsNeeded(len(capacity), studentsPerRoom) * InvigilatorsPerRoom
					if required > availableInvigilators {
						col.add(ConflictCapacity, day, slot.ID, fmt.Sprintf(
							"Week %d: %s %s requires %d invigilators but only %d available.",
							week, day, slot.Label, required, availableInvigilators))
					}
				}

				for _, studentID := range active.order {
					labels := active.labels[studentID]
					if len(labels) < 2 {
						continue
					}
					col.add(ConflictOverlap, day, slot.ID, fmt.Sprintf(
						"Week %d: Student %s has overlapping exams (%s) on %s at %s",
						week, catalog.StudentLabel(studentID), strings.Join(labels, ", "), day, slot.Label))
				}
			}
		}

		for _, studentID := range daily.order {
			for _, day := range Days {
				total := daily.counts[studentID][day]
				if total <= MaxExamsPerDay {
					continue
				}
				message := fmt.Sprintf("Week %d: Student %s is scheduled for %d exams on %s",
					week, catalog.StudentLabel(studentID), total, day)
				for _, slot := range g.slots {
					for _, course := range catalog.Resolve(g.Courses(week, day, slot.ID)) {
						if hasStudent(course, studentID) {
							col.add(ConflictOverload, day, slot.ID, message)
							break
						}
					}
				}
			}
		}
	}
	return col.report
}

// studentCourses records, per active student, the distinct course labels in
// first-seen order.
type studentCourses struct {
	order  []string
	labels map[string][]string
}

func newStudentCourses() *studentCourses {
	return &studentCourses{labels: make(map[string][]string)}
}

func (s *studentCourses) addCourse(course *models.Course) {
	label := course.Label()
	for _, st := range course.Students {
		existing, seen := s.labels[st.ID]
		if !seen {
			s.order = append(s.order, st.ID)
		}
		if !contains(existing, label) {
			s.labels[st.ID] = append(existing, label)
		}
	}
}

func (s *studentCourses) len() int {
	return len(s.order)
}

type dailyCounter struct {
	order  []string
	counts map[string]map[Day]int
}

func newDailyCounter() *dailyCounter {
	return &dailyCounter{counts: make(map[string]map[Day]int)}
}

func (d *dailyCounter) add(studentID string, day Day) {
	perDay, ok := d.counts[studentID]
	if !ok {
		perDay = make(map[Day]int)
		d.counts[studentID] = perDay
		d.order = append(d.order, studentID)
	}
	perDay[day]++
}

func uniqueStudents(courses []*models.Course) map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range courses {
		for _, st := range c.Students {
			out[st.ID] = struct{}{}
		}
	}
	return out
}

func hasStudent(course *models.Course, studentID string) bool {
	for _, st := range course.Students {
		if st.ID == studentID {
			return true
		}
	}
	return false
}
