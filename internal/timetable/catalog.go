package timetable

import (
	"strings"

	"github.com/noah-isme/exam-timetable-api/internal/models"
)

// Catalog indexes courses by id for the engine. Lookups of unknown ids miss
// silently so dangling grid entries are skipped.
type Catalog struct {
	courses   map[string]*models.Course
	order     []string
	directory models.StudentDirectory
}

// NewCatalog indexes the course list. Later duplicates of an id are ignored.
func NewCatalog(courses []models.Course, directory models.StudentDirectory) *Catalog {
	c := &Catalog{
		courses:   make(map[string]*models.Course, len(courses)),
		order:     make([]string, 0, len(courses)),
		directory: directory,
	}
	if c.directory == nil {
		c.directory = models.StudentDirectory{}
	}
	for i := range courses {
		course := &courses[i]
		if _, exists := c.courses[course.ID]; exists {
			continue
		}
		c.courses[course.ID] = course
		c.order = append(c.order, course.ID)
	}
	return c
}

// Course looks up a course by id.
func (c *Catalog) Course(id string) (*models.Course, bool) {
	if c == nil {
		return nil, false
	}
	course, ok := c.courses[id]
	return course, ok
}

// Resolve maps ids to courses, skipping unknown ones.
func (c *Catalog) Resolve(ids []string) []*models.Course {
	out := make([]*models.Course, 0, len(ids))
	for _, id := range ids {
		if course, ok := c.Course(id); ok {
			out = append(out, course)
		}
	}
	return out
}

// Courses returns the courses in catalog order.
func (c *Catalog) Courses() []*models.Course {
	if c == nil {
		return nil
	}
	return c.Resolve(c.order)
}

// Len is the number of distinct courses.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Directory exposes the student directory.
func (c *Catalog) Directory() models.StudentDirectory {
	if c == nil {
		return models.StudentDirectory{}
	}
	return c.directory
}

// StudentName returns the directory name for a student.
func (c *Catalog) StudentName(id string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.directory[id])
}

// StudentLabel renders a student reference for conflict messages.
func (c *Catalog) StudentLabel(id string) string {
	return FormatStudentReference(id, c.StudentName(id))
}

// FormatStudentReference renders "{id} {first} {last}" from a full name. A
// name whose first and last parts match collapses to "{id} {first}"; no name
// yields the bare id.
func FormatStudentReference(id, name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return id
	}
	first := parts[0]
	last := parts[len(parts)-1]
	if first == last {
		return id + " " + first
	}
	return id + " " + first + " " + last
}

// ResolveStudentName prefers the student's own name, then the directory.
func ResolveStudentName(student models.Student, directory models.StudentDirectory) string {
	if name := strings.TrimSpace(student.Name); name != "" {
		return name
	}
	return strings.TrimSpace(directory[student.ID])
}
