package timetable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/exam-timetable-api/internal/models"
)

// StudentEntry is one seated student.
type StudentEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CRN         string `json:"crn"`
	Instructor  string `json:"instructor"`
	CourseID    string `json:"courseId"`
	CourseCode  string `json:"courseCode"`
	CourseTitle string `json:"courseTitle"`
}

// Room is one filled exam room of a time block.
type Room struct {
	Name         string         `json:"name"`
	Students     []StudentEntry `json:"students"`
	CourseCodes  []string       `json:"courseCodes"`
	CourseTitles []string       `json:"courseTitles"`
	CRNs         []string       `json:"crns"`
	Instructors  []string       `json:"instructors"`
}

// CRNLabel joins the room's CRNs, falling back to its course codes.
func (r Room) CRNLabel() string {
	if len(r.CRNs) > 0 {
		return strings.Join(r.CRNs, ", ")
	}
	return strings.Join(r.CourseCodes, ", ")
}

// CourseCodeLabel joins the room's course codes.
func (r Room) CourseCodeLabel() string {
	return strings.Join(r.CourseCodes, ", ")
}

// CourseTitleLabel joins the room's course titles.
func (r Room) CourseTitleLabel() string {
	return strings.Join(r.CourseTitles, "; ")
}

// InstructorLabel joins the room's instructors.
func (r Room) InstructorLabel() string {
	return strings.Join(r.Instructors, ", ")
}

type roomBuilder struct {
	room        Room
	codes       map[string]struct{}
	titles      map[string]struct{}
	crns        map[string]struct{}
	instructors map[string]struct{}
}

func newRoomBuilder() *roomBuilder {
	return &roomBuilder{
		codes:       make(map[string]struct{}),
		titles:      make(map[string]struct{}),
		crns:        make(map[string]struct{}),
		instructors: make(map[string]struct{}),
	}
}

func (b *roomBuilder) seat(entry StudentEntry, fallbackInstructor string) {
	b.room.Students = append(b.room.Students, entry)
	addNonEmpty(b.codes, entry.CourseCode)
	addNonEmpty(b.titles, entry.CourseTitle)
	addNonEmpty(b.crns, entry.CRN)
	if entry.Instructor != "" {
		addNonEmpty(b.instructors, entry.Instructor)
	} else {
		addNonEmpty(b.instructors, fallbackInstructor)
	}
}

func (b *roomBuilder) build(name string) Room {
	room := b.room
	room.Name = name
	room.CourseCodes = sortedKeys(b.codes)
	room.CourseTitles = sortedKeys(b.titles)
	room.CRNs = sortedKeys(b.crns)
	room.Instructors = sortedKeys(b.instructors)
	return room
}

// PackRooms seats the students of the courses starting in one cell into
// rooms of at most studentsPerRoom, first fit in order. Larger courses are
// seated first, and a room is closed for good once full.
func PackRooms(courses []*models.Course, directory models.StudentDirectory, studentsPerRoom int) []Room {
	if studentsPerRoom < 1 {
		studentsPerRoom = 1
	}
	ordered := append([]*models.Course(nil), courses...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Students) > len(ordered[j].Students)
	})

	builders := make([]*roomBuilder, 0)
	var current *roomBuilder
	for _, course := range ordered {
		if course == nil || len(course.Students) == 0 {
			continue
		}
		entries := seatingOrder(course, directory)
		primary := course.PrimaryInstructor()
		for _, entry := range entries {
			if current == nil || len(current.room.Students) >= studentsPerRoom {
				current = newRoomBuilder()
				builders = append(builders, current)
			}
			current.seat(entry, primary)
		}
	}

	rooms := make([]Room, 0, len(builders))
	for i, b := range builders {
		rooms = append(rooms, b.build(fmt.Sprintf("Room %d", i+1)))
	}
	return rooms
}

// seatingOrder flattens a course into student entries, group by group, each
// group sorted for export and de-duplicated across groups.
func seatingOrder(course *models.Course, directory models.StudentDirectory) []StudentEntry {
	primary := course.PrimaryInstructor()
	groups := []models.CRNDetail(course.CRNDetails)
	if len(groups) == 0 {
		crn := courseCRNString(course)
		if crn == "" {
			crn = course.ID
		}
		groups = []models.CRNDetail{{CRN: crn, Instructor: primary, Students: course.Students}}
	}

	seen := make(map[string]struct{})
	out := make([]StudentEntry, 0, len(course.Students))
	for _, group := range groups {
		instructor := group.Instructor
		if instructor == "" {
			instructor = primary
		}
		for _, st := range SortStudentsForExport(group.Students) {
			id := strings.TrimSpace(st.ID)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			name := ResolveStudentName(st, directory)
			if name == "" {
				name = id
			}
			crn := firstNonEmpty(st.CRN, group.CRN, course.ID)
			out = append(out, StudentEntry{
				ID:          id,
				Name:        name,
				CRN:         crn,
				Instructor:  firstNonEmpty(st.Instructor, instructor),
				CourseID:    course.ID,
				CourseCode:  course.Code,
				CourseTitle: strings.TrimSpace(course.Title),
			})
		}
	}
	return out
}

// SortStudentsForExport orders by case-folded name when both names are
// present and differ, otherwise by id.
func SortStudentsForExport(students []models.Student) []models.Student {
	out := append([]models.Student(nil), students...)
	sort.SliceStable(out, func(i, j int) bool {
		a := strings.ToLower(out[i].Name)
		b := strings.ToLower(out[j].Name)
		if a != "" && b != "" && a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func courseCRNString(course *models.Course) string {
	crns := make([]string, 0, len(course.CRNDetails))
	for _, detail := range course.CRNDetails {
		if detail.CRN != "" {
			crns = append(crns, detail.CRN)
		}
	}
	if len(crns) == 0 {
		crns = append(crns, course.CRNs...)
	}
	return strings.Join(crns, ", ")
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
