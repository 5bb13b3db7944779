package ingest

import (
	"io"
	"sort"
	"strings"

	"github.com/noah-isme/exam-timetable-api/internal/models"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
)

const (
	defaultCourseCode  = "Course"
	defaultCourseTitle = "Untitled Course"
)

// enrollmentRow carries every header alias seen in registrar exports. Missing
// columns stay empty.
type enrollmentRow struct {
	SpridenID        string `csv:"SPRIDEN_ID"`
	StudentIDSnake   string `csv:"Student_ID"`
	StudentIDSpaced  string `csv:"Student ID"`
	StudentName      string `csv:"STUDENT_NAME"`
	StudentNameSnake string `csv:"Student_Name"`
	StudentNameSpace string `csv:"Student Name"`

	CFInstructor     string `csv:"CF_INSTRUCTOR"`
	InstructorSnake  string `csv:"Instructor_Name"`
	Instructor       string `csv:"Instructor"`
	InstructorSpaced string `csv:"Instructor Name"`

	CatalogCode      string `csv:"SCBCRSE_SUBJ_CODE_SCBCRSE_CRSE"`
	SubjectCode      string `csv:"SSBSECT_SUBJ_CODE"`
	CourseNumber     string `csv:"SSBSECT_CRSE_NUMB"`
	CourseCodeSnake  string `csv:"Course_Code"`
	CourseCodeSpaced string `csv:"Course Code"`

	CatalogTitle      string `csv:"SCBCRSE_TITLE"`
	CourseTitleSnake  string `csv:"Course_Title"`
	CourseTitleSpaced string `csv:"Course Title"`

	SequenceNumber string `csv:"SSBSECT_SEQ_NUMB"`
	Section        string `csv:"Section"`
	SectionCRN     string `csv:"SSBSECT_CRN"`
	CRN            string `csv:"CRN"`
}

func (r enrollmentRow) studentID() string {
	return coalesce(r.SpridenID, r.StudentIDSnake, r.StudentIDSpaced)
}

func (r enrollmentRow) studentName() string {
	return coalesce(r.StudentName, r.StudentNameSnake, r.StudentNameSpace)
}

func (r enrollmentRow) instructor() string {
	return coalesce(r.CFInstructor, r.InstructorSnake, r.Instructor, r.InstructorSpaced)
}

func (r enrollmentRow) courseCode() string {
	if code := clean(r.CatalogCode); code != "" {
		return code
	}
	subject, number := clean(r.SubjectCode), clean(r.CourseNumber)
	if subject != "" && number != "" {
		return subject + "-" + number
	}
	if code := coalesce(r.CourseCodeSnake, r.CourseCodeSpaced); code != "" {
		return code
	}
	return defaultCourseCode
}

func (r enrollmentRow) courseTitle() string {
	return coalesce(r.CatalogTitle, r.CourseTitleSnake, r.CourseTitleSpaced)
}

func (r enrollmentRow) section() string {
	return coalesce(r.SequenceNumber, r.Section)
}

func (r enrollmentRow) crn() string {
	return coalesce(r.SectionCRN, r.CRN)
}

// Result is a parsed enrollment file.
type Result struct {
	Courses   []models.Course
	Directory models.StudentDirectory
	// Rows counts data rows read; Skipped counts rows without a student id.
	Rows    int
	Skipped int
}

// StudentCount is the number of distinct students in the directory.
func (r Result) StudentCount() int {
	return len(r.Directory)
}

// section is one registration section before courses are merged by code.
type section struct {
	id          string
	crn         string
	code        string
	title       string
	number      string
	students    []models.Student
	byID        map[string]int
	instructors []string
}

func (s *section) addInstructor(name string) {
	if name == "" {
		return
	}
	for _, existing := range s.instructors {
		if existing == name {
			return
		}
	}
	s.instructors = append(s.instructors, name)
}

func (s *section) primaryInstructor() string {
	if len(s.instructors) == 0 {
		return ""
	}
	return s.instructors[0]
}

// ParseEnrollments reads one enrollment export, one row per student per
// section, and merges sections sharing a course code into one examinable
// course.
func ParseEnrollments(r io.Reader) (Result, error) {
	var rows []enrollmentRow
	if err := unmarshal(r, &rows); err != nil {
		return Result{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read the provided file")
	}
	if len(rows) == 0 {
		return Result{}, appErrors.ErrEmptyUpload
	}

	result := Result{Rows: len(rows), Directory: models.StudentDirectory{}}
	sections := make(map[string]*section)
	order := make([]string, 0)

	for _, row := range rows {
		studentID := row.studentID()
		if studentID == "" {
			result.Skipped++
			continue
		}
		studentName := row.studentName()
		if studentName == "" {
			studentName = studentID
		}
		result.Directory[studentID] = studentName

		instructor := row.instructor()
		code := row.courseCode()
		title := row.courseTitle()
		number := row.section()
		crn := row.crn()

		id := crn
		if id == "" {
			id = code
			if number != "" {
				id = code + "-" + number
			}
		}

		sec, ok := sections[id]
		if !ok {
			sec = &section{id: id, code: code, title: firstNonEmpty(title, code), byID: make(map[string]int)}
			sections[id] = sec
			order = append(order, id)
		}
		sec.code = code
		if title != "" {
			sec.title = title
		}
		if number != "" && sec.number == "" {
			sec.number = number
		}
		if crn != "" {
			sec.crn = crn
		}
		sec.addInstructor(instructor)

		studentCRN := firstNonEmpty(crn, id)
		if idx, seen := sec.byID[studentID]; seen {
			existing := &sec.students[idx]
			if existing.Name == "" {
				existing.Name = studentName
			}
			if existing.CRN == "" {
				existing.CRN = studentCRN
			}
			if existing.Instructor == "" {
				existing.Instructor = instructor
			}
			continue
		}
		sec.byID[studentID] = len(sec.students)
		sec.students = append(sec.students, models.Student{ID: studentID, Name: studentName, CRN: studentCRN, Instructor: instructor})
	}

	if len(order) == 0 {
		return Result{}, appErrors.ErrNoCourses
	}

	parsed := make([]*section, 0, len(order))
	for _, id := range order {
		sec := sections[id]
		sortStudents(sec.students)
		parsed = append(parsed, sec)
	}
	result.Courses = groupByCode(parsed, result.Directory)
	return result, nil
}

type courseGroup struct {
	course      models.Course
	sections    map[string]struct{}
	crns        map[string]struct{}
	instructors map[string]struct{}
	students    map[string]int
	details     map[string]*models.CRNDetail
}

func groupByCode(sections []*section, directory models.StudentDirectory) []models.Course {
	groups := make(map[string]*courseGroup)
	order := make([]string, 0)

	for _, sec := range sections {
		key := firstNonEmpty(sec.code, sec.id)
		g, ok := groups[key]
		if !ok {
			g = &courseGroup{
				course:      models.Course{ID: key, Code: firstNonEmpty(sec.code, key), Title: sec.title},
				sections:    make(map[string]struct{}),
				crns:        make(map[string]struct{}),
				instructors: make(map[string]struct{}),
				students:    make(map[string]int),
				details:     make(map[string]*models.CRNDetail),
			}
			groups[key] = g
			order = append(order, key)
		}

		addTo(g.sections, sec.number)
		addTo(g.crns, sec.crn)
		for _, name := range sec.instructors {
			addTo(g.instructors, name)
		}

		crnKey := firstNonEmpty(sec.crn, sec.id)
		addTo(g.crns, crnKey)
		detail, ok := g.details[crnKey]
		if !ok {
			detail = &models.CRNDetail{CRN: crnKey, Instructor: sec.primaryInstructor()}
			g.details[crnKey] = detail
		}
		if detail.Instructor == "" {
			detail.Instructor = sec.primaryInstructor()
		}

		for _, st := range sec.students {
			if st.ID == "" {
				continue
			}
			entry := models.Student{
				ID:   st.ID,
				Name: firstNonEmpty(st.Name, directory[st.ID], st.ID),
				CRN:  firstNonEmpty(st.CRN, crnKey),
			}
			detail.Students = append(detail.Students, entry)

			if idx, seen := g.students[st.ID]; seen {
				existing := &g.course.Students[idx]
				if existing.CRN == "" {
					existing.CRN = entry.CRN
				}
				if existing.Name == "" {
					existing.Name = entry.Name
				}
				continue
			}
			g.students[st.ID] = len(g.course.Students)
			g.course.Students = append(g.course.Students, entry)
		}
	}

	out := make([]models.Course, 0, len(order))
	for _, key := range order {
		g := groups[key]
		course := g.course
		course.Sections = sortedSet(g.sections)
		course.CRNs = sortedSet(g.crns)
		course.Instructors = sortedSet(g.instructors)
		course.Students = append(models.StudentList(nil), course.Students...)
		sortStudents(course.Students)

		details := make(models.CRNDetailList, 0, len(g.details))
		for _, d := range g.details {
			d.Students = sortForExport(d.Students)
			details = append(details, *d)
		}
		sort.Slice(details, func(i, j int) bool { return details[i].CRN < details[j].CRN })
		course.CRNDetails = details
		out = append(out, course)
	}
	return out
}

// sortStudents orders by case-folded name, then id.
func sortStudents(students []models.Student) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := strings.ToLower(students[i].Name), strings.ToLower(students[j].Name)
		if a != b {
			return a < b
		}
		return students[i].ID < students[j].ID
	})
}

// sortForExport orders by name only when both names are present, otherwise
// by id, matching how rosters list students.
func sortForExport(students []models.Student) []models.Student {
	out := append([]models.Student(nil), students...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != "" && b != "" && a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func addTo(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func clean(v string) string {
	return strings.TrimSpace(v)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = clean(v); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
