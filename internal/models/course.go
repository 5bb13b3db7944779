package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Student is an enrolled student as seen by a course.
type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CRN        string `json:"crn,omitempty"`
	Instructor string `json:"instructor,omitempty"`
}

// CRNDetail groups the students of one section registration number.
type CRNDetail struct {
	CRN        string    `json:"crn"`
	Instructor string    `json:"instructor"`
	Students   []Student `json:"students"`
}

// Course is one examinable course, possibly merged from several sections.
type Course struct {
	ID          string        `db:"id" json:"id"`
	Code        string        `db:"code" json:"code"`
	Title       string        `db:"title" json:"title"`
	Sections    StringList    `db:"sections" json:"sections"`
	CRNs        StringList    `db:"crns" json:"crns"`
	Instructors StringList    `db:"instructors" json:"instructors"`
	Students    StudentList   `db:"students" json:"students"`
	CRNDetails  CRNDetailList `db:"crn_details" json:"crnDetails"`
	ImportID    string        `db:"import_id" json:"importId,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}

// Label is the display label used in conflict messages.
func (c Course) Label() string {
	switch {
	case c.Code != "":
		return c.Code
	case c.Title != "":
		return c.Title
	default:
		return c.ID
	}
}

// PrimaryInstructor returns the first non-empty instructor name.
func (c Course) PrimaryInstructor() string {
	for _, name := range c.Instructors {
		if strings.TrimSpace(name) != "" {
			return name
		}
	}
	return ""
}

// StudentDirectory maps student id to display name.
type StudentDirectory map[string]string

// DirectoryEntry is a persisted directory row.
type DirectoryEntry struct {
	StudentID string `db:"student_id" json:"studentId"`
	Name      string `db:"name" json:"name"`
}

// CatalogImport records one ingestion batch.
type CatalogImport struct {
	ID           string    `db:"id" json:"id"`
	Filename     string    `db:"filename" json:"filename"`
	CourseCount  int       `db:"course_count" json:"courseCount"`
	StudentCount int       `db:"student_count" json:"studentCount"`
	ImportedBy   string    `db:"imported_by" json:"importedBy"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Catalog bundles the course list with the student directory.
type Catalog struct {
	Courses   []Course         `json:"courses"`
	Directory StudentDirectory `json:"directory"`
}

// StringList is persisted as a JSONB array.
type StringList []string

// Value marshals the list for persistence.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return marshalJSONColumn([]string(l), "string list")
}

// Scan unmarshals a JSONB array.
func (l *StringList) Scan(value interface{}) error {
	return scanJSONColumn(value, l, "string list")
}

// StudentList is persisted as a JSONB array.
type StudentList []Student

// Value marshals the list for persistence.
func (l StudentList) Value() (driver.Value, error) {
	if l == nil {
		l = StudentList{}
	}
	return marshalJSONColumn([]Student(l), "student list")
}

// Scan unmarshals a JSONB array.
func (l *StudentList) Scan(value interface{}) error {
	return scanJSONColumn(value, l, "student list")
}

// CRNDetailList is persisted as a JSONB array.
type CRNDetailList []CRNDetail

// Value marshals the list for persistence.
func (l CRNDetailList) Value() (driver.Value, error) {
	if l == nil {
		l = CRNDetailList{}
	}
	return marshalJSONColumn([]CRNDetail(l), "crn details")
}

// Scan unmarshals a JSONB array.
func (l *CRNDetailList) Scan(value interface{}) error {
	return scanJSONColumn(value, l, "crn details")
}

func marshalJSONColumn(v interface{}, what string) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", what, err)
	}
	return data, nil
}

func scanJSONColumn(value interface{}, dest interface{}, what string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, what)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return nil
}
