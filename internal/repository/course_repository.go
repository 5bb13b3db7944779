package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/pkg/database"
)

// CourseRepository persists the imported course catalog and student directory.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ReplaceCatalog swaps the whole catalog in one transaction. Existing grid
// placements are cleared because they reference the previous catalog.
func (r *CourseRepository) ReplaceCatalog(ctx context.Context, batch *models.CatalogImport, catalog models.Catalog) error {
	if batch == nil {
		return fmt.Errorf("catalog import is nil")
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM exam_assignments`,
			`DELETE FROM courses`,
			`DELETE FROM student_directory`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("clear catalog: %w", err)
			}
		}

		const importQuery = `INSERT INTO catalog_imports (id, filename, course_count, student_count, imported_by, created_at)
VALUES (:id, :filename, :course_count, :student_count, :imported_by, :created_at)`
		if _, err := sqlx.NamedExecContext(ctx, tx, importQuery, batch); err != nil {
			return fmt.Errorf("insert catalog import: %w", err)
		}

		const courseQuery = `INSERT INTO courses (id, code, title, sections, crns, instructors, students, crn_details, import_id, created_at)
VALUES (:id, :code, :title, :sections, :crns, :instructors, :students, :crn_details, :import_id, :created_at)`
		for i := range catalog.Courses {
			course := catalog.Courses[i]
			course.ImportID = batch.ID
			course.CreatedAt = batch.CreatedAt
			if _, err := sqlx.NamedExecContext(ctx, tx, courseQuery, course); err != nil {
				return fmt.Errorf("insert course %s: %w", course.ID, err)
			}
		}

		const directoryQuery = `INSERT INTO student_directory (student_id, name) VALUES ($1, $2)`
		for _, entry := range directoryEntries(catalog.Directory) {
			if _, err := tx.ExecContext(ctx, directoryQuery, entry.StudentID, entry.Name); err != nil {
				return fmt.Errorf("insert directory entry %s: %w", entry.StudentID, err)
			}
		}
		return nil
	})
}

// List returns every course ordered by code then id.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT id, code, title, sections, crns, instructors, students, crn_details, import_id, created_at
FROM courses ORDER BY code ASC, id ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Directory loads the student id to name mapping.
func (r *CourseRepository) Directory(ctx context.Context) (models.StudentDirectory, error) {
	const query = `SELECT student_id, name FROM student_directory`
	var entries []models.DirectoryEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("load student directory: %w", err)
	}
	directory := make(models.StudentDirectory, len(entries))
	for _, e := range entries {
		directory[e.StudentID] = e.Name
	}
	return directory, nil
}

// Load returns the catalog and directory together.
func (r *CourseRepository) Load(ctx context.Context) (models.Catalog, error) {
	courses, err := r.List(ctx)
	if err != nil {
		return models.Catalog{}, err
	}
	directory, err := r.Directory(ctx)
	if err != nil {
		return models.Catalog{}, err
	}
	return models.Catalog{Courses: courses, Directory: directory}, nil
}

// LatestImport returns the most recent ingestion batch, or nil when nothing
// has been imported yet.
func (r *CourseRepository) LatestImport(ctx context.Context) (*models.CatalogImport, error) {
	const query = `SELECT id, filename, course_count, student_count, imported_by, created_at
FROM catalog_imports ORDER BY created_at DESC LIMIT 1`
	var batch models.CatalogImport
	if err := r.db.GetContext(ctx, &batch, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest catalog import: %w", err)
	}
	return &batch, nil
}

func directoryEntries(directory models.StudentDirectory) []models.DirectoryEntry {
	entries := make([]models.DirectoryEntry, 0, len(directory))
	for id, name := range directory {
		entries = append(entries, models.DirectoryEntry{StudentID: id, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].StudentID < entries[j].StudentID })
	return entries
}
