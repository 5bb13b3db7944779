package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/pkg/database"
)

// TimetableRepository persists the grid settings row and the placements.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// GetSettings returns the stored settings, or nil when the row does not exist.
func (r *TimetableRepository) GetSettings(ctx context.Context) (*models.TimetableSettings, error) {
	const query = `SELECT slot_interval_minutes, start_hour, end_hour, students_per_room, invigilator_pool_size, week_count, start_date, updated_at
FROM timetable_settings WHERE id = 1`
	var settings models.TimetableSettings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get timetable settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings upserts the single settings row.
func (r *TimetableRepository) SaveSettings(ctx context.Context, exec sqlx.ExtContext, settings *models.TimetableSettings) error {
	if settings == nil {
		return fmt.Errorf("settings payload is nil")
	}
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO timetable_settings (id, slot_interval_minutes, start_hour, end_hour, students_per_room, invigilator_pool_size, week_count, start_date, updated_at)
VALUES (1, :slot_interval_minutes, :start_hour, :end_hour, :students_per_room, :invigilator_pool_size, :week_count, :start_date, :updated_at)
ON CONFLICT (id) DO UPDATE SET slot_interval_minutes = EXCLUDED.slot_interval_minutes, start_hour = EXCLUDED.start_hour,
end_hour = EXCLUDED.end_hour, students_per_room = EXCLUDED.students_per_room, invigilator_pool_size = EXCLUDED.invigilator_pool_size,
week_count = EXCLUDED.week_count, start_date = EXCLUDED.start_date, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, settings); err != nil {
		return fmt.Errorf("save timetable settings: %w", err)
	}
	return nil
}

// ListAssignments returns every placement in insertion order.
func (r *TimetableRepository) ListAssignments(ctx context.Context) ([]models.ExamAssignment, error) {
	const query = `SELECT course_id, week, day, slot_id, position, created_at FROM exam_assignments ORDER BY position ASC`
	var rows []models.ExamAssignment
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list exam assignments: %w", err)
	}
	return rows, nil
}

// ReplaceAssignments rewrites the placement table from the given rows.
func (r *TimetableRepository) ReplaceAssignments(ctx context.Context, exec sqlx.ExtContext, rows []models.ExamAssignment) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM exam_assignments`); err != nil {
		return fmt.Errorf("clear exam assignments: %w", err)
	}
	now := time.Now().UTC()
	const query = `INSERT INTO exam_assignments (course_id, week, day, slot_id, position, created_at)
VALUES (:course_id, :week, :day, :slot_id, :position, :created_at)`
	for i := range rows {
		row := rows[i]
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, row); err != nil {
			return fmt.Errorf("insert exam assignment %s: %w", row.CourseID, err)
		}
	}
	return nil
}

// SaveState writes settings and placements atomically.
func (r *TimetableRepository) SaveState(ctx context.Context, settings *models.TimetableSettings, rows []models.ExamAssignment) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if settings != nil {
			if err := r.SaveSettings(ctx, tx, settings); err != nil {
				return err
			}
		}
		return r.ReplaceAssignments(ctx, tx, rows)
	})
}
