package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-timetable-api/internal/models"
)

func TestTimetableRepositoryGetSettings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	start := time.Date(2026, time.October, 26, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"slot_interval_minutes", "start_hour", "end_hour", "students_per_room", "invigilator_pool_size", "week_count", "start_date", "updated_at"}).
		AddRow(30, 8, 17, 25, 15, 2, start, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_settings WHERE id = 1")).WillReturnRows(rows)

	settings, err := repo.GetSettings(context.Background())
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, 2, settings.WeekCount)
	assert.Equal(t, start, settings.StartDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryGetSettingsMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_settings WHERE id = 1")).WillReturnError(sql.ErrNoRows)
	settings, err := repo.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestTimetableRepositoryListAssignments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows([]string{"course_id", "week", "day", "slot_id", "position", "created_at"}).
		AddRow("MATH-101", 1, "Monday", "09:00", 0, time.Now()).
		AddRow("PHYS-201", 1, "Tuesday", "13:00", 1, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_id, week, day, slot_id, position, created_at FROM exam_assignments ORDER BY position ASC")).
		WillReturnRows(rows)

	list, err := repo.ListAssignments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Tuesday", list[1].Day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositorySaveState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_settings")).
		WithArgs(60, 8, 17, 25, 15, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exam_assignments")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exam_assignments")).
		WithArgs("MATH-101", 1, "Monday", "09:00", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	settings := &models.TimetableSettings{SlotIntervalMinutes: 60, StartHour: 8, EndHour: 17, StudentsPerRoom: 25, InvigilatorPoolSize: 15, WeekCount: 1}
	err := repo.SaveState(context.Background(), settings, []models.ExamAssignment{
		{CourseID: "MATH-101", Week: 1, Day: "Monday", SlotID: "09:00", Position: 0},
	})
	require.NoError(t, err)
	assert.False(t, settings.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
