package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var enrollmentRowColumns = []string{"id", "student_id", "class_id", "semester", "status", "enrolled_at", "completed_at", "completion_note", "withdraw_reason", "created_at", "updated_at"}

func TestEnrollmentRepositoryFindByIDForUpdateUsesExecutor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows(enrollmentRowColumns).
		AddRow("enr-1", "stu-1", "class-1", "2026-S1", "studying", time.Now(), nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(rows)
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	enrollment, err := repo.FindByIDForUpdate(context.Background(), tx, "enr-1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, models.EnrollmentStatusStudying, enrollment.Status)
	assert.Equal(t, "2026-S1", enrollment.Semester)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), nil, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsInStatuses(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND status = ANY($3) LIMIT 1")
	mock.ExpectQuery(query).
		WithArgs("stu-1", "class-1", pq.Array([]string{"studying", "not_been_updated"})).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectQuery(query).
		WithArgs("stu-2", "class-1", pq.Array([]string{"studying", "not_been_updated"})).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsInStatuses(context.Background(), nil, "stu-1", "class-1", models.DuplicateBlockingStatuses)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsInStatuses(context.Background(), nil, "stu-2", "class-1", models.DuplicateBlockingStatuses)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountByClassUsesCapacitySet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND status = ANY($2)")).
		WithArgs("class-1", pq.Array([]string{"studying", "not_been_updated", "withdrawn"})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountByClass(context.Background(), nil, "class-1", models.CapacityOccupyingStatuses)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListScheduledByStudentExcludesClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"enrollment_id", "class_id", "class_name", "recurring_schedule"}).
		AddRow("enr-1", "class-a", "Math A", []byte(`[{"day":"monday","startTime":"09:00","endTime":"10:30"}]`))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1 AND e.status = ANY($2) AND e.class_id <> $3 ORDER BY e.enrolled_at")).
		WithArgs("stu-1", pq.Array([]string{"studying"}), "class-old").
		WillReturnRows(rows)

	list, err := repo.ListScheduledByStudent(context.Background(), nil, "stu-1", models.ScheduleBlockingStatuses, "class-old")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Math A", list[0].ClassName)
	assert.Contains(t, string(list[0].RecurringSchedule), "monday")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "stu-1", ClassID: "class-1", Semester: "2026-S1"}
	require.NoError(t, repo.Create(context.Background(), nil, enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusStudying, enrollment.Status)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateKeepsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "enrollments_blocking_unique"})

	err := repo.Create(context.Background(), nil, &models.Enrollment{StudentID: "stu-1", ClassID: "class-1"})
	require.Error(t, err)
	var pqErr *pq.Error
	require.True(t, errors.As(err, &pqErr))
	assert.Equal(t, "enrollments_blocking_unique", pqErr.Constraint)
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	note := "moved abroad"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, completed_at = $3, completion_note = $4, withdraw_reason = $5, updated_at = $6 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusStopped, now, note, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), nil, &models.Enrollment{
		ID:             "enr-1",
		Status:         models.EnrollmentStatusStopped,
		CompletedAt:    &now,
		CompletionNote: &note,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("enr-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), nil, "enr-x")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	columns := append(append([]string{}, enrollmentRowColumns...), "student_name", "class_name", "class_status")
	rows := sqlmock.NewRows(columns).
		AddRow("enr-1", "stu-1", "class-1", "2026-S1", "studying", time.Now(), nil, nil, nil, time.Now(), time.Now(), "Lan", "Math A", "active")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.status = $2 ORDER BY s.full_name ASC LIMIT 20 OFFSET 0")).
		WithArgs("class-1", models.EnrollmentStatusStudying).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("class-1", models.EnrollmentStatusStudying).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		ClassID:   "class-1",
		Status:    models.EnrollmentStatusStudying,
		SortBy:    "student_name",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "Math A", list[0].ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
