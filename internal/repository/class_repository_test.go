package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
)

var classRowColumns = []string{"id", "name", "max_students", "recurring_schedule", "status", "teacher_id", "start_date", "end_date", "created_at", "updated_at"}

func TestClassRepositoryFindByIDForUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows(classRowColumns).
		AddRow("class-1", "IELTS 6.5", 20, []byte(`{"slots":[]}`), "active", "teacher-1", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1 FOR UPDATE")).
		WithArgs("class-1").
		WillReturnRows(rows)

	class, err := repo.FindByIDForUpdate(context.Background(), nil, "class-1")
	require.NoError(t, err)
	require.NotNil(t, class.MaxStudents)
	assert.Equal(t, 20, *class.MaxStudents)
	assert.True(t, class.HasTeacher())
	assert.True(t, class.Status.Enrollable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListStartingOn(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	day := time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(classRowColumns).
		AddRow("class-1", "Kids A", nil, []byte(`[]`), "ready", nil, day, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE start_date = $1::date AND status = ANY($2) ORDER BY name")).
		WithArgs("2026-10-22", pq.Array([]string{"ready", "active"})).
		WillReturnRows(rows)

	classes, err := repo.ListStartingOn(context.Background(), day, []models.ClassStatus{models.ClassStatusReady, models.ClassStatusActive})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Nil(t, classes[0].MaxStudents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListEndingOn(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE end_date = $1::date")).
		WithArgs("2026-10-18", pq.Array([]string{"active"})).
		WillReturnRows(sqlmock.NewRows(classRowColumns))

	classes, err := repo.ListEndingOn(context.Background(), day, []models.ClassStatus{models.ClassStatusActive})
	require.NoError(t, err)
	assert.Empty(t, classes)
	assert.NoError(t, mock.ExpectationsWereMet())
}
