package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
)

var alertRowColumns = []string{"id", "alert_type", "title", "message", "severity", "payload", "dedup_key", "is_read", "processed", "triggered_at", "created_at"}

func TestAlertRepositoryFindRecent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	since := time.Now().Add(-72 * time.Hour)
	rows := sqlmock.NewRows(alertRowColumns).
		AddRow("alert-1", "class_starting_soon", "Class starts soon", "msg", "info", []byte(`{"subjectId":"class-1","thresholdKey":"7d@2026-10-22"}`), "k", false, false, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE alert_type = $1 AND payload->>'subjectId' = $2 AND COALESCE(payload->>'thresholdKey', '') = $3 AND triggered_at >= $4")).
		WithArgs(models.AlertTypeClassStartingSoon, "class-1", "7d@2026-10-22", since).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM alerts WHERE alert_type = $1")).
		WillReturnRows(sqlmock.NewRows(alertRowColumns))

	alert, err := repo.FindRecent(context.Background(), models.AlertTypeClassStartingSoon, "class-1", "7d@2026-10-22", since)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "alert-1", alert.ID)

	alert, err = repo.FindRecent(context.Background(), models.AlertTypeClassStartingSoon, "class-2", "7d@2026-10-22", since)
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryInsertDeduplicated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	key := models.AlertDedupKey(models.AlertTypeClassEndingSoon, "class-1", "3d@2026-10-18")
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (dedup_key) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (dedup_key) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first := &models.Alert{AlertType: models.AlertTypeClassEndingSoon, DedupKey: &key, Payload: types.JSONText(`{"subjectId":"class-1"}`)}
	inserted, err := repo.InsertDeduplicated(context.Background(), first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, first.ID)

	second := &models.Alert{AlertType: models.AlertTypeClassEndingSoon, DedupKey: &key}
	inserted, err = repo.InsertDeduplicated(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryInsertDeduplicatedRequiresKey(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	_, err := repo.InsertDeduplicated(context.Background(), &models.Alert{AlertType: models.AlertTypeClassEndingSoon})
	assert.Error(t, err)
}

func TestAlertRepositoryListUnread(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	unread := true
	mock.ExpectQuery(regexp.QuoteMeta("FROM alerts WHERE is_read = $1 ORDER BY triggered_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows(alertRowColumns).
			AddRow("alert-1", "new_enrollment_request", "New request", "msg", "info", []byte(`{}`), nil, false, false, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM alerts WHERE is_read = $1")).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	alerts, total, err := repo.List(context.Background(), models.AlertFilter{Unread: &unread})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Nil(t, alerts[0].DedupKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryMarkRead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts SET is_read = TRUE WHERE id = $1")).
		WithArgs("alert-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkRead(context.Background(), "alert-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
