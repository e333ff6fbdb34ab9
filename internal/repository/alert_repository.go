package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const alertColumns = `id, alert_type, title, message, severity, payload, dedup_key, is_read, processed, triggered_at, created_at`

// AlertRepository persists operator alerts.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// FindRecent returns the newest alert of alertType for the subject and threshold triggered at or after since.
func (r *AlertRepository) FindRecent(ctx context.Context, alertType models.AlertType, subjectID, thresholdKey string, since time.Time) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE alert_type = $1 AND payload->>'subjectId' = $2 AND COALESCE(payload->>'thresholdKey', '') = $3 AND triggered_at >= $4 ORDER BY triggered_at DESC LIMIT 1`
	var alert models.Alert
	if err := r.db.GetContext(ctx, &alert, query, alertType, subjectID, thresholdKey, since); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find recent alert: %w", err)
	}
	return &alert, nil
}

// InsertDeduplicated inserts the alert unless its dedup key already exists. It reports whether a row was written.
func (r *AlertRepository) InsertDeduplicated(ctx context.Context, alert *models.Alert) (bool, error) {
	if alert.DedupKey == nil || *alert.DedupKey == "" {
		return false, fmt.Errorf("insert deduplicated alert: dedup key is required")
	}
	prepareAlert(alert)
	const query = `INSERT INTO alerts (id, alert_type, title, message, severity, payload, dedup_key, is_read, processed, triggered_at, created_at)
        VALUES (:id, :alert_type, :title, :message, :severity, :payload, :dedup_key, :is_read, :processed, :triggered_at, :created_at)
        ON CONFLICT (dedup_key) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, alert)
	if err != nil {
		return false, fmt.Errorf("insert deduplicated alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("alert rows affected: %w", err)
	}
	return affected > 0, nil
}

// Create inserts an alert. exec may be nil to use the pool.
func (r *AlertRepository) Create(ctx context.Context, exec sqlx.ExtContext, alert *models.Alert) error {
	if exec == nil {
		exec = r.db
	}
	prepareAlert(alert)
	const query = `INSERT INTO alerts (id, alert_type, title, message, severity, payload, dedup_key, is_read, processed, triggered_at, created_at)
        VALUES (:id, :alert_type, :title, :message, :severity, :payload, :dedup_key, :is_read, :processed, :triggered_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, alert); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// List returns alerts filtered by type and read state, newest first.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("alert_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Unread != nil {
		conditions = append(conditions, fmt.Sprintf("is_read = $%d", len(args)+1))
		args = append(args, !*filter.Unread)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM alerts%s ORDER BY triggered_at DESC LIMIT %d OFFSET %d`, alertColumns, clause, size, (page-1)*size)
	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM alerts"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}
	return alerts, total, nil
}

// MarkRead flags an alert as read.
func (r *AlertRepository) MarkRead(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	return expectAffected(result, "mark alert read")
}

func prepareAlert(alert *models.Alert) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if alert.TriggeredAt.IsZero() {
		alert.TriggeredAt = now
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	if len(alert.Payload) == 0 {
		alert.Payload = types.JSONText(`{}`)
	}
}
