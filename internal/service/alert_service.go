package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type alertStore interface {
	FindRecent(ctx context.Context, alertType models.AlertType, subjectID, thresholdKey string, since time.Time) (*models.Alert, error)
	InsertDeduplicated(ctx context.Context, alert *models.Alert) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, alert *models.Alert) error
	List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, int, error)
	MarkRead(ctx context.Context, id string) error
}

// AlertServiceConfig configures alert deduplication.
type AlertServiceConfig struct {
	DedupWindow time.Duration
}

// AlertService raises operator alerts and suppresses repeats for the same subject and threshold.
type AlertService struct {
	repo    alertStore
	metrics *MetricsService
	logger  *zap.Logger
	window  time.Duration
	now     func() time.Time
}

// NewAlertService constructs AlertService.
func NewAlertService(repo alertStore, metrics *MetricsService, logger *zap.Logger, cfg AlertServiceConfig) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.DedupWindow
	if window <= 0 {
		window = 72 * time.Hour
	}
	return &AlertService{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		window:  window,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ShouldEmit reports whether no alert of alertType for the subject and threshold was raised within the window.
func (s *AlertService) ShouldEmit(ctx context.Context, alertType models.AlertType, subjectID, thresholdKey string) (bool, error) {
	recent, err := s.repo.FindRecent(ctx, alertType, subjectID, thresholdKey, s.now().Add(-s.window))
	if err != nil {
		return false, appErrors.Infrastructure(err, "failed to look up recent alerts")
	}
	return recent == nil, nil
}

// Emit raises a deduplicated alert. The boolean is false when an equivalent alert already exists.
func (s *AlertService) Emit(ctx context.Context, input models.AlertInput) (*models.Alert, bool, error) {
	subject := strings.TrimSpace(input.Payload.SubjectID)
	if subject == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "alert subject is required")
	}
	input.Payload.SubjectID = subject

	ok, err := s.ShouldEmit(ctx, input.Type, subject, input.Payload.ThresholdKey)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		s.metrics.RecordAlert(string(input.Type), false)
		return nil, false, nil
	}

	alert, err := buildAlert(input)
	if err != nil {
		return nil, false, err
	}
	key := models.AlertDedupKey(input.Type, subject, input.Payload.ThresholdKey)
	alert.DedupKey = &key

	inserted, err := s.repo.InsertDeduplicated(ctx, alert)
	if err != nil {
		return nil, false, appErrors.Infrastructure(err, "failed to store alert")
	}
	s.metrics.RecordAlert(string(input.Type), inserted)
	if !inserted {
		s.logger.Debug("alert suppressed by dedup key", zap.String("dedup_key", key))
		return nil, false, nil
	}

	s.logger.Info("alert emitted",
		zap.String("alert_id", alert.ID),
		zap.String("alert_type", string(alert.AlertType)),
		zap.String("subject_id", subject),
		zap.String("threshold", input.Payload.ThresholdKey),
	)
	return alert, true, nil
}

// Raise stores a one-off domain alert without deduplication. exec may be a transaction.
func (s *AlertService) Raise(ctx context.Context, exec sqlx.ExtContext, input models.AlertInput) (*models.Alert, error) {
	alert, err := buildAlert(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, exec, alert); err != nil {
		return nil, appErrors.Infrastructure(err, "failed to store alert")
	}
	s.metrics.RecordAlert(string(input.Type), true)
	return alert, nil
}

// List returns alerts with pagination metadata.
func (s *AlertService) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, *models.Pagination, error) {
	alerts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Infrastructure(err, "failed to list alerts")
	}
	return alerts, paginate(filter.Page, filter.PageSize, total), nil
}

// MarkRead flags an alert as read.
func (s *AlertService) MarkRead(ctx context.Context, id string) error {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return notFoundOrInfra(err, "alert not found", "failed to update alert")
	}
	return nil
}

func buildAlert(input models.AlertInput) (*models.Alert, error) {
	payload, err := json.Marshal(input.Payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode alert payload")
	}
	severity := input.Severity
	if severity == "" {
		severity = models.AlertSeverityInfo
	}
	return &models.Alert{
		AlertType: input.Type,
		Title:     input.Title,
		Message:   input.Message,
		Severity:  severity,
		Payload:   payload,
	}, nil
}
