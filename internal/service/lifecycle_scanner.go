package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

const scanLockName = "alerts:lifecycle-scan"

type runLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

type classCalendar interface {
	ListStartingOn(ctx context.Context, day time.Time, statuses []models.ClassStatus) ([]models.Class, error)
	ListEndingOn(ctx context.Context, day time.Time, statuses []models.ClassStatus) ([]models.Class, error)
}

type alertEmitter interface {
	Emit(ctx context.Context, input models.AlertInput) (*models.Alert, bool, error)
}

// LifecycleScannerConfig sets the day thresholds at which classes are announced.
type LifecycleScannerConfig struct {
	StartThresholds []int
	EndThresholds   []int
	LockTTL         time.Duration
	Location        *time.Location
}

// LifecycleScanner raises class_starting_soon and class_ending_soon alerts.
type LifecycleScanner struct {
	classes classCalendar
	alerts  alertEmitter
	locker  runLocker
	metrics *MetricsService
	logger  *zap.Logger
	cfg     LifecycleScannerConfig
	now     func() time.Time
}

// NewLifecycleScanner constructs LifecycleScanner. A nil locker runs every scan unlocked.
func NewLifecycleScanner(classes classCalendar, alerts alertEmitter, locker runLocker, metrics *MetricsService, logger *zap.Logger, cfg LifecycleScannerConfig) *LifecycleScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &LifecycleScanner{
		classes: classes,
		alerts:  alerts,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Scan emits alerts for classes whose start or end date is exactly N days after now's calendar date.
// A run already held by another process is skipped; an unreachable lock store is ignored.
func (s *LifecycleScanner) Scan(ctx context.Context, now time.Time) (dto.ScanResult, error) {
	var result dto.ScanResult
	started := time.Now()
	defer func() { s.metrics.ObserveScan(time.Since(started)) }()

	if s.locker == nil {
		result.Unlocked = true
	} else {
		release, err := s.locker.Acquire(ctx, scanLockName, s.cfg.LockTTL)
		switch {
		case err == nil:
			defer func() {
				if err := release(context.Background()); err != nil {
					s.logger.Warn("failed to release scan lock", zap.Error(err))
				}
			}()
		case errors.Is(err, appErrors.ErrLockHeld):
			s.logger.Info("lifecycle scan skipped, another run holds the lock")
			return result, nil
		default:
			s.logger.Warn("scan lock unavailable, running without it", zap.Error(err))
			result.Unlocked = true
		}
	}

	local := now.In(s.cfg.Location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)

	for _, days := range s.cfg.StartThresholds {
		target := today.AddDate(0, 0, days)
		classes, err := s.classes.ListStartingOn(ctx, target, []models.ClassStatus{models.ClassStatusReady, models.ClassStatusActive})
		if err != nil {
			return result, appErrors.Infrastructure(err, "failed to list classes starting soon")
		}
		for i := range classes {
			s.emit(ctx, &result, models.AlertTypeClassStartingSoon, &classes[i], days, target)
		}
	}
	for _, days := range s.cfg.EndThresholds {
		target := today.AddDate(0, 0, days)
		classes, err := s.classes.ListEndingOn(ctx, target, []models.ClassStatus{models.ClassStatusActive})
		if err != nil {
			return result, appErrors.Infrastructure(err, "failed to list classes ending soon")
		}
		for i := range classes {
			s.emit(ctx, &result, models.AlertTypeClassEndingSoon, &classes[i], days, target)
		}
	}

	s.logger.Info("lifecycle scan finished",
		zap.Int("emitted", result.Emitted),
		zap.Int("suppressed", result.Suppressed),
		zap.Int("failed", result.Failed),
		zap.Bool("unlocked", result.Unlocked),
	)
	return result, nil
}

func (s *LifecycleScanner) emit(ctx context.Context, result *dto.ScanResult, alertType models.AlertType, class *models.Class, days int, target time.Time) {
	date := target.Format("2006-01-02")
	verb := "starts"
	if alertType == models.AlertTypeClassEndingSoon {
		verb = "ends"
	}
	severity := models.AlertSeverityInfo
	if days <= 1 {
		severity = models.AlertSeverityWarning
	}

	_, emitted, err := s.alerts.Emit(ctx, models.AlertInput{
		Type:     alertType,
		Title:    fmt.Sprintf("Class %s %s in %d day(s)", class.Name, verb, days),
		Message:  fmt.Sprintf("Class %s %s on %s.", class.Name, verb, date),
		Severity: severity,
		Payload: models.AlertPayload{
			SubjectID:    class.ID,
			SubjectKind:  "class",
			ThresholdKey: fmt.Sprintf("%dd@%s", days, date),
			Extra:        map[string]interface{}{"className": class.Name, "date": date, "days": days},
		},
	})
	switch {
	case err != nil:
		result.Failed++
		s.logger.Error("failed to emit lifecycle alert",
			zap.String("class_id", class.ID),
			zap.String("alert_type", string(alertType)),
			zap.Error(err),
		)
	case emitted:
		result.Emitted++
	default:
		result.Suppressed++
	}
}

// Run scans immediately and then on every interval tick until ctx is cancelled.
func (s *LifecycleScanner) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Scan(ctx, s.now()); err != nil {
			s.logger.Error("lifecycle scan failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
