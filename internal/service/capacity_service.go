package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type enrollmentCounter interface {
	CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string, statuses models.StatusSet) (int, error)
}

type classRowLocker interface {
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error)
}

// CapacityService guards class seat limits. Counts are always recomputed inside the caller's transaction.
type CapacityService struct {
	counter enrollmentCounter
	classes classRowLocker
	logger  *zap.Logger
}

// NewCapacityService constructs CapacityService.
func NewCapacityService(counter enrollmentCounter, classes classRowLocker, logger *zap.Logger) *CapacityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{counter: counter, classes: classes, logger: logger}
}

// Check locks the class row and evaluates whether proposedAdditions more students fit.
func (s *CapacityService) Check(ctx context.Context, exec sqlx.ExtContext, classID string, proposedAdditions int, override bool) (*models.CapacityStatus, error) {
	class, err := s.classes.FindByIDForUpdate(ctx, exec, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, storeError(err, "failed to load class")
	}
	return s.Evaluate(ctx, exec, class, proposedAdditions, override)
}

// Evaluate counts capacity-occupying enrollments of an already loaded class. With override the
// limit is not enforced; the caller is responsible for auditing that. Exceeding the limit returns
// a CONFLICT error whose details carry the CapacityStatus.
func (s *CapacityService) Evaluate(ctx context.Context, exec sqlx.ExtContext, class *models.Class, proposedAdditions int, override bool) (*models.CapacityStatus, error) {
	count, err := s.counter.CountByClass(ctx, exec, class.ID, models.CapacityOccupyingStatuses)
	if err != nil {
		return nil, appErrors.Infrastructure(err, "failed to count class enrollments")
	}

	status := &models.CapacityStatus{
		CurrentCount: count,
		Requested:    proposedAdditions,
		MaxStudents:  class.MaxStudents,
	}
	if class.MaxStudents != nil {
		available := *class.MaxStudents - count
		if available < 0 {
			available = 0
		}
		status.AvailableSlots = &available
	}

	if override {
		status.OK = true
		status.Overridden = true
		return status, nil
	}
	if status.AvailableSlots == nil || proposedAdditions <= *status.AvailableSlots {
		status.OK = true
		return status, nil
	}

	msg := fmt.Sprintf("class %s is full: %d of %d seats taken, %d requested", class.Name, count, *class.MaxStudents, proposedAdditions)
	return status, appErrors.WithDetails(appErrors.ErrConflict, msg, status)
}
