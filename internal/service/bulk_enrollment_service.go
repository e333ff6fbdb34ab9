package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

// BulkEnrollmentService enrolls many students into one class, one transaction per student.
type BulkEnrollmentService struct {
	engine *EnrollmentService
	logger *zap.Logger
}

// NewBulkEnrollmentService constructs BulkEnrollmentService on top of the single-student engine.
func NewBulkEnrollmentService(engine *EnrollmentService, logger *zap.Logger) *BulkEnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkEnrollmentService{engine: engine, logger: logger}
}

// BulkEnroll processes req.StudentIDs in input order. OverrideCapacity requires a manager role. Domain rejections land in Failed and the
// batch continues; an infrastructure failure stops the batch and is returned with the partial result.
func (s *BulkEnrollmentService) BulkEnroll(ctx context.Context, req dto.BulkEnrollRequest, actor models.Actor) (*dto.BulkEnrollResult, error) {
	e := s.engine
	if err := e.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk enrollment payload")
	}
	if req.OverrideCapacity && !actor.IsManager() {
		err := appErrors.Clone(appErrors.ErrForbidden, "only managers can override capacity")
		e.metrics.RecordEnrollmentOperation("bulk_enroll", err)
		return nil, err
	}

	err := e.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		class, err := e.classes.FindByIDForUpdate(ctx, exec, req.ClassID)
		if err != nil {
			return notFoundOrInfra(err, "class not found", "failed to load class")
		}
		if !class.Status.Enrollable() {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("class %s is %s and cannot accept students", class.Name, class.Status))
		}
		if req.OverrideCapacity {
			return e.recordOverride(ctx, exec, actor, models.AuditActionCapacityOverride, "bulk_enroll", class.ID,
				map[string]interface{}{"requested": len(req.StudentIDs)})
		}
		_, err = e.capacity.Evaluate(ctx, exec, class, len(req.StudentIDs), false)
		return err
	})
	if err = txError(err, "failed to prepare bulk enrollment"); err != nil {
		e.metrics.RecordEnrollmentOperation("bulk_enroll", err)
		return nil, err
	}

	result := &dto.BulkEnrollResult{
		ClassID: req.ClassID,
		Success: make([]models.Enrollment, 0, len(req.StudentIDs)),
		Failed:  make([]dto.BulkFailure, 0),
	}
	var abort error
	for _, studentID := range req.StudentIDs {
		var created *models.Enrollment
		err := e.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
			enrollment, err := e.place(ctx, exec, placement{
				StudentID:        studentID,
				ClassID:          req.ClassID,
				Semester:         req.Semester,
				OverrideCapacity: req.OverrideCapacity,
			})
			if err != nil {
				return err
			}
			created = enrollment
			return nil
		})
		err = txError(err, "failed to enroll student")
		e.metrics.RecordEnrollmentOperation("bulk_enroll_item", err)
		if err == nil {
			result.Success = append(result.Success, *created)
			continue
		}
		if appErrors.IsDomain(err) {
			typed := appErrors.FromError(err)
			result.Failed = append(result.Failed, dto.BulkFailure{
				StudentID: studentID,
				Code:      typed.Code,
				Reason:    typed.Message,
				Details:   typed.Details,
			})
			continue
		}
		abort = err
		break
	}

	s.logger.Info("bulk enrollment processed",
		zap.String("class_id", req.ClassID),
		zap.Int("requested", len(req.StudentIDs)),
		zap.Int("succeeded", len(result.Success)),
		zap.Int("failed", len(result.Failed)),
		zap.Bool("aborted", abort != nil),
		zap.Bool("capacity_override", req.OverrideCapacity),
		zap.String("actor_id", actor.UserID),
	)

	if len(result.Success) > 0 && e.notifier != nil {
		ids := make([]string, 0, len(result.Success))
		for _, enrollment := range result.Success {
			ids = append(ids, enrollment.StudentID)
		}
		e.notifier.NotifyBulkEnrollment(ctx, ids, req.ClassID, nil)
	}

	e.metrics.RecordEnrollmentOperation("bulk_enroll", abort)
	if abort != nil {
		return result, abort
	}
	return result, nil
}
