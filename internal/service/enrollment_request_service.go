package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type enrollmentRequestStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.EnrollmentRequest) error
	FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentRequest, error)
	ListByStatus(ctx context.Context, status models.EnrollmentRequestStatus) ([]models.EnrollmentRequest, error)
	UpdateDecision(ctx context.Context, exec sqlx.ExtContext, req *models.EnrollmentRequest) error
}

type alertRaiser interface {
	Raise(ctx context.Context, exec sqlx.ExtContext, input models.AlertInput) (*models.Alert, error)
}

// EnrollmentRequestService manages requests that staff review before a student is enrolled.
type EnrollmentRequestService struct {
	repo   enrollmentRequestStore
	engine *EnrollmentService
	alerts alertRaiser
	logger *zap.Logger
}

// NewEnrollmentRequestService constructs EnrollmentRequestService.
func NewEnrollmentRequestService(repo enrollmentRequestStore, engine *EnrollmentService, alerts alertRaiser, logger *zap.Logger) *EnrollmentRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentRequestService{repo: repo, engine: engine, alerts: alerts, logger: logger}
}

// Create stores a pending request and raises a new_enrollment_request alert in the same transaction.
func (s *EnrollmentRequestService) Create(ctx context.Context, req dto.CreateEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequest, error) {
	e := s.engine
	if err := e.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request payload")
	}

	var created *models.EnrollmentRequest
	err := e.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		student, err := e.students.FindByID(ctx, exec, req.StudentID)
		if err != nil {
			return notFoundOrInfra(err, "student not found", "failed to load student")
		}
		class, err := e.classes.FindByID(ctx, exec, req.ClassID)
		if err != nil {
			return notFoundOrInfra(err, "class not found", "failed to load class")
		}

		request := &models.EnrollmentRequest{
			StudentID:   req.StudentID,
			ClassID:     req.ClassID,
			Status:      models.EnrollmentRequestPending,
			RequestedBy: actor.UserIDPtr(),
		}
		if note := strings.TrimSpace(req.Note); note != "" {
			request.Note = &note
		}
		if err := s.repo.Create(ctx, exec, request); err != nil {
			return appErrors.Infrastructure(err, "failed to store enrollment request")
		}

		if _, err := s.alerts.Raise(ctx, exec, models.AlertInput{
			Type:     models.AlertTypeNewEnrollmentRequest,
			Title:    "New enrollment request",
			Message:  fmt.Sprintf("%s asked to join class %s.", student.FullName, class.Name),
			Severity: models.AlertSeverityInfo,
			Payload: models.AlertPayload{
				SubjectID:   request.ID,
				SubjectKind: "enrollment_request",
				Extra:       map[string]interface{}{"studentId": student.ID, "classId": class.ID},
			},
		}); err != nil {
			return err
		}
		created = request
		return nil
	})
	if err = txError(err, "failed to create enrollment request"); err != nil {
		return nil, err
	}

	s.logger.Info("enrollment request created",
		zap.String("request_id", created.ID),
		zap.String("student_id", created.StudentID),
		zap.String("class_id", created.ClassID),
	)
	return created, nil
}

// Get returns a request by ID.
func (s *EnrollmentRequestService) Get(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInfra(err, "enrollment request not found", "failed to load enrollment request")
	}
	return req, nil
}

// ListPending returns requests awaiting review, oldest first.
func (s *EnrollmentRequestService) ListPending(ctx context.Context) ([]models.EnrollmentRequest, error) {
	list, err := s.repo.ListByStatus(ctx, models.EnrollmentRequestPending)
	if err != nil {
		return nil, appErrors.Infrastructure(err, "failed to list enrollment requests")
	}
	return list, nil
}

// Approve enrolls the requested student and marks the request approved atomically. Forcing past
// capacity requires a manager role and is audited.
func (s *EnrollmentRequestService) Approve(ctx context.Context, id string, req dto.ApproveEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequest, *models.Enrollment, error) {
	e := s.engine
	if err := e.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	if req.ForceCapacity && !actor.IsManager() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can force capacity")
	}

	var (
		decided    *models.EnrollmentRequest
		enrollment *models.Enrollment
	)
	err := e.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		request, err := s.repo.FindByIDForUpdate(ctx, exec, id)
		if err != nil {
			return notFoundOrInfra(err, "enrollment request not found", "failed to load enrollment request")
		}
		if request.Status != models.EnrollmentRequestPending {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("enrollment request is already %s", request.Status))
		}

		created, err := e.place(ctx, exec, placement{
			StudentID:        request.StudentID,
			ClassID:          request.ClassID,
			Semester:         req.Semester,
			OverrideCapacity: req.ForceCapacity,
		})
		if err != nil {
			return err
		}
		if req.ForceCapacity {
			extra := map[string]interface{}{"requestId": request.ID, "studentId": request.StudentID}
			if err := e.recordOverride(ctx, exec, actor, models.AuditActionForceApprove, "approve_request", request.ClassID, extra); err != nil {
				return err
			}
		}

		now := e.now()
		request.Status = models.EnrollmentRequestApproved
		request.DecidedBy = actor.UserIDPtr()
		request.DecidedAt = &now
		request.EnrollmentID = &created.ID
		if note := strings.TrimSpace(req.Note); note != "" {
			request.DecisionNote = &note
		}
		if err := s.repo.UpdateDecision(ctx, exec, request); err != nil {
			return appErrors.Infrastructure(err, "failed to record approval")
		}
		decided = request
		enrollment = created
		return nil
	})
	err = txError(err, "failed to approve enrollment request")
	e.metrics.RecordEnrollmentOperation("approve_request", err)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("enrollment request approved",
		zap.String("request_id", decided.ID),
		zap.String("enrollment_id", enrollment.ID),
		zap.Bool("force_capacity", req.ForceCapacity),
		zap.String("actor_id", actor.UserID),
	)
	return decided, enrollment, nil
}

// Reject closes a pending request without enrolling the student.
func (s *EnrollmentRequestService) Reject(ctx context.Context, id string, req dto.RejectEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequest, error) {
	e := s.engine
	if err := e.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}

	var decided *models.EnrollmentRequest
	err := e.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		request, err := s.repo.FindByIDForUpdate(ctx, exec, id)
		if err != nil {
			return notFoundOrInfra(err, "enrollment request not found", "failed to load enrollment request")
		}
		if request.Status != models.EnrollmentRequestPending {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("enrollment request is already %s", request.Status))
		}
		now := e.now()
		reason := strings.TrimSpace(req.Reason)
		request.Status = models.EnrollmentRequestRejected
		request.DecidedBy = actor.UserIDPtr()
		request.DecidedAt = &now
		request.DecisionNote = &reason
		if err := s.repo.UpdateDecision(ctx, exec, request); err != nil {
			return appErrors.Infrastructure(err, "failed to record rejection")
		}
		decided = request
		return nil
	})
	if err = txError(err, "failed to reject enrollment request"); err != nil {
		return nil, err
	}

	s.logger.Info("enrollment request rejected",
		zap.String("request_id", decided.ID),
		zap.String("actor_id", actor.UserID),
	)
	return decided, nil
}
