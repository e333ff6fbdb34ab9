package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/schedule"
	"github.com/noah-isme/edu-center-api/pkg/database"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsInStatuses(ctx context.Context, exec sqlx.ExtContext, studentID, classID string, statuses models.StatusSet) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type enrollmentClassReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error)
}

type enrollmentStudentReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
}

type auditRecorder interface {
	Create(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error
}

type txRunner interface {
	WithinTx(ctx context.Context, fn database.TxFunc) error
}

type enrollmentNotifier interface {
	NotifyBulkEnrollment(ctx context.Context, studentIDs []string, classID string, transfer *TransferContext)
	NotifyTransfer(ctx context.Context, notice TransferNotice)
}

// EnrollmentServiceConfig tunes the engine.
type EnrollmentServiceConfig struct {
	DefaultSemester string
}

// EnrollmentServiceParams groups constructor dependencies.
type EnrollmentServiceParams struct {
	Enrollments enrollmentStore
	Classes     enrollmentClassReader
	Students    enrollmentStudentReader
	Audits      auditRecorder
	Tx          txRunner
	Conflicts   *ConflictService
	Capacity    *CapacityService
	Notifier    enrollmentNotifier
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Config      EnrollmentServiceConfig
}

// EnrollmentService is the enrollment state machine. Every mutating operation runs in one
// serializable transaction that locks the affected class row before counting seats.
type EnrollmentService struct {
	repo      enrollmentStore
	classes   enrollmentClassReader
	students  enrollmentStudentReader
	audits    auditRecorder
	tx        txRunner
	conflicts *ConflictService
	capacity  *CapacityService
	notifier  enrollmentNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EnrollmentServiceConfig
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(params EnrollmentServiceParams) *EnrollmentService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      params.Enrollments,
		classes:   params.Classes,
		students:  params.Students,
		audits:    params.Audits,
		tx:        params.Tx,
		conflicts: params.Conflicts,
		capacity:  params.Capacity,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		cfg:       params.Config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// placement describes one student being put into one class.
type placement struct {
	StudentID        string
	ClassID          string
	Semester         string
	OverrideCapacity bool
	// ExcludeClassID is left out of the conflict check, used by transfers for the source class.
	ExcludeClassID string
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list enrollments")
	}
	return enrollments, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment with student and class names.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInfra(err, "enrollment not found", "failed to load enrollment")
	}
	return detail, nil
}

// Enroll places a student into a class with status studying.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest, actor models.Actor) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	var created *models.Enrollment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		enrollment, err := s.place(ctx, exec, placement{
			StudentID: req.StudentID,
			ClassID:   req.ClassID,
			Semester:  req.Semester,
		})
		if err != nil {
			return err
		}
		created = enrollment
		return nil
	})
	err = txError(err, "failed to enroll student")
	s.metrics.RecordEnrollmentOperation("enroll", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("student enrolled",
		zap.String("enrollment_id", created.ID),
		zap.String("student_id", created.StudentID),
		zap.String("class_id", created.ClassID),
		zap.String("actor_id", actor.UserID),
	)
	return created, nil
}

// UpdateStatus moves an enrollment to a new lifecycle status.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor models.Actor) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	note := strings.TrimSpace(req.Note)
	if req.Status == models.EnrollmentStatusStopped && note == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a completion note is required to stop an enrollment")
	}

	var updated *models.Enrollment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		enrollment, err := s.repo.FindByIDForUpdate(ctx, exec, id)
		if err != nil {
			return notFoundOrInfra(err, "enrollment not found", "failed to load enrollment")
		}
		if !models.CanTransition(enrollment.Status, req.Status) {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot change enrollment status from %s to %s", enrollment.Status, req.Status))
		}

		now := s.now()
		switch req.Status {
		case models.EnrollmentStatusStudying:
			if err := s.requireStudyable(ctx, exec, enrollment); err != nil {
				return err
			}
		case models.EnrollmentStatusGraduated:
			enrollment.CompletedAt = &now
		case models.EnrollmentStatusStopped:
			enrollment.CompletedAt = &now
			enrollment.CompletionNote = &note
		case models.EnrollmentStatusWithdrawn:
			enrollment.CompletedAt = &now
			if note != "" {
				enrollment.WithdrawReason = &note
			}
		}
		enrollment.Status = req.Status

		if err := s.repo.UpdateStatus(ctx, exec, enrollment); err != nil {
			return notFoundOrInfra(err, "enrollment not found", "failed to update enrollment status")
		}
		updated = enrollment
		return nil
	})
	err = txError(err, "failed to update enrollment status")
	s.metrics.RecordEnrollmentOperation("update_status", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("enrollment status changed",
		zap.String("enrollment_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.String("actor_id", actor.UserID),
	)
	return updated, nil
}

// requireStudyable enforces the domain rules for (re)entering studying.
func (s *EnrollmentService) requireStudyable(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	class, err := s.classes.FindByIDForUpdate(ctx, exec, enrollment.ClassID)
	if err != nil {
		return notFoundOrInfra(err, "class not found", "failed to load class")
	}
	if !class.HasTeacher() {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("class %s has no teacher assigned", class.Name))
	}
	if !class.Status.Enrollable() {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("class %s is %s", class.Name, class.Status))
	}
	student, err := s.students.FindByID(ctx, exec, enrollment.StudentID)
	if err != nil {
		return notFoundOrInfra(err, "student not found", "failed to load student")
	}
	if !student.Active {
		return appErrors.Clone(appErrors.ErrInvalidState, "student account is inactive")
	}
	return nil
}

// Transfer moves a student out of the enrollment's class into another one. The source row is
// deleted when its class never started and marked withdrawn otherwise; the target always gets a
// fresh studying row.
func (s *EnrollmentService) Transfer(ctx context.Context, id string, req dto.TransferRequest, actor models.Actor) (*dto.TransferResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}

	var result dto.TransferResult
	reason := strings.TrimSpace(req.Reason)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		result = dto.TransferResult{}
		current, err := s.repo.FindByIDForUpdate(ctx, exec, id)
		if err != nil {
			return notFoundOrInfra(err, "enrollment not found", "failed to load enrollment")
		}
		if !models.DuplicateBlockingStatuses.Contains(current.Status) {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("enrollment in status %s cannot be transferred", current.Status))
		}
		if current.ClassID == req.NewClassID {
			return appErrors.Clone(appErrors.ErrValidation, "target class must differ from the current class")
		}
		source, err := s.classes.FindByID(ctx, exec, current.ClassID)
		if err != nil {
			return notFoundOrInfra(err, "current class not found", "failed to load current class")
		}

		semester := req.Semester
		if semester == "" {
			semester = current.Semester
		}
		created, err := s.place(ctx, exec, placement{
			StudentID:      current.StudentID,
			ClassID:        req.NewClassID,
			Semester:       semester,
			ExcludeClassID: current.ClassID,
		})
		if err != nil {
			return err
		}

		if source.Status == models.ClassStatusReady {
			if err := s.repo.Delete(ctx, exec, current.ID); err != nil {
				return appErrors.Infrastructure(err, "failed to remove previous enrollment")
			}
			result.PreviousDeleted = true
		} else {
			now := s.now()
			withdrawReason := reason
			if withdrawReason == "" {
				withdrawReason = fmt.Sprintf("transferred to class %s", req.NewClassID)
			}
			current.Status = models.EnrollmentStatusWithdrawn
			current.CompletedAt = &now
			current.WithdrawReason = &withdrawReason
			if err := s.repo.UpdateStatus(ctx, exec, current); err != nil {
				return appErrors.Infrastructure(err, "failed to withdraw previous enrollment")
			}
		}
		result.Previous = *current
		result.Enrollment = created
		return nil
	})
	err = txError(err, "failed to transfer enrollment")
	s.metrics.RecordEnrollmentOperation("transfer", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("enrollment transferred",
		zap.String("previous_enrollment_id", result.Previous.ID),
		zap.String("enrollment_id", result.Enrollment.ID),
		zap.String("from_class_id", result.Previous.ClassID),
		zap.String("to_class_id", result.Enrollment.ClassID),
		zap.Bool("previous_deleted", result.PreviousDeleted),
		zap.String("actor_id", actor.UserID),
	)
	if s.notifier != nil {
		s.notifier.NotifyTransfer(ctx, TransferNotice{
			StudentID:            result.Enrollment.StudentID,
			FromClassID:          result.Previous.ClassID,
			ToClassID:            result.Enrollment.ClassID,
			PreviousEnrollmentID: result.Previous.ID,
			EnrollmentID:         result.Enrollment.ID,
			PreviousDeleted:      result.PreviousDeleted,
			Reason:               reason,
		})
	}
	return &result, nil
}

// Delete removes an enrollment regardless of status.
func (s *EnrollmentService) Delete(ctx context.Context, id string, actor models.Actor) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := s.repo.Delete(ctx, exec, id); err != nil {
			return notFoundOrInfra(err, "enrollment not found", "failed to delete enrollment")
		}
		resourceID := id
		if err := s.audits.Create(ctx, exec, &models.AuditLog{
			UserID:     actor.UserIDPtr(),
			Action:     models.AuditActionEnrollmentDelete,
			Resource:   "enrollment",
			ResourceID: &resourceID,
		}); err != nil {
			return appErrors.Infrastructure(err, "failed to record audit log")
		}
		return nil
	})
	err = txError(err, "failed to delete enrollment")
	s.metrics.RecordEnrollmentOperation("delete", err)
	return err
}

// place runs every enrollment precondition against exec and inserts the studying row.
func (s *EnrollmentService) place(ctx context.Context, exec sqlx.ExtContext, p placement) (*models.Enrollment, error) {
	student, err := s.students.FindByID(ctx, exec, p.StudentID)
	if err != nil {
		return nil, notFoundOrInfra(err, "student not found", "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student account is inactive")
	}

	class, err := s.classes.FindByIDForUpdate(ctx, exec, p.ClassID)
	if err != nil {
		return nil, notFoundOrInfra(err, "class not found", "failed to load class")
	}
	if !class.Status.Enrollable() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("class %s is %s and cannot accept students", class.Name, class.Status))
	}

	exists, err := s.repo.ExistsInStatuses(ctx, exec, p.StudentID, p.ClassID, models.DuplicateBlockingStatuses)
	if err != nil {
		return nil, storeError(err, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this class")
	}

	if _, err := s.capacity.Evaluate(ctx, exec, class, 1, p.OverrideCapacity); err != nil {
		return nil, err
	}

	conflicts, err := s.conflicts.findConflicts(ctx, exec, p.StudentID, schedule.Raw(class.RecurringSchedule), p.ExcludeClassID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.metrics.RecordConflicts(len(conflicts))
		msg := fmt.Sprintf("schedule conflicts with %d existing class session(s)", len(conflicts))
		return nil, appErrors.WithDetails(appErrors.ErrConflict, msg, conflicts)
	}

	enrollment := &models.Enrollment{
		StudentID:  p.StudentID,
		ClassID:    p.ClassID,
		Semester:   s.semester(p.Semester),
		Status:     models.EnrollmentStatusStudying,
		EnrolledAt: s.now(),
	}
	if err := s.repo.Create(ctx, exec, enrollment); err != nil {
		if _, ok := database.IsUniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this class")
		}
		return nil, appErrors.Infrastructure(err, "failed to create enrollment")
	}
	return enrollment, nil
}

// recordOverride writes the audit row for a capacity bypass and logs it.
func (s *EnrollmentService) recordOverride(ctx context.Context, exec sqlx.ExtContext, actor models.Actor, action, operation, classID string, extra map[string]interface{}) error {
	values := map[string]interface{}{"operation": operation, "classId": classID}
	for k, v := range extra {
		values[k] = v
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode audit payload")
	}
	resourceID := classID
	if err := s.audits.Create(ctx, exec, &models.AuditLog{
		UserID:     actor.UserIDPtr(),
		Action:     action,
		Resource:   "class",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		return appErrors.Infrastructure(err, "failed to record capacity override")
	}
	s.metrics.RecordCapacityOverride(operation)
	s.logger.Warn("capacity override used",
		zap.String("operation", operation),
		zap.String("class_id", classID),
		zap.String("actor_id", actor.UserID),
		zap.String("actor_role", string(actor.Role)),
	)
	return nil
}

func (s *EnrollmentService) semester(requested string) string {
	if requested != "" {
		return requested
	}
	return s.cfg.DefaultSemester
}

// notFoundOrInfra maps sql.ErrNoRows to NOT_FOUND and anything else through storeError.
func notFoundOrInfra(err error, notFoundMsg, infraMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	return storeError(err, infraMsg)
}

// storeError classifies a repository failure. An identifier postgres cannot parse is the
// caller's mistake, not an outage.
func storeError(err error, msg string) error {
	if database.IsInvalidInput(err) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed identifier")
	}
	return appErrors.Infrastructure(err, msg)
}

// txError keeps typed errors from the transaction body and marks runner failures as infrastructure.
func txError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Infrastructure(err, msg)
}

// paginate mirrors the repository page normalisation for response metadata.
func paginate(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
