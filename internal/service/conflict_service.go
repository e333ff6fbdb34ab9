package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/schedule"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type scheduledEnrollmentReader interface {
	ListScheduledByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string, statuses models.StatusSet, excludeClassID string) ([]models.ScheduledEnrollment, error)
}

type classFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error)
}

// ConflictService detects timetable clashes between a candidate class and a student's current classes.
type ConflictService struct {
	enrollments scheduledEnrollmentReader
	classes     classFinder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewConflictService constructs ConflictService.
func NewConflictService(enrollments scheduledEnrollmentReader, classes classFinder, validate *validator.Validate, logger *zap.Logger) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{enrollments: enrollments, classes: classes, validator: validate, logger: logger}
}

// FindConflicts compares candidate against every schedule-blocking enrollment of the student,
// skipping enrollments in excludeClassID. All clashes are returned, not just the first.
func (s *ConflictService) FindConflicts(ctx context.Context, studentID string, candidate schedule.Raw, excludeClassID string) ([]models.ConflictReport, error) {
	return s.findConflicts(ctx, nil, studentID, candidate, excludeClassID)
}

// CheckClass runs FindConflicts against a stored class timetable.
func (s *ConflictService) CheckClass(ctx context.Context, req dto.ConflictCheckRequest) (*dto.ConflictCheckResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}
	class, err := s.classes.FindByID(ctx, nil, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, storeError(err, "failed to load class")
	}
	reports, err := s.FindConflicts(ctx, req.StudentID, schedule.Raw(class.RecurringSchedule), req.ExcludeClassID)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []models.ConflictReport{}
	}
	return &dto.ConflictCheckResponse{HasConflict: len(reports) > 0, Conflicts: reports}, nil
}

func (s *ConflictService) findConflicts(ctx context.Context, exec sqlx.ExtContext, studentID string, candidate schedule.Raw, excludeClassID string) ([]models.ConflictReport, error) {
	entries := schedule.Normalize(candidate)
	// Checking parsed slots rather than entries is equivalent: an entry without a valid
	// slot never overlaps, so a timetable with no slots cannot clash with anything.
	if len(schedule.Slots(entries)) == 0 {
		return nil, nil
	}

	existing, err := s.enrollments.ListScheduledByStudent(ctx, exec, studentID, models.ScheduleBlockingStatuses, excludeClassID)
	if err != nil {
		return nil, storeError(err, "failed to load student schedule")
	}

	var reports []models.ConflictReport
	for _, enrollment := range existing {
		current := schedule.Normalize(schedule.Raw(enrollment.RecurringSchedule))
		for _, overlap := range schedule.FindOverlaps(entries, current) {
			reports = append(reports, models.ConflictReport{
				ClassID:          enrollment.ClassID,
				ClassName:        enrollment.ClassName,
				EnrollmentID:     enrollment.EnrollmentID,
				Day:              overlap.Candidate.Day,
				CandidateRange:   overlap.Candidate.Range(),
				ConflictingRange: overlap.Existing.Range(),
			})
		}
	}
	if len(reports) > 0 {
		s.logger.Debug("schedule conflicts detected",
			zap.String("student_id", studentID),
			zap.Int("conflicts", len(reports)),
		)
	}
	return reports, nil
}
