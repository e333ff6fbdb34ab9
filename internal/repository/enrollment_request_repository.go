package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const enrollmentRequestColumns = `id, student_id, class_id, note, status, requested_by, decided_by, decision_note, enrollment_id, created_at, decided_at`

// EnrollmentRequestRepository persists enrollment requests awaiting review.
type EnrollmentRequestRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRequestRepository constructs the repository.
func NewEnrollmentRequestRepository(db *sqlx.DB) *EnrollmentRequestRepository {
	return &EnrollmentRequestRepository{db: db}
}

func (r *EnrollmentRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create stores a new pending request.
func (r *EnrollmentRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.EnrollmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.EnrollmentRequestPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_requests (id, student_id, class_id, note, status, requested_by, created_at)
        VALUES (:id, :student_id, :class_id, :note, :status, :requested_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, req); err != nil {
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// FindByID loads a request.
func (r *EnrollmentRequestRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	query := `SELECT ` + enrollmentRequestColumns + ` FROM enrollment_requests WHERE id = $1`
	var req models.EnrollmentRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByIDForUpdate loads a request and locks it so that only one reviewer decides it.
func (r *EnrollmentRequestRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentRequest, error) {
	query := `SELECT ` + enrollmentRequestColumns + ` FROM enrollment_requests WHERE id = $1 FOR UPDATE`
	var req models.EnrollmentRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByStatus returns requests in status, oldest first.
func (r *EnrollmentRequestRepository) ListByStatus(ctx context.Context, status models.EnrollmentRequestStatus) ([]models.EnrollmentRequest, error) {
	query := `SELECT ` + enrollmentRequestColumns + ` FROM enrollment_requests WHERE status = $1 ORDER BY created_at`
	var list []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &list, query, status); err != nil {
		return nil, fmt.Errorf("list enrollment requests: %w", err)
	}
	return list, nil
}

// UpdateDecision records the review outcome.
func (r *EnrollmentRequestRepository) UpdateDecision(ctx context.Context, exec sqlx.ExtContext, req *models.EnrollmentRequest) error {
	const query = `UPDATE enrollment_requests SET status = $2, decided_by = $3, decision_note = $4, enrollment_id = $5, decided_at = $6 WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, req.ID, req.Status, req.DecidedBy, req.DecisionNote, req.EnrollmentID, req.DecidedAt)
	if err != nil {
		return fmt.Errorf("update enrollment request decision: %w", err)
	}
	return expectAffected(result, "update enrollment request decision")
}
