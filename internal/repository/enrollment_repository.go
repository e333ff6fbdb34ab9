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
	"github.com/lib/pq"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const enrollmentColumns = `id, student_id, class_id, semester, status, enrolled_at, completed_at, completion_note, withdraw_reason, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN classes c ON c.id = e.class_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("e.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.full_name",
		"class_name":   "c.name",
		"status":       "e.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.class_id, e.semester, e.status, e.enrolled_at, e.completed_at,
        e.completion_note, e.withdraw_reason, e.created_at, e.updated_at,
        COALESCE(s.full_name, '') AS student_name, COALESCE(c.name, '') AS class_name, COALESCE(c.status, '') AS class_status
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByIDForUpdate loads an enrollment and locks its row for the current transaction.
func (r *EnrollmentRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and class names.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.semester, e.status, e.enrolled_at, e.completed_at,
        e.completion_note, e.withdraw_reason, e.created_at, e.updated_at,
        COALESCE(s.full_name, '') AS student_name, COALESCE(c.name, '') AS class_name, COALESCE(c.status, '') AS class_status
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN classes c ON c.id = e.class_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsInStatuses reports whether the student has an enrollment in the class with one of the statuses.
func (r *EnrollmentRepository) ExistsInStatuses(ctx context.Context, exec sqlx.ExtContext, studentID, classID string, statuses models.StatusSet) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND status = ANY($3) LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, studentID, classID, pq.Array(statuses.Strings())); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check existing enrollment: %w", err)
	}
	return true, nil
}

// CountByClass counts the class enrollments whose status is in statuses.
func (r *EnrollmentRepository) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string, statuses models.StatusSet) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND status = ANY($2)`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, classID, pq.Array(statuses.Strings())); err != nil {
		return 0, fmt.Errorf("count class enrollments: %w", err)
	}
	return count, nil
}

// ListScheduledByStudent returns the student's enrollments in statuses together with each class timetable.
// Enrollments in excludeClassID are skipped when it is set.
func (r *EnrollmentRepository) ListScheduledByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string, statuses models.StatusSet, excludeClassID string) ([]models.ScheduledEnrollment, error) {
	query := `SELECT e.id AS enrollment_id, c.id AS class_id, c.name AS class_name, c.recurring_schedule FROM enrollments e JOIN classes c ON c.id = e.class_id WHERE e.student_id = $1 AND e.status = ANY($2)`
	args := []interface{}{studentID, pq.Array(statuses.Strings())}
	if excludeClassID != "" {
		query += fmt.Sprintf(" AND e.class_id <> $%d", len(args)+1)
		args = append(args, excludeClassID)
	}
	query += " ORDER BY e.enrolled_at"

	var enrollments []models.ScheduledEnrollment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list scheduled enrollments: %w", err)
	}
	return enrollments, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusStudying
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, class_id, semester, status, enrolled_at, completed_at, completion_note, withdraw_reason, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :semester, :status, :enrolled_at, :completed_at, :completion_note, :withdraw_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus writes the status and completion fields of an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = $2, completed_at = $3, completion_note = $4, withdraw_reason = $5, updated_at = $6 WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, enrollment.ID, enrollment.Status, enrollment.CompletedAt,
		enrollment.CompletionNote, enrollment.WithdrawReason, enrollment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return expectAffected(result, "update enrollment status")
}

// Delete removes an enrollment row.
func (r *EnrollmentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM enrollments WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return expectAffected(result, "delete enrollment")
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
