package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edu-center-api/internal/models"
)

const classColumns = `id, name, max_students, recurring_schedule, status, teacher_id, start_date, end_date, created_at, updated_at`

// ClassRepository reads class configuration needed by the enrollment engine.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

func (r *ClassRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a class.
func (r *ClassRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	var class models.Class
	if err := sqlx.GetContext(ctx, r.exec(exec), &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByIDForUpdate loads a class and locks its row, serialising seat counting per class.
func (r *ClassRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1 FOR UPDATE`
	var class models.Class
	if err := sqlx.GetContext(ctx, r.exec(exec), &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListStartingOn returns classes in statuses whose start date is day.
func (r *ClassRepository) ListStartingOn(ctx context.Context, day time.Time, statuses []models.ClassStatus) ([]models.Class, error) {
	return r.listByDate(ctx, "start_date", day, statuses)
}

// ListEndingOn returns classes in statuses whose end date is day.
func (r *ClassRepository) ListEndingOn(ctx context.Context, day time.Time, statuses []models.ClassStatus) ([]models.Class, error) {
	return r.listByDate(ctx, "end_date", day, statuses)
}

func (r *ClassRepository) listByDate(ctx context.Context, column string, day time.Time, statuses []models.ClassStatus) ([]models.Class, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE %s = $1::date AND status = ANY($2) ORDER BY name`, classColumns, column)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, day.Format("2006-01-02"), pq.Array(names)); err != nil {
		return nil, fmt.Errorf("list classes by %s: %w", column, err)
	}
	return classes, nil
}
