package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// StudentRepository reads student accounts.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID loads a student. exec may be nil to use the pool.
func (r *StudentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT id, full_name, parent_id, active, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := sqlx.GetContext(ctx, exec, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}
