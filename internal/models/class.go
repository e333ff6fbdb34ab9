package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ClassStatus tracks where a class is in its run.
type ClassStatus string

// Possible class statuses.
const (
	ClassStatusReady     ClassStatus = "ready"
	ClassStatusActive    ClassStatus = "active"
	ClassStatusCompleted ClassStatus = "completed"
	ClassStatusCancelled ClassStatus = "cancelled"
)

// Enrollable reports whether students may be placed into a class in this status.
func (s ClassStatus) Enrollable() bool {
	return s == ClassStatusReady || s == ClassStatusActive
}

// Class represents a course section with its timetable and seat limit.
type Class struct {
	ID                string         `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	MaxStudents       *int           `db:"max_students" json:"max_students,omitempty"`
	RecurringSchedule types.JSONText `db:"recurring_schedule" json:"recurring_schedule"`
	Status            ClassStatus    `db:"status" json:"status"`
	TeacherID         *string        `db:"teacher_id" json:"teacher_id,omitempty"`
	StartDate         *time.Time     `db:"start_date" json:"start_date,omitempty"`
	EndDate           *time.Time     `db:"end_date" json:"end_date,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// HasTeacher reports whether a teacher is assigned.
func (c *Class) HasTeacher() bool {
	return c.TeacherID != nil && *c.TeacherID != ""
}
