package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusStudying       EnrollmentStatus = "studying"
	EnrollmentStatusNotBeenUpdated EnrollmentStatus = "not_been_updated"
	EnrollmentStatusWithdrawn      EnrollmentStatus = "withdrawn"
	EnrollmentStatusStopped        EnrollmentStatus = "stopped"
	EnrollmentStatusGraduated      EnrollmentStatus = "graduated"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusStudying, EnrollmentStatusNotBeenUpdated, EnrollmentStatusWithdrawn,
		EnrollmentStatusStopped, EnrollmentStatusGraduated:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s EnrollmentStatus) Terminal() bool {
	return len(enrollmentTransitions[s]) == 0
}

// StatusSet is a named group of enrollment statuses.
type StatusSet []EnrollmentStatus

// Contains reports whether status belongs to the set.
func (s StatusSet) Contains(status EnrollmentStatus) bool {
	for _, candidate := range s {
		if candidate == status {
			return true
		}
	}
	return false
}

// Strings returns the set as plain strings for array query parameters.
func (s StatusSet) Strings() []string {
	out := make([]string, len(s))
	for i, status := range s {
		out[i] = string(status)
	}
	return out
}

// The three sets below overlap but are not interchangeable.
var (
	// ScheduleBlockingStatuses occupy the student's timetable for conflict checks.
	ScheduleBlockingStatuses = StatusSet{EnrollmentStatusStudying}
	// DuplicateBlockingStatuses prevent a second enrollment of the same student in the same class.
	DuplicateBlockingStatuses = StatusSet{EnrollmentStatusStudying, EnrollmentStatusNotBeenUpdated}
	// CapacityOccupyingStatuses hold a seat: every status except stopped and graduated.
	CapacityOccupyingStatuses = StatusSet{EnrollmentStatusStudying, EnrollmentStatusNotBeenUpdated, EnrollmentStatusWithdrawn}
)

var enrollmentTransitions = map[EnrollmentStatus]StatusSet{
	EnrollmentStatusStudying:       {EnrollmentStatusWithdrawn, EnrollmentStatusStopped, EnrollmentStatusGraduated},
	EnrollmentStatusNotBeenUpdated: {EnrollmentStatusStudying, EnrollmentStatusWithdrawn},
}

// CanTransition reports whether an enrollment may move from one status to another.
func CanTransition(from, to EnrollmentStatus) bool {
	return enrollmentTransitions[from].Contains(to)
}

// Enrollment captures a student's registration to a class within a semester.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	ClassID        string           `db:"class_id" json:"class_id"`
	Semester       string           `db:"semester" json:"semester"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt     time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt    *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CompletionNote *string          `db:"completion_note" json:"completion_note,omitempty"`
	WithdrawReason *string          `db:"withdraw_reason" json:"withdraw_reason,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string      `db:"student_name" json:"student_name"`
	ClassName   string      `db:"class_name" json:"class_name"`
	ClassStatus ClassStatus `db:"class_status" json:"class_status"`
}

// ScheduledEnrollment is a student's enrollment joined with its class timetable.
type ScheduledEnrollment struct {
	EnrollmentID      string         `db:"enrollment_id"`
	ClassID           string         `db:"class_id"`
	ClassName         string         `db:"class_name"`
	RecurringSchedule types.JSONText `db:"recurring_schedule"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	ClassID   string
	Semester  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
