package models

import "time"

// EnrollmentRequestStatus tracks the review of a request.
type EnrollmentRequestStatus string

// Request review states.
const (
	EnrollmentRequestPending  EnrollmentRequestStatus = "pending"
	EnrollmentRequestApproved EnrollmentRequestStatus = "approved"
	EnrollmentRequestRejected EnrollmentRequestStatus = "rejected"
)

// EnrollmentRequest is a pending ask to place a student into a class.
type EnrollmentRequest struct {
	ID           string                  `db:"id" json:"id"`
	StudentID    string                  `db:"student_id" json:"student_id"`
	ClassID      string                  `db:"class_id" json:"class_id"`
	Note         *string                 `db:"note" json:"note,omitempty"`
	Status       EnrollmentRequestStatus `db:"status" json:"status"`
	RequestedBy  *string                 `db:"requested_by" json:"requested_by,omitempty"`
	DecidedBy    *string                 `db:"decided_by" json:"decided_by,omitempty"`
	DecisionNote *string                 `db:"decision_note" json:"decision_note,omitempty"`
	EnrollmentID *string                 `db:"enrollment_id" json:"enrollment_id,omitempty"`
	CreatedAt    time.Time               `db:"created_at" json:"created_at"`
	DecidedAt    *time.Time              `db:"decided_at" json:"decided_at,omitempty"`
}
