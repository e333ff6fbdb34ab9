package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionCapacityOverride = "CAPACITY_OVERRIDE"
	AuditActionForceApprove     = "ENROLLMENT_REQUEST_FORCE_APPROVE"
	AuditActionEnrollmentDelete = "ENROLLMENT_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string         `db:"id" json:"id"`
	UserID     *string        `db:"user_id" json:"user_id,omitempty"`
	Action     string         `db:"action" json:"action"`
	Resource   string         `db:"resource" json:"resource"`
	ResourceID *string        `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  types.JSONText `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
