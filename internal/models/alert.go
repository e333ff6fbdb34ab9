package models

import (
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AlertType classifies an alert.
type AlertType string

// Alert types raised by the scanner and by domain events.
const (
	AlertTypeClassStartingSoon    AlertType = "class_starting_soon"
	AlertTypeClassEndingSoon      AlertType = "class_ending_soon"
	AlertTypeNewEnrollmentRequest AlertType = "new_enrollment_request"
)

// AlertSeverity indicates how urgent an alert is.
type AlertSeverity string

// Alert severities.
const (
	AlertSeverityInfo    AlertSeverity = "info"
	AlertSeverityWarning AlertSeverity = "warning"
)

// Alert is an operator-facing notification.
type Alert struct {
	ID          string         `db:"id" json:"id"`
	AlertType   AlertType      `db:"alert_type" json:"alert_type"`
	Title       string         `db:"title" json:"title"`
	Message     string         `db:"message" json:"message"`
	Severity    AlertSeverity  `db:"severity" json:"severity"`
	Payload     types.JSONText `db:"payload" json:"payload"`
	DedupKey    *string        `db:"dedup_key" json:"-"`
	IsRead      bool           `db:"is_read" json:"is_read"`
	Processed   bool           `db:"processed" json:"processed"`
	TriggeredAt time.Time      `db:"triggered_at" json:"triggered_at"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// AlertPayload is the structured part of an alert used for deduplication.
type AlertPayload struct {
	SubjectID    string                 `json:"subjectId"`
	SubjectKind  string                 `json:"subjectKind"`
	ThresholdKey string                 `json:"thresholdKey,omitempty"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

// AlertInput describes an alert to raise.
type AlertInput struct {
	Type     AlertType
	Title    string
	Message  string
	Severity AlertSeverity
	Payload  AlertPayload
}

// AlertDedupKey builds the uniqueness key for scanner alerts.
func AlertDedupKey(alertType AlertType, subjectID, thresholdKey string) string {
	return strings.Join([]string{string(alertType), subjectID, thresholdKey}, "|")
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Type     AlertType
	Unread   *bool
	Page     int
	PageSize int
}
