package models

import "github.com/noah-isme/edu-center-api/internal/schedule"

// ConflictReport explains one overlap between a candidate class and an existing enrollment.
type ConflictReport struct {
	ClassID          string       `json:"class_id"`
	ClassName        string       `json:"class_name"`
	EnrollmentID     string       `json:"enrollment_id"`
	Day              schedule.Day `json:"day"`
	CandidateRange   string       `json:"candidate_range"`
	ConflictingRange string       `json:"conflicting_range"`
}

// CapacityStatus is the outcome of a seat check on a class.
type CapacityStatus struct {
	OK             bool `json:"ok"`
	CurrentCount   int  `json:"current_count"`
	Requested      int  `json:"requested"`
	MaxStudents    *int `json:"max_students,omitempty"`
	AvailableSlots *int `json:"available_slots,omitempty"`
	Overridden     bool `json:"overridden,omitempty"`
}
