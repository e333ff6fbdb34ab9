package dto

import "github.com/noah-isme/edu-center-api/internal/models"

// BulkEnrollRequest enrolls many students into one class.
type BulkEnrollRequest struct {
	StudentIDs       []string `json:"studentIds" validate:"required,min=1,max=500,dive,required"`
	ClassID          string   `json:"classId" validate:"required"`
	Semester         string   `json:"semester" validate:"max=32"`
	OverrideCapacity bool     `json:"overrideCapacity"`
}

// BulkFailure explains why one student could not be enrolled.
type BulkFailure struct {
	StudentID string      `json:"studentId"`
	Code      string      `json:"code"`
	Reason    string      `json:"reason"`
	Details   interface{} `json:"details,omitempty"`
}

// BulkEnrollResult collects per-student outcomes in input order.
type BulkEnrollResult struct {
	ClassID string              `json:"classId"`
	Success []models.Enrollment `json:"success"`
	Failed  []BulkFailure       `json:"failed"`
}
