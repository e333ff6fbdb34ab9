package dto

import "github.com/noah-isme/edu-center-api/internal/models"

// EnrollRequest places one student into a class.
type EnrollRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	ClassID   string `json:"classId" validate:"required"`
	Semester  string `json:"semester" validate:"max=32"`
}

// UpdateStatusRequest moves an enrollment along its lifecycle.
type UpdateStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=studying not_been_updated withdrawn stopped graduated"`
	Note   string                  `json:"note" validate:"max=500"`
}

// TransferRequest moves a student from the enrollment's class to another class.
type TransferRequest struct {
	NewClassID string `json:"newClassId" validate:"required"`
	Semester   string `json:"semester" validate:"max=32"`
	Reason     string `json:"reason" validate:"max=500"`
}

// TransferResult reports both sides of a transfer.
type TransferResult struct {
	Previous        models.Enrollment  `json:"previous"`
	PreviousDeleted bool               `json:"previousDeleted"`
	Enrollment      *models.Enrollment `json:"enrollment"`
}

// ConflictCheckRequest asks whether a class timetable clashes with the student's current classes.
type ConflictCheckRequest struct {
	StudentID      string `json:"studentId" validate:"required"`
	ClassID        string `json:"classId" validate:"required"`
	ExcludeClassID string `json:"excludeClassId"`
}

// ConflictCheckResponse lists every clash found.
type ConflictCheckResponse struct {
	HasConflict bool                    `json:"hasConflict"`
	Conflicts   []models.ConflictReport `json:"conflicts"`
}
