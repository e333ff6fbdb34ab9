package dto

// CreateEnrollmentRequest asks staff to place a student into a class.
type CreateEnrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	ClassID   string `json:"classId" validate:"required"`
	Note      string `json:"note" validate:"max=500"`
}

// ApproveEnrollmentRequest approves a pending request.
type ApproveEnrollmentRequest struct {
	Semester      string `json:"semester" validate:"max=32"`
	ForceCapacity bool   `json:"forceCapacity"`
	Note          string `json:"note" validate:"max=500"`
}

// RejectEnrollmentRequest rejects a pending request.
type RejectEnrollmentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}
