package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleManager    UserRole = "MANAGER"
	RoleStaff      UserRole = "STAFF"
	RoleTeacher    UserRole = "TEACHER"
)

// Actor identifies who performs an operation, for audit purposes.
type Actor struct {
	UserID string
	Role   UserRole
}

// IsManager reports whether the actor may force capacity overrides.
func (a Actor) IsManager() bool {
	switch a.Role {
	case RoleManager, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// UserIDPtr returns the user id or nil for anonymous/system actors.
func (a Actor) UserIDPtr() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}

// SystemActor is used for scheduled jobs.
var SystemActor = Actor{Role: RoleSuperAdmin}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
