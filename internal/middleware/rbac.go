package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

// RequireRoles lets the request through only when the authenticated user has one of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Staff roles may run the enrollment workflows.
var Staff = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleManager, models.RoleStaff}

// Managers may bypass capacity and delete enrollments.
var Managers = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleManager}
