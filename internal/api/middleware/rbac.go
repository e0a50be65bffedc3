package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

// RBAC lets the request through only when the user_type set by Auth is one
// of allowedRoles.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxUserType).(domain.Role)
			if _, ok := allowed[role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"detail": "Admin privileges required"})
			}
			return next(c)
		}
	}
}
