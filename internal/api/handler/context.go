package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/orderdesk/internal/api/middleware"
	"github.com/99minutos/orderdesk/internal/core/domain"
)

// ctxIdentity extracts the caller injected by the Auth middleware. A zero
// user id means the middleware did not run; reject with 401.
func ctxIdentity(c echo.Context) (userID int64, role domain.Role, err error) {
	userID, _ = c.Get(middleware.CtxUserID).(int64)
	if userID == 0 {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	role, _ = c.Get(middleware.CtxUserType).(domain.Role)
	return userID, role, nil
}
