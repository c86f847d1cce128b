package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/toolshare/rental-backend/internal/model"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated user's id.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the role claim of the authenticated user, or "".
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// IsAdmin reports whether the caller carries the ADMIN role.
func IsAdmin(c echo.Context) bool {
	return Role(c) == model.RoleAdmin
}

// identityKey names the caller for rate limiting: the user id when
// authenticated, otherwise "anon".
func identityKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
