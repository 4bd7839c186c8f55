package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated admin id stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	s, ok := c.Get("user_id").(string)
	if !ok || s == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// subject identifies the caller for rate limiting; anonymous riders share "anon".
func subject(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}
