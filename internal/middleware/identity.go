package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// subject renders the authenticated user id for use in Redis keys.  JSON
// numbers arrive as float64 from the token claims.  Unauthenticated
// requests share the "anon" identity.
func subject(c echo.Context) string {
	switch v := c.Get(CtxUserID).(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}
