package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userKey renders the authenticated user id for cache and rate limit
// keys.  Unauthenticated requests map to anon.  JSON numbers decode as
// float64, so the claim usually arrives in that form.
func userKey(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case string:
		if v != "" {
			return v
		}
	}
	return "anon"
}
