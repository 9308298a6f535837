package middleware

// identity.go holds the context keys written by JWTAuth and the accessors
// handlers use to read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/model"
)

const (
	ctxUser  = "user"
	ctxToken = "token"
)

// SetSession records the authenticated user and token on the context.
func SetSession(c echo.Context, u model.User, token string) {
	c.Set(ctxUser, u)
	c.Set(ctxToken, token)
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ctxUser).(model.User)
	return u, ok
}

// CurrentToken returns the raw session token of the request.
func CurrentToken(c echo.Context) string {
	s, _ := c.Get(ctxToken).(string)
	return s
}

// userID returns the authenticated user's id as a string, or "anon".
func userID(c echo.Context) string {
	if u, ok := CurrentUser(c); ok {
		return strconv.FormatUint(u.ID, 10)
	}
	return "anon"
}
