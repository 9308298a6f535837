package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"   // matching gate failures
	"net/http" // HTTP status codes for responses

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/farm-monitor/internal/auth"
)

// JWTAuth returns an Echo middleware that authenticates the request through
// the gate: Bearer extraction, signature and expiry check, revocation lookup
// and user resolution, in that order.  On success the resolved user and the
// raw token are stored in the context (see CurrentUser and CurrentToken).
// Every failure stops the chain with a 401 and a {"msg": ...} body.
func JWTAuth(gate *auth.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := gate.Authenticate(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return denyAuth(c, err)
			}
			SetSession(c, s.User, s.Token)
			return next(c)
		}
	}
}

func denyAuth(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrAuthMissing):
		return msg(c, http.StatusUnauthorized, "Missing Authorization Header")
	case errors.Is(err, auth.ErrAuthExpired), errors.Is(err, auth.ErrAuthInvalid):
		return msg(c, http.StatusUnauthorized, "Invalid or expired token: "+auth.Reason(err))
	case errors.Is(err, auth.ErrAuthRevoked):
		return msg(c, http.StatusUnauthorized, "Token has been revoked")
	case errors.Is(err, auth.ErrNotAuthenticated):
		return msg(c, http.StatusUnauthorized, "User not found")
	case errors.Is(err, auth.ErrStoreUnavailable):
		c.Logger().Errorf("auth: %v", err)
		return msg(c, http.StatusServiceUnavailable, "Session store unavailable")
	default:
		return err
	}
}

func msg(c echo.Context, status int, text string) error {
	return c.JSON(status, echo.Map{"msg": text})
}
