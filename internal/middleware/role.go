package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/farm-monitor/internal/auth"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// RequireRole returns a middleware function that lets the request through
// when the authenticated user holds at least one of the given roles.  Roles
// are read from the user resolved by JWTAuth, so changes made by an
// administrator apply to the very next request.  Otherwise the request is
// aborted with 403 {"msg":"No Permission"}.
func RequireRole(roles ...model.RoleName) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return msg(c, http.StatusUnauthorized, "User not found")
			}
			if err := auth.AuthorizeRoles(u, roles...); err != nil {
				return msg(c, http.StatusForbidden, "No Permission")
			}
			return next(c)
		}
	}
}

// RequirePermission demands every bit of the combined flags.  The user's
// effective mask is the OR of all its roles.
func RequirePermission(flags ...model.Permission) echo.MiddlewareFunc {
	required := model.Perms(flags...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return msg(c, http.StatusUnauthorized, "User not found")
			}
			if err := auth.AuthorizePermissions(u, required); err != nil {
				return msg(c, http.StatusForbidden, "No Permission")
			}
			return next(c)
		}
	}
}
