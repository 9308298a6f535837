package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/handler"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// registerAdmin wires the administrator's user management.  All routes
// require the Administrator role plus the matching permission bit.
func registerAdmin(api *echo.Group, a *handler.AdminHandler, r *handler.RoleHandler, g Guards) {
	manageUser := g.guard(admins, model.PermManageUser)
	api.GET("/user", a.ListUsers, manageUser...)
	api.POST("/user", a.CreateUser, manageUser...)
	api.DELETE("/user_session", a.RevokeSessions, manageUser...)

	manageRole := g.guard(admins, model.PermManageRole)
	api.POST("/user_role", a.UpdateUserRoles, manageRole...)
	api.GET("/role", r.ListRoles, manageRole...)
	api.POST("/role", r.UpdateRolePermissions, manageRole...)

	assign := g.guard(admins, model.PermAssignPrecinct)
	api.GET("/user_precinct", a.ListManagers, assign...)
	api.POST("/user_precinct", a.AssignPrecinct, assign...)
}
