package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/farm-monitor/internal/auth"       // request authentication
	"github.com/iliyamo/farm-monitor/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/farm-monitor/internal/middleware" // JWT, role and permission guards
	"github.com/iliyamo/farm-monitor/internal/model"
)

// Handlers groups everything RegisterAPI wires.
type Handlers struct {
	Auth        *handler.AuthHandler
	Admin       *handler.AdminHandler
	Role        *handler.RoleHandler
	Region      *handler.RegionHandler
	Information *handler.InformationHandler
	Service     *handler.ServiceHandler
}

// Guards holds the request guards shared by the routes.  RateLimit and
// Cache may be nil, in which case they are skipped.
type Guards struct {
	Gate      *auth.Gate
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterRoutes registers routes that do not require authentication.
// /healthz only reports that the process is up; /readyz checks the stores.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// guard builds the middleware chain of a protected route.  The order is
// fixed: authentication, then the role check, then the permission check.
func (g Guards) guard(roles []model.RoleName, perms ...model.Permission) []echo.MiddlewareFunc {
	chain := []echo.MiddlewareFunc{middleware.JWTAuth(g.Gate), middleware.RequireRole(roles...)}
	if len(perms) > 0 {
		chain = append(chain, middleware.RequirePermission(perms...))
	}
	return chain
}

func optional(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	var out []echo.MiddlewareFunc
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

var (
	anyRole  = []model.RoleName{model.RoleUser, model.RoleManager, model.RoleAdministrator}
	viewers  = []model.RoleName{model.RoleUser, model.RoleManager}
	managers = []model.RoleName{model.RoleManager}
	admins   = []model.RoleName{model.RoleAdministrator}
)

// RegisterAPI registers every /api endpoint.
func RegisterAPI(e *echo.Echo, h Handlers, g Guards) {
	api := e.Group("/api")

	registerAuth(api, h.Auth, g)
	registerAdmin(api, h.Admin, h.Role, g)
	registerInformation(api, h.Region, h.Information, h.Service, g)
}

// registerAuth wires account endpoints.  Sign-up and sign-in are open but
// rate limited; everything else needs a session.
func registerAuth(api *echo.Group, a *handler.AuthHandler, g Guards) {
	api.POST("/signup", a.Signup, optional(g.RateLimit)...)
	api.POST("/signin", a.Signin, optional(g.RateLimit)...)

	session := g.guard(anyRole)
	api.POST("/signout", a.Signout, session...)
	api.GET("/user_info", a.UserInfo, session...)
	api.PUT("/user_info", a.UpdateUserInfo, session...)
	api.PATCH("/user_info", a.ChangePassword, session...)
}
