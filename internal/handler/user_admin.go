package handler

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/config"
	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/repository"
	"github.com/iliyamo/farm-monitor/internal/utils"
)

// AdminHandler serves the administrator's user management endpoints.
type AdminHandler struct {
	Cfg      config.Config
	Users    UserStore
	Regions  RegionStore
	Sessions Sessions
	Log      logging.Logger
}

func NewAdminHandler(cfg config.Config, u UserStore, r RegionStore, s Sessions, log logging.Logger) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Users: u, Regions: r, Sessions: s, Log: log}
}

type createUserReq struct {
	Email      string   `json:"user_email" form:"user_email"`
	Password   string   `json:"user_password" form:"user_password"`
	RePassword string   `json:"user_repassword" form:"user_repassword"`
	Roles      []string `json:"user_roles" form:"user_roles"`
}

type userRoleReq struct {
	Email string   `json:"user_email" form:"user_email"`
	Roles []string `json:"user_roles" form:"user_roles"`
}

type userPrecinctReq struct {
	UserID     uint64 `json:"user_id" form:"user_id"`
	PrecinctID *int64 `json:"precinct_id" form:"precinct_id"`
}

// managerView is a manager together with the precinct they are responsible
// for, if any.
type managerView struct {
	model.UserView
	Precinct *model.Precinct `json:"user_precinct"`
}

// grantableRoles keeps the known role names an administrator may hand out,
// each once.  Administrator itself is never granted through the API.
func grantableRoles(names []string) []model.RoleName {
	var out []model.RoleName
	for _, n := range names {
		r := model.RoleName(n)
		if r.Valid() && r != model.RoleAdministrator && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// ListUsers returns all users, optionally filtered by an email substring.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	users, err := h.Users.List(ctx, c.QueryParam("user_email"))
	if err != nil {
		h.Log.Error(ctx, "list users", "err", err)
		return fail(c, "查询用户失败")
	}
	views := make([]model.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	return success(c, pageOf(views))
}

// CreateUser provisions an account.  The email doubles as the user name.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return fail(c, "参数不足")
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" || req.RePassword == "" {
		return fail(c, "参数不足")
	}
	if req.Password != req.RePassword {
		return fail(c, "两次密码不一致")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
		return fail(c, "该用户已注册!")
	}
	roles := grantableRoles(req.Roles)
	if len(roles) == 0 {
		roles = defaultRoles(h.Cfg, req.Email)
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, "注册失败")
	}
	u := model.User{Email: req.Email, Name: req.Email, PasswordHash: hash}
	id, err := h.Users.Create(ctx, u, roles)
	if errors.Is(err, repository.ErrEmailExists) {
		return fail(c, "该用户已注册!")
	}
	if err != nil {
		h.Log.Error(ctx, "create user", "email", req.Email, "err", err)
		return fail(c, "注册失败 (注意: 邮箱格式和密码长度)")
	}
	h.Log.Info(ctx, "user created", "user_id", id, "roles", roles)
	return success(c, nil)
}

// UpdateUserRoles replaces a user's roles.
func (h *AdminHandler) UpdateUserRoles(c echo.Context) error {
	var req userRoleReq
	if err := c.Bind(&req); err != nil {
		return fail(c, "参数不足")
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Email == "" {
		return fail(c, "参数不足")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, "用户不存在")
	}
	if err != nil {
		h.Log.Error(ctx, "role lookup", "email", req.Email, "err", err)
		return fail(c, "更改角色失败")
	}
	roles := grantableRoles(req.Roles)
	if u.HasAnyRole(model.RoleAdministrator) {
		roles = append(roles, model.RoleAdministrator)
	}
	if err := h.Users.ReplaceRoles(ctx, u.ID, roles); err != nil {
		h.Log.Error(ctx, "replace roles", "user_id", u.ID, "err", err)
		return fail(c, "更改角色失败")
	}
	return success(c, nil)
}

// ListManagers returns every manager with their precinct.
func (h *AdminHandler) ListManagers(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	users, err := h.Users.ListByRole(ctx, model.RoleManager)
	if err != nil {
		h.Log.Error(ctx, "list managers", "err", err)
		return fail(c, "查询管理员失败")
	}
	out := make([]managerView, 0, len(users))
	for _, u := range users {
		mv := managerView{UserView: u.View()}
		p, err := h.Regions.PrecinctByManager(ctx, u.ID)
		switch {
		case err == nil:
			mv.Precinct = &p
		case !errors.Is(err, repository.ErrNotFound):
			h.Log.Error(ctx, "manager precinct", "user_id", u.ID, "err", err)
			return fail(c, "查询管理员失败")
		}
		out = append(out, mv)
	}
	return success(c, pageOf(out))
}

// AssignPrecinct makes a manager responsible for a precinct.  A negative or
// absent precinct id releases the manager's current precinct.
func (h *AdminHandler) AssignPrecinct(c echo.Context) error {
	var req userPrecinctReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return fail(c, "请选择管理员进行操作")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, req.UserID)
	if err != nil || !u.HasAnyRole(model.RoleManager) {
		return fail(c, "请选择管理员进行操作")
	}

	var target *uint64
	if req.PrecinctID != nil && *req.PrecinctID >= 0 {
		id := uint64(*req.PrecinctID)
		target = &id
	}
	holder, err := h.Regions.AssignPrecinct(ctx, u.ID, target)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, "请选择正确的管理区")
	case errors.Is(err, repository.ErrPrecinctTaken):
		return fail(c, fmt.Sprintf("该管理区已有 \"%s\" 管理, 请先删除其管理权限", holder))
	case err != nil:
		h.Log.Error(ctx, "assign precinct", "user_id", u.ID, "err", err)
		return fail(c, "分配管理区失败")
	}
	return success(c, nil)
}

// RevokeSessions signs a user out everywhere.
func (h *AdminHandler) RevokeSessions(c echo.Context) error {
	id, err := strconv.ParseUint(bodyParam(c, "user_id"), 10, 64)
	if err != nil || id == 0 {
		return fail(c, "参数不足")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, id); errors.Is(err, repository.ErrNotFound) {
		return fail(c, "用户不存在")
	}
	if err := h.Sessions.RevokeAll(ctx, id); err != nil {
		h.Log.Error(ctx, "revoke all sessions", "user_id", id, "err", err)
		return errSessionStore
	}
	h.Log.Info(ctx, "sessions revoked", "user_id", id)
	return success(c, nil)
}
