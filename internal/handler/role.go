package handler

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/repository"
)

// RoleHandler lets an administrator inspect and edit role permission masks.
type RoleHandler struct {
	Roles RoleStore
	Log   logging.Logger
}

func NewRoleHandler(r RoleStore, log logging.Logger) *RoleHandler {
	return &RoleHandler{Roles: r, Log: log}
}

type roleView struct {
	Name        model.RoleName   `json:"role_name"`
	Mask        model.Permission `json:"role_permissions"`
	Permissions []string         `json:"permission_names"`
}

type rolePermReq struct {
	Name   string   `json:"role_name" form:"role_name"`
	Add    []string `json:"add_permissions" form:"add_permissions"`
	Remove []string `json:"remove_permissions" form:"remove_permissions"`
}

func parsePermissions(names []string) (model.Permission, bool) {
	var out model.Permission
	for _, n := range names {
		p, ok := model.ParsePermission(n)
		if !ok {
			return 0, false
		}
		out = out.With(p)
	}
	return out, true
}

// ListRoles returns every role with its mask and the flag names it holds.
func (h *RoleHandler) ListRoles(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	roles, err := h.Roles.List(ctx)
	if err != nil {
		h.Log.Error(ctx, "list roles", "err", err)
		return fail(c, "查询角色失败")
	}
	out := make([]roleView, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleView{Name: r.Name, Mask: r.Permissions, Permissions: r.Permissions.Names()})
	}
	return success(c, out)
}

// UpdateRolePermissions adds and then removes permission flags on a role.
// The Administrator role always keeps manage_role.
func (h *RoleHandler) UpdateRolePermissions(c echo.Context) error {
	var req rolePermReq
	if err := c.Bind(&req); err != nil {
		return fail(c, "参数不足")
	}
	name := model.RoleName(req.Name)
	if !name.Valid() {
		return fail(c, "角色不存在")
	}
	if len(req.Add) == 0 && len(req.Remove) == 0 {
		return fail(c, "参数不足")
	}
	add, ok := parsePermissions(req.Add)
	if !ok {
		return fail(c, "权限名称错误")
	}
	remove, ok := parsePermissions(req.Remove)
	if !ok {
		return fail(c, "权限名称错误")
	}
	if name == model.RoleAdministrator && remove.Has(model.PermManageRole) {
		return fail(c, "不能移除管理员的角色管理权限")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	roles, err := h.Roles.List(ctx)
	if err != nil {
		h.Log.Error(ctx, "list roles", "err", err)
		return fail(c, "修改角色权限失败")
	}
	current, found := model.Permission(0), false
	for _, r := range roles {
		if r.Name == name {
			current, found = r.Permissions, true
			break
		}
	}
	if !found {
		return fail(c, "角色不存在")
	}

	next := current.With(add).Without(remove)
	err = h.Roles.SetPermissions(ctx, name, next)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, "角色不存在")
	}
	if err != nil {
		h.Log.Error(ctx, "set role permissions", "role", name, "err", err)
		return fail(c, "修改角色权限失败")
	}
	h.Log.Info(ctx, "role permissions changed", "role", name, "from", current, "to", next)
	return success(c, roleView{Name: name, Mask: next, Permissions: next.Names()})
}
