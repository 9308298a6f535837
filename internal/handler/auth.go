package handler

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/farm-monitor/internal/config"     // app configuration
	"github.com/iliyamo/farm-monitor/internal/logging"    // structured logger
	"github.com/iliyamo/farm-monitor/internal/middleware" // authenticated user lookup
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/repository" // DB repositories
	"github.com/iliyamo/farm-monitor/internal/utils"      // password hashing
)

var errSessionStore = echo.NewHTTPError(http.StatusServiceUnavailable, "Session store unavailable")

// AuthHandler bundles dependencies for the account endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions Sessions
	Log      logging.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, s Sessions, log logging.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s, Log: log}
}

// ----- DTOs -----

type signupReq struct {
	Email      string `json:"user_email" form:"user_email"`
	Name       string `json:"user_name" form:"user_name"`
	Password   string `json:"user_password" form:"user_password"`
	RePassword string `json:"user_repassword" form:"user_repassword"`
}

type signinReq struct {
	Email    string `json:"user_email" form:"user_email"`
	Password string `json:"user_password" form:"user_password"`
}

type profileReq struct {
	Name     string  `json:"user_name" form:"user_name"`
	Sex      *string `json:"user_sex" form:"user_sex"`
	Tel      *string `json:"user_tel" form:"user_tel"`
	Address  *string `json:"user_address" form:"user_address"`
	Position *string `json:"user_position" form:"user_position"`
}

type passwordReq struct {
	Old string `json:"user_old_password" form:"user_old_password"`
	New string `json:"user_new_password" form:"user_new_password"`
	Re  string `json:"user_re_password" form:"user_re_password"`
}

// profile is the signed-in user's own view; the id is not exposed.
type profile struct {
	Email    string           `json:"user_email"`
	Name     string           `json:"user_name"`
	Tel      *string          `json:"user_tel"`
	Sex      *string          `json:"user_sex"`
	Address  *string          `json:"user_address"`
	Position *string          `json:"user_position"`
	Roles    []model.RoleName `json:"user_roles"`
}

// defaultRoles assigns roles to a self-registered account from the
// configured email lists.
func defaultRoles(cfg config.Config, email string) []model.RoleName {
	switch {
	case slices.Contains(cfg.AdminEmails, email):
		return []model.RoleName{model.RoleAdministrator}
	case slices.Contains(cfg.ManagerEmails, email):
		return []model.RoleName{model.RoleManager, model.RoleUser}
	default:
		return []model.RoleName{model.RoleUser}
	}
}

// Signup creates an account.  Roles come from the configured email lists.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return fail(c, "参数不足")
	}
	req.Email = repository.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || req.Password == "" || req.RePassword == "" {
		return fail(c, "参数不足")
	}
	if req.Password != req.RePassword {
		return fail(c, "两次密码不一致")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
		return fail(c, "该用户已注册!")
	} else if !errors.Is(err, repository.ErrNotFound) {
		h.Log.Error(ctx, "signup lookup", "email", req.Email, "err", err)
		return fail(c, "注册失败")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, "注册失败")
	}
	u := model.User{Email: req.Email, Name: req.Name, PasswordHash: hash}
	if _, err := h.Users.Create(ctx, u, defaultRoles(h.Cfg, req.Email)); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, "该用户已注册!")
		}
		h.Log.Error(ctx, "signup", "email", req.Email, "err", err)
		return fail(c, "注册失败")
	}
	h.Log.Info(ctx, "user registered", "email", req.Email)
	return success(c, nil)
}

// Signin verifies the credentials and returns "Bearer <token>".
func (h *AuthHandler) Signin(c echo.Context) error {
	var req signinReq
	if err := c.Bind(&req); err != nil {
		return fail(c, "参数不足")
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return fail(c, "参数不足")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, "用户不存在, 请先注册!")
	}
	if err != nil {
		h.Log.Error(ctx, "signin lookup", "email", req.Email, "err", err)
		return fail(c, "登录失败")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, "邮箱或密码错误")
	}

	tok, err := h.Sessions.Issue(ctx, u.ID)
	if err != nil {
		h.Log.Error(ctx, "issue session", "user_id", u.ID, "err", err)
		return errSessionStore
	}
	return success(c, "Bearer "+tok.Token)
}

// Signout revokes the token the request was made with.
func (h *AuthHandler) Signout(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, middleware.CurrentToken(c)); err != nil {
		h.Log.Error(ctx, "revoke session", "err", err)
		return errSessionStore
	}
	return success(c, nil)
}

// UserInfo returns the signed-in user's profile.
func (h *AuthHandler) UserInfo(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	return success(c, profile{
		Email:    u.Email,
		Name:     u.Name,
		Tel:      u.Tel,
		Sex:      u.Sex,
		Address:  u.Address,
		Position: u.Position,
		Roles:    u.RoleNames(),
	})
}

// UpdateUserInfo replaces the editable profile fields.
func (h *AuthHandler) UpdateUserInfo(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return fail(c, "修改个人信息失败")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fail(c, "参数不足")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	p := repository.Profile{Name: req.Name, Sex: req.Sex, Tel: req.Tel, Address: req.Address, Position: req.Position}
	if err := h.Users.UpdateProfile(ctx, u.ID, p); err != nil {
		h.Log.Error(ctx, "update profile", "user_id", u.ID, "err", err)
		return fail(c, "修改个人信息失败")
	}
	return success(c, nil)
}

// ChangePassword sets a new password and ends every session of the user,
// including the one making the request.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var req passwordReq
	if err := c.Bind(&req); err != nil || req.Old == "" || req.New == "" || req.Re == "" {
		return fail(c, "缺少参数")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Old) {
		return fail(c, "原密码不正确")
	}
	if req.New != req.Re {
		return fail(c, "两次密码不一致")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	hash, err := utils.HashPassword(req.New, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, "修改密码失败")
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		h.Log.Error(ctx, "update password", "user_id", u.ID, "err", err)
		return fail(c, "修改密码失败")
	}
	if err := h.Sessions.RevokeAll(ctx, u.ID); err != nil {
		h.Log.Error(ctx, "revoke sessions after password change", "user_id", u.ID, "err", err)
		return errSessionStore
	}
	return success(c, nil)
}
