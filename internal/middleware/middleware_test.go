package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-monitor/internal/auth"
	"github.com/iliyamo/farm-monitor/internal/config"
	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/repository"
)

const testSecret = "mw-secret"

type stubUsers map[uint64]model.User

func (s stubUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func role(name model.RoleName) model.Role {
	return model.Role{Name: name, Permissions: model.DefaultRolePermissions[name]}
}

type fixture struct {
	e      *echo.Echo
	issuer *auth.Issuer
	rdb    *redis.Client
	mr     *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := repository.NewTokenRepo(rdb)
	users := stubUsers{
		1: {ID: 1, Roles: []model.Role{role(model.RoleUser)}},
		2: {ID: 2, Roles: []model.Role{role(model.RoleManager), role(model.RoleUser)}},
	}
	gate := auth.NewGate(testSecret, store, users)

	e := echo.New()
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/user", ok, JWTAuth(gate), RequireRole(model.RoleUser, model.RoleManager))
	e.GET("/manager", ok, JWTAuth(gate), RequireRole(model.RoleManager))
	e.GET("/import", ok, JWTAuth(gate), RequirePermission(model.PermImportData, model.PermViewWeather))

	return &fixture{e: e, issuer: auth.NewIssuer(testSecret, time.Hour, store), rdb: rdb, mr: mr}
}

func (f *fixture) do(path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) bearer(t *testing.T, userID uint64) string {
	t.Helper()
	tok, err := f.issuer.Issue(context.Background(), userID)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuth_Missing(t *testing.T) {
	f := newFixture(t)
	rec := f.do("/user", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"msg":"Missing Authorization Header"}`, rec.Body.String())
}

func TestJWTAuth_Garbage(t *testing.T) {
	f := newFixture(t)
	rec := f.do("/user", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired token: ")
}

func TestJWTAuth_Revoked(t *testing.T) {
	f := newFixture(t)
	h := f.bearer(t, 1)
	require.Equal(t, http.StatusOK, f.do("/user", h).Code)

	require.NoError(t, f.issuer.RevokeAll(context.Background(), 1))

	rec := f.do("/user", h)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"msg":"Token has been revoked"}`, rec.Body.String())
}

func TestJWTAuth_UserNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do("/user", f.bearer(t, 404))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"msg":"User not found"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	f := newFixture(t)

	rec := f.do("/manager", f.bearer(t, 1))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"msg":"No Permission"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, f.do("/manager", f.bearer(t, 2)).Code)
	assert.Equal(t, http.StatusOK, f.do("/user", f.bearer(t, 1)).Code)
}

func TestRequirePermission(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusForbidden, f.do("/import", f.bearer(t, 1)).Code)
	// import_data (Manager) and view_weather (User) only meet in the OR.
	assert.Equal(t, http.StatusOK, f.do("/import", f.bearer(t, 2)).Code)
}

func TestNewTokenBucket_Blocks(t *testing.T) {
	f := newFixture(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            5 * time.Minute,
		KeyStrategy:    StrategyIP,
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/api/signin", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, f.rdb, logging.Nop()))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/signin", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 2 {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewTokenBucket_PerAccount(t *testing.T) {
	f := newFixture(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            5 * time.Minute,
		KeyStrategy:    StrategyIPAccount,
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/api/signin", func(c echo.Context) error {
		var req struct {
			Email string `json:"user_email" form:"user_email"`
		}
		if err := c.Bind(&req); err != nil {
			return err
		}
		return c.String(http.StatusOK, req.Email)
	}, NewTokenBucket(cfg, f.rdb, logging.Nop()))

	signin := func(ip string, req *http.Request) *httptest.ResponseRecorder {
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	form := func(email string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/signin", strings.NewReader(url.Values{"user_email": {email}}.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		return req
	}
	jsonBody := func(email string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/signin", strings.NewReader(`{"user_email":"`+email+`"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return req
	}

	// Attempts against one account from rotating addresses share a bucket,
	// and the email is normalized before keying.
	rec := signin("10.0.0.1", form("Victim@163.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Victim@163.com", rec.Body.String())
	rec = signin("10.0.0.2", jsonBody(" victim@163.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, " victim@163.com", rec.Body.String(), "JSON body must still reach the handler")
	assert.Equal(t, http.StatusTooManyRequests, signin("10.0.0.3", form("victim@163.com")).Code)

	// Another account is unaffected.
	assert.Equal(t, http.StatusOK, signin("10.0.0.3", form("other@163.com")).Code)
}

func TestNewTokenBucket_DisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, logging.Nop()))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRedisCache_OnlySuccessEnvelopes(t *testing.T) {
	f := newFixture(t)
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "cache",
	}
	calls := 0
	e := echo.New()
	e.GET("/api/region", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"message": "操作成功", "code": 0, "data": []int{1}})
	}, NewRedisCache(cfg, f.rdb))
	e.GET("/api/crop", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"message": "操作失败", "code": 1, "data": nil})
	}, NewRedisCache(cfg, f.rdb))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, "MISS", get("/api/region").Header().Get("X-Cache"))
	hit := get("/api/region")
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Contains(t, hit.Body.String(), `"code":0`)
	assert.Equal(t, 1, calls)

	get("/api/crop")
	assert.Equal(t, "MISS", get("/api/crop").Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}
