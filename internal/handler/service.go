package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/repository"
)

// Paging defaults for the service list.
const (
	defaultPage  = 1
	defaultLimit = 100
)

// ServiceHandler manages the remote-sensing services of the signed-in
// manager's region.
type ServiceHandler struct {
	Regions  RegionStore
	Services ServiceStore
	Log      logging.Logger
}

func NewServiceHandler(r RegionStore, s ServiceStore, log logging.Logger) *ServiceHandler {
	return &ServiceHandler{Regions: r, Services: s, Log: log}
}

type serviceReq struct {
	ServiceID        string  `json:"service_id" form:"service_id"`
	Date             string  `json:"service_date" form:"service_date"`
	YearTerrainURL   *string `json:"year_terrain_url" form:"year_terrain_url"`
	YearHydrologyURL *string `json:"year_hydrology_url" form:"year_hydrology_url"`
	DayFeatureURL    *string `json:"day_feature_url" form:"day_feature_url"`
	DayGrowthURL     *string `json:"day_growth_url" form:"day_growth_url"`
}

func (r serviceReq) model(regionID uint64) (model.Service, error) {
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return model.Service{}, err
	}
	return model.Service{
		RegionID:         regionID,
		Date:             d,
		YearTerrainURL:   r.YearTerrainURL,
		YearHydrologyURL: r.YearHydrologyURL,
		DayFeatureURL:    r.DayFeatureURL,
		DayGrowthURL:     r.DayGrowthURL,
	}, nil
}

// region returns the region id of the manager's precinct.  It writes the
// failure response itself when ok is false.
func (h *ServiceHandler) region(c echo.Context) (regionID uint64, ok bool, resp error) {
	p, found, err := managedPrecinct(c, h.Regions)
	if err != nil {
		h.Log.Error(c.Request().Context(), "manager precinct", "err", err)
		return 0, false, fail(c, "查询管理区失败")
	}
	if !found {
		return 0, false, fail(c, "当前管理员没有管理区域")
	}
	return p.RegionID, true, nil
}

// List pages through the region's services, newest first.  page and limit
// default to 1 and 100; a limit of 0 returns only the count.  With
// service_id only that service is returned.
func (h *ServiceHandler) List(c echo.Context) error {
	regionID, ok, resp := h.region(c)
	if !ok {
		return resp
	}
	if id := c.QueryParam("service_id"); id != "" {
		return h.one(c, regionID, id)
	}
	page, limit := defaultPage, defaultLimit
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fail(c, "page 应为正整数")
		}
		page = n
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fail(c, "limit 应为非负整数")
		}
		limit = n
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	total, err := h.Services.Count(ctx, regionID)
	if err != nil {
		h.Log.Error(ctx, "count services", "region_id", regionID, "err", err)
		return fail(c, "查询服务失败")
	}
	items := []model.Service{}
	if limit > 0 {
		items, err = h.Services.Page(ctx, regionID, (page-1)*limit, limit)
		if err != nil {
			h.Log.Error(ctx, "page services", "region_id", regionID, "err", err)
			return fail(c, "查询服务失败")
		}
	}
	return success(c, Page{Data: listOf(items), Count: total})
}

func (h *ServiceHandler) one(c echo.Context, regionID uint64, id string) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	s, err := h.Services.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && s.RegionID != regionID) {
		return fail(c, "请传入正确的服务id")
	}
	if err != nil {
		h.Log.Error(ctx, "get service", "service_id", id, "err", err)
		return fail(c, "查询服务失败")
	}
	return success(c, Page{Data: []model.Service{s}, Count: 1})
}

// Create adds a service for the manager's region.
func (h *ServiceHandler) Create(c echo.Context) error {
	regionID, ok, resp := h.region(c)
	if !ok {
		return resp
	}
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return fail(c, "上传服务失败")
	}
	s, err := req.model(regionID)
	if err != nil {
		return fail(c, "日期格式错误, 应为 YYYY-MM-DD")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	id, err := h.Services.Create(ctx, s)
	if errors.Is(err, repository.ErrConflict) {
		return fail(c, "该日期的服务已存在")
	}
	if err != nil {
		h.Log.Error(ctx, "create service", "region_id", regionID, "err", err)
		return fail(c, "上传服务失败")
	}
	return success(c, echo.Map{"service_id": id})
}

// Update rewrites one of the region's services.  Changing the date changes
// the service id, which is returned.
func (h *ServiceHandler) Update(c echo.Context) error {
	regionID, ok, resp := h.region(c)
	if !ok {
		return resp
	}
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return fail(c, "修改服务失败")
	}
	if strings.TrimSpace(req.ServiceID) == "" {
		return fail(c, "请传入正确的服务id")
	}
	s, err := req.model(regionID)
	if err != nil {
		return fail(c, "日期格式错误, 应为 YYYY-MM-DD")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	id, err := h.Services.Update(ctx, req.ServiceID, s)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, "请传入正确的服务id")
	case errors.Is(err, repository.ErrConflict):
		return fail(c, "该日期的服务已存在")
	case err != nil:
		h.Log.Error(ctx, "update service", "service_id", req.ServiceID, "err", err)
		return fail(c, "修改服务失败")
	}
	return success(c, echo.Map{"service_id": id})
}

// Delete removes one of the region's services.
func (h *ServiceHandler) Delete(c echo.Context) error {
	regionID, ok, resp := h.region(c)
	if !ok {
		return resp
	}
	id := bodyParam(c, "service_id")
	if id == "" {
		return fail(c, "请传入正确的服务id")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	err := h.Services.Delete(ctx, regionID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, "请传入正确的服务id")
	}
	if err != nil {
		h.Log.Error(ctx, "delete service", "service_id", id, "err", err)
		return fail(c, "删除服务失败")
	}
	return success(c, nil)
}
