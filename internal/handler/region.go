package handler

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/middleware"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/repository"
)

// RegionHandler serves the read-only catalogue endpoints.
type RegionHandler struct {
	Regions RegionStore
	Log     logging.Logger
}

func NewRegionHandler(r RegionStore, log logging.Logger) *RegionHandler {
	return &RegionHandler{Regions: r, Log: log}
}

func (h *RegionHandler) ListRegions(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	regions, err := h.Regions.ListRegions(ctx)
	if err != nil {
		h.Log.Error(ctx, "list regions", "err", err)
		return fail(c, "查询地区失败")
	}
	return success(c, listOf(regions))
}

func (h *RegionHandler) ListCrops(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	crops, err := h.Regions.ListCrops(ctx)
	if err != nil {
		h.Log.Error(ctx, "list crops", "err", err)
		return fail(c, "查询作物失败")
	}
	return success(c, listOf(crops))
}

// ListPrecincts returns every precinct of the region the signed-in manager
// works in.
func (h *RegionHandler) ListPrecincts(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, ok, err := managedPrecinct(c, h.Regions)
	if err != nil {
		h.Log.Error(ctx, "manager precinct", "err", err)
		return fail(c, "查询管理区失败")
	}
	if !ok {
		return fail(c, "当前用户并没有管理区域")
	}
	precincts, err := h.Regions.ListPrecincts(ctx, p.RegionID)
	if err != nil {
		h.Log.Error(ctx, "list precincts", "region_id", p.RegionID, "err", err)
		return fail(c, "查询管理区失败")
	}
	return success(c, listOf(precincts))
}

// ListDevices returns the devices of the manager's region.
func (h *RegionHandler) ListDevices(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, ok, err := managedPrecinct(c, h.Regions)
	if err != nil {
		h.Log.Error(ctx, "manager precinct", "err", err)
		return fail(c, "查询设备失败")
	}
	if !ok {
		return fail(c, "当前用户并没有管理区域")
	}
	devices, err := h.Regions.ListDevices(ctx, p.RegionID)
	if err != nil {
		h.Log.Error(ctx, "list devices", "region_id", p.RegionID, "err", err)
		return fail(c, "查询设备失败")
	}
	return success(c, pageOf(devices))
}

// managedPrecinct looks up the precinct of the signed-in user.  ok is false
// when the user manages none.
func managedPrecinct(c echo.Context, regions RegionStore) (model.Precinct, bool, error) {
	u, found := middleware.CurrentUser(c)
	if !found {
		return model.Precinct{}, false, nil
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := regions.PrecinctByManager(ctx, u.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Precinct{}, false, nil
	}
	if err != nil {
		return model.Precinct{}, false, err
	}
	return p, true, nil
}
