package handler

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/ingest"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/service"
)

// latestWeather is how many observations are returned without a range.
const latestWeather = 10

// ListWeather returns a region's observations between date_start and
// date_end, or the latest ones when no range is given.  Either way the
// result is in ascending date order.
func (h *InformationHandler) ListWeather(c echo.Context) error {
	region, ok, err := h.regionParam(c, c.QueryParam("region_name"))
	if err != nil {
		h.Log.Error(c.Request().Context(), "region lookup", "err", err)
		return fail(c, "天气查询失败")
	}
	if !ok {
		return fail(c, "天气查询失败, 请传入具体城市")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	var rows []model.Weather
	start, end := c.QueryParam("date_start"), c.QueryParam("date_end")
	if start != "" && end != "" {
		from, err1 := time.Parse(model.DateTimeLayout, start)
		to, err2 := time.Parse(model.DateTimeLayout, end)
		if err1 != nil || err2 != nil {
			return fail(c, "日期格式错误, 应为 YYYY-MM-DD HH:MM:SS")
		}
		rows, err = h.Weather.ListRange(ctx, region.ID, from, to)
	} else {
		rows, err = h.Weather.ListLatest(ctx, region.ID, latestWeather)
	}
	if err != nil {
		h.Log.Error(ctx, "list weather", "region_id", region.ID, "err", err)
		return fail(c, "天气查询失败")
	}
	return success(c, pageOf(rows))
}

// UploadWeather imports a weather sheet into the chosen region.
func (h *InformationHandler) UploadWeather(c echo.Context) error {
	region, ok, err := h.regionParam(c, c.FormValue("region_name"))
	if err != nil {
		h.Log.Error(c.Request().Context(), "region lookup", "err", err)
		return fail(c, "数据导入失败")
	}
	path, serr := saveUpload(c, "weather_file", h.Cfg.UploadDir, ingest.KindWeather)
	if errors.Is(serr, errNoFile) {
		return fail(c, "请选择文件")
	}
	if serr != nil {
		h.Log.Error(c.Request().Context(), "save upload", "err", serr)
		return fail(c, "文件上传失败")
	}
	if !ok {
		_ = os.Remove(path)
		return fail(c, "请选择正确的农场")
	}

	rep, err := h.Importer.ImportWeather(c.Request().Context(), path, region.ID)
	rep.Kind = ingest.KindWeather
	return h.finishImport(c, path, &region, rep, err)
}

// PredictWeather returns the forecast for a region, predict_days days ahead.
func (h *InformationHandler) PredictWeather(c echo.Context) error {
	name := c.QueryParam("region_name")
	if name == "" {
		return fail(c, "天气预测失败, 请传入具体城市")
	}
	days := service.DefaultForecastDays
	if v := c.QueryParam("predict_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fail(c, "天气预测失败, 预测天数应为整数")
		}
		days = n
	}
	notFound := fmt.Sprintf("查询不到 '%s' 的未来天气数据", name)

	region, ok, err := h.regionParam(c, name)
	if err != nil || !ok {
		return fail(c, notFound)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	forecast, err := h.Forecast.Predict(ctx, region, days)
	if err != nil {
		h.Log.Warn(ctx, "forecast", "region", name, "err", err)
		return fail(c, notFound)
	}
	return success(c, pageOf(forecast))
}

// ExportWeather streams a region's observations of one year as xlsx.
func (h *InformationHandler) ExportWeather(c echo.Context) error {
	region, ok, err := h.regionParam(c, c.QueryParam("region_name"))
	if err != nil {
		h.Log.Error(c.Request().Context(), "region lookup", "err", err)
		return fail(c, "导出失败")
	}
	if !ok {
		return fail(c, "请选择地区")
	}
	year, err := yearParam(c.QueryParam("weather_year"))
	if err != nil {
		return fail(c, "年份格式错误")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	rows, err := h.Weather.ListYear(ctx, region.ID, year)
	if err != nil {
		h.Log.Error(ctx, "export weather", "region_id", region.ID, "err", err)
		return fail(c, "导出失败")
	}
	if len(rows) == 0 {
		return fail(c, "没有数据")
	}
	name := ingest.WeatherExportName(region.Name, year)
	path, err := ingest.WriteWeather(h.Cfg.ExportDir, name, rows)
	if err != nil {
		h.Log.Error(ctx, "write weather export", "err", err)
		return fail(c, "导出失败")
	}
	return attachment(c, path, name)
}

// yearParam parses a year, defaulting to the current one.
func yearParam(v string) (int, error) {
	if v == "" {
		return time.Now().Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1 || y > 9999 {
		return 0, fmt.Errorf("invalid year %q", v)
	}
	return y, nil
}
