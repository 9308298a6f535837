package handler

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/ingest"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// deviceSoils is a device with its most recent soil observations.
type deviceSoils struct {
	model.Device
	Soils []model.Soil
}

func (d deviceSoils) MarshalJSON() ([]byte, error) {
	return marshalDeviceSoils(d.Device, listOf(d.Soils))
}

// marshalDeviceSoils renders the device object with a device_soils member
// appended.
func marshalDeviceSoils(d model.Device, soils []model.Soil) ([]byte, error) {
	dev, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	list, err := json.Marshal(soils)
	if err != nil {
		return nil, err
	}
	dev = bytes.TrimSpace(dev)
	dev = dev[:len(dev)-1]
	var buf bytes.Buffer
	buf.Grow(len(dev) + len(list) + 18)
	buf.Write(dev)
	buf.WriteString(`,"device_soils":`)
	buf.Write(list)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ListSoil returns every device of a region with its earliest soil_count
// observations in ascending date order.
func (h *InformationHandler) ListSoil(c echo.Context) error {
	region, ok, err := h.regionParam(c, c.QueryParam("region_name"))
	if err != nil {
		h.Log.Error(c.Request().Context(), "region lookup", "err", err)
		return fail(c, "土壤查询失败")
	}
	if !ok {
		return fail(c, "请传入具体城市")
	}
	count := 1
	if v := c.QueryParam("soil_count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fail(c, "soil_count 应为正整数")
		}
		count = n
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	devices, err := h.Regions.ListDevices(ctx, region.ID)
	if err != nil {
		h.Log.Error(ctx, "list devices", "region_id", region.ID, "err", err)
		return fail(c, "土壤查询失败")
	}
	out := make([]deviceSoils, 0, len(devices))
	for _, d := range devices {
		soils, err := h.Soil.ListByDevice(ctx, d.ID, count)
		if err != nil {
			h.Log.Error(ctx, "list soil", "device_id", d.ID, "err", err)
			return fail(c, "土壤查询失败")
		}
		out = append(out, deviceSoils{Device: d, Soils: soils})
	}
	return success(c, pageOf(out))
}

// UploadSoil imports a soil sheet.  Each row holds one observation per probe.
func (h *InformationHandler) UploadSoil(c echo.Context) error {
	path, err := saveUpload(c, "soil_file", h.Cfg.UploadDir, ingest.KindSoil)
	if errors.Is(err, errNoFile) {
		return fail(c, "请选择文件")
	}
	if err != nil {
		h.Log.Error(c.Request().Context(), "save upload", "err", err)
		return fail(c, "文件上传失败")
	}
	rep, err := h.Importer.ImportSoil(c.Request().Context(), path)
	rep.Kind = ingest.KindSoil
	return h.finishImport(c, path, nil, rep, err)
}

// ExportSoil streams a region's soil observations of one year as xlsx.
func (h *InformationHandler) ExportSoil(c echo.Context) error {
	region, ok, err := h.regionParam(c, c.QueryParam("region_name"))
	if err != nil {
		h.Log.Error(c.Request().Context(), "region lookup", "err", err)
		return fail(c, "导出失败")
	}
	if !ok {
		return fail(c, "请选择地区")
	}
	year, err := yearParam(c.QueryParam("soil_year"))
	if err != nil {
		return fail(c, "年份格式错误")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	rows, err := h.Soil.ListYear(ctx, region.ID, year)
	if err != nil {
		h.Log.Error(ctx, "export soil", "region_id", region.ID, "err", err)
		return fail(c, "导出失败")
	}
	if len(rows) == 0 {
		return fail(c, "没有数据")
	}
	name := ingest.SoilExportName(region.Name, year)
	path, err := ingest.WriteSoil(h.Cfg.ExportDir, name, rows)
	if err != nil {
		h.Log.Error(ctx, "write soil export", "err", err)
		return fail(c, "导出失败")
	}
	return attachment(c, path, name)
}
