package handler

import (
	"errors"
	"os"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/config"
	"github.com/iliyamo/farm-monitor/internal/ingest"
	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/repository"
)

// InformationHandler serves the monitoring data endpoints: weather and soil
// queries, spreadsheet imports, forecasts and yearly exports.
type InformationHandler struct {
	Cfg      config.Config
	Regions  RegionStore
	Weather  WeatherStore
	Soil     SoilStore
	Importer Importer
	Features *ingest.FeatureService
	Forecast Forecaster
	Events   EventPublisher // nil when the queue is disabled
	Log      logging.Logger
}

// UploadInformation pushes a field attribute sheet to the feature layer at
// the form field "url".
func (h *InformationHandler) UploadInformation(c echo.Context) error {
	layer := strings.TrimSpace(c.FormValue("url"))
	if layer == "" {
		return fail(c, "请传入图层地址")
	}
	path, err := saveUpload(c, "information_file", h.Cfg.UploadDir, ingest.KindInformation)
	if errors.Is(err, errNoFile) {
		return fail(c, "请选择文件")
	}
	if err != nil {
		h.Log.Error(c.Request().Context(), "save upload", "err", err)
		return fail(c, "文件上传失败")
	}

	ctx := c.Request().Context()
	rep, err := h.Importer.ImportInformation(ctx, h.Features, path, layer)
	h.publish(c, importEvent(c, rep, path, nil, err))
	if err != nil {
		h.Log.Error(ctx, "information import", "file", path, "err", err)
		return fail(c, "数据导入失败")
	}
	return success(c, rep)
}

// regionParam resolves a region by name.  ok is false when the name is
// empty or unknown; err is set only for storage failures.
func (h *InformationHandler) regionParam(c echo.Context, name string) (model.Region, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Region{}, false, nil
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	r, err := h.Regions.RegionByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Region{}, false, nil
	}
	if err != nil {
		return model.Region{}, false, err
	}
	return r, true, nil
}

// finishImport answers an import request from its report.  Row errors
// travel in the data field so the client can point at the bad cells.
func (h *InformationHandler) finishImport(c echo.Context, path string, region *model.Region, rep ingest.Report, err error) error {
	h.publish(c, importEvent(c, rep, path, region, err))
	if err != nil {
		h.Log.Error(c.Request().Context(), "import failed", "kind", rep.Kind, "file", path, "err", err)
		if len(rep.Errors) > 0 {
			return failWith(c, "数据导入失败", rep)
		}
		return fail(c, "数据导入失败")
	}
	h.Log.Info(c.Request().Context(), "import finished", "kind", rep.Kind, "rows", rep.Rows,
		"records", rep.Records, "duration", rep.Duration)
	return success(c, rep)
}

// attachment sends a generated workbook as a download named name and
// removes it once it has been written to the client.
func attachment(c echo.Context, path, name string) error {
	defer func() { _ = os.Remove(path) }()
	return c.Attachment(path, name)
}
