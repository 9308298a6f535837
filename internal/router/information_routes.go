package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/handler"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// registerInformation wires the monitoring data endpoints.  Reads are open
// to users and managers; imports, services and exports are manager-only and
// additionally checked against the permission mask.
func registerInformation(api *echo.Group, r *handler.RegionHandler, i *handler.InformationHandler,
	s *handler.ServiceHandler, g Guards) {
	view := g.guard(viewers)

	// ---- Reference data ----
	cached := append(append([]echo.MiddlewareFunc{}, view...), optional(g.Cache)...)
	api.GET("/region", r.ListRegions, cached...)
	api.GET("/crop", r.ListCrops, cached...)
	api.GET("/precinct", r.ListPrecincts, g.guard(managers)...)
	api.GET("/device", r.ListDevices, g.guard(managers, model.PermViewDevice)...)

	// ---- Observations ----
	importData := g.guard(managers, model.PermImportData)
	api.GET("/weather", i.ListWeather, view...)
	api.POST("/weather", i.UploadWeather, importData...)
	api.GET("/weather_prediction", i.PredictWeather, view...)
	api.GET("/soil", i.ListSoil, view...)
	api.POST("/soil", i.UploadSoil, importData...)
	api.POST("/information", i.UploadInformation, importData...)

	// ---- Reports ----
	export := g.guard(managers, model.PermExportReport)
	api.GET("/export_weather", i.ExportWeather, export...)
	api.GET("/export_soil", i.ExportSoil, export...)

	// ---- Services ----
	services := g.guard(managers, model.PermManageService)
	api.GET("/service", s.List, services...)
	api.POST("/service", s.Create, services...)
	api.PUT("/service", s.Update, services...)
	api.DELETE("/service", s.Delete, services...)
}
