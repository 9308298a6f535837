package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/farm-monitor/internal/model"
)

const exportSheet = "Sheet1"

var weatherExportHeader = []any{
	"region_id", "region_name", "weather_date", "weather_temperature", "weather_humidity",
	"weather_illumination", "weather_wind_speed", "weather_wind_direction", "weather_atmospheric_pressure",
	"weather_precipitation", "weather_CO2", "weather_N", "weather_P", "weather_K",
}

var soilExportHeader = []any{
	"device_id", "device_instance", "region_id", "region_name", "soil_date",
	"soil_temperature", "soil_water", "soil_conductivity", "soil_PH", "soil_salt",
}

// WeatherExportName is the attachment name of a weather report.
func WeatherExportName(region string, year int) string {
	return fmt.Sprintf("%s_%d_weather_export.xlsx", region, year)
}

// SoilExportName is the attachment name of a soil report.
func SoilExportName(region string, year int) string {
	return fmt.Sprintf("%s_%d_soil_export.xlsx", region, year)
}

// WriteWeather renders observations into a uniquely named file under dir
// and returns its path.  name is the attachment name the file ends with.
func WriteWeather(dir, name string, rows []model.Weather) (string, error) {
	return writeWorkbook(dir, name, weatherExportHeader, len(rows), func(i int) []any {
		w := rows[i]
		return []any{
			w.RegionID, w.RegionName, w.Date.Format(model.DateTimeLayout), w.Temperature, w.Humidity,
			w.Illumination, w.WindSpeed, w.WindDirection, w.AtmosphericPressure,
			w.Precipitation, w.CO2, w.N, w.P, w.K,
		}
	})
}

// WriteSoil is WriteWeather for soil observations.
func WriteSoil(dir, name string, rows []model.Soil) (string, error) {
	return writeWorkbook(dir, name, soilExportHeader, len(rows), func(i int) []any {
		s := rows[i]
		return []any{
			s.DeviceID, s.DeviceInstance, s.RegionID, s.RegionName, s.Date.Format(model.DateTimeLayout),
			s.Temperature, s.Water, s.Conductivity, s.PH, s.Salt,
		}
	})
}

func writeWorkbook(dir, name string, header []any, n int, row func(i int) []any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return "", err
	}
	if err := sw.SetRow("A1", header); err != nil {
		return "", err
	}
	for i := 0; i < n; i++ {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		if err := sw.SetRow(axis, row(i)); err != nil {
			return "", err
		}
	}
	if err := sw.Flush(); err != nil {
		return "", err
	}
	// Concurrent exports of the same report must not share a file.
	path := filepath.Join(dir, uuid.NewString()+"_"+filepath.Base(name))
	if err := f.SaveAs(path); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
