package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layouts used when dates cross the API boundary.
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

func marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Weather is one observation of a region's weather station.  (RegionID, Date)
// is the natural key.
type Weather struct {
	RegionID            uint64    `json:"region_id"`
	RegionName          string    `json:"region_name"`
	Date                time.Time `json:"-"`
	Temperature         float64   `json:"weather_temperature"`
	Humidity            float64   `json:"weather_humidity"`
	Illumination        float64   `json:"weather_illumination"`
	WindSpeed           float64   `json:"weather_wind_speed"`
	WindDirection       float64   `json:"weather_wind_direction"`
	AtmosphericPressure float64   `json:"weather_atmospheric_pressure"`
	Precipitation       float64   `json:"weather_precipitation"`
	CO2                 float64   `json:"weather_CO2"`
	N                   float64   `json:"weather_N"`
	P                   float64   `json:"weather_P"`
	K                   float64   `json:"weather_K"`
}

func (w Weather) MarshalJSON() ([]byte, error) {
	type alias Weather
	return marshal(struct {
		alias
		Date string `json:"weather_date"`
	}{alias(w), w.Date.Format(DateTimeLayout)})
}

// Soil is one observation of a soil probe.  (DeviceID, Date) is the natural key.
type Soil struct {
	DeviceID       uint64    `json:"device_id"`
	DeviceInstance string    `json:"device_instance"`
	RegionID       uint64    `json:"region_id"`
	RegionName     string    `json:"region_name"`
	Date           time.Time `json:"-"`
	Temperature    float64   `json:"soil_temperature"`
	Water          float64   `json:"soil_water"`
	Conductivity   float64   `json:"soil_conductivity"`
	PH             float64   `json:"soil_PH"`
	Salt           float64   `json:"soil_salt"`
}

func (s Soil) MarshalJSON() ([]byte, error) {
	type alias Soil
	return marshal(struct {
		alias
		Date string `json:"soil_date"`
	}{alias(s), s.Date.Format(DateTimeLayout)})
}

// Service points at the remote-sensing map services published for a region
// on a given day.
type Service struct {
	ServiceID        string    `json:"service_id"`
	RegionID         uint64    `json:"region_id"`
	RegionName       string    `json:"region_name"`
	Date             time.Time `json:"-"`
	YearTerrainURL   *string   `json:"year_terrain_url"`
	YearHydrologyURL *string   `json:"year_hydrology_url"`
	DayFeatureURL    *string   `json:"day_feature_url"`
	DayGrowthURL     *string   `json:"day_growth_url"`
}

func (s Service) MarshalJSON() ([]byte, error) {
	type alias Service
	return marshal(struct {
		alias
		Date string `json:"service_date"`
	}{alias(s), s.Date.Format(DateLayout)})
}

// ServiceID derives the stable identifier of a service record:
// the service date followed by the zero padded region id.
func ServiceID(date time.Time, regionID uint64) string {
	return fmt.Sprintf("%s:%05d", date.Format(DateLayout), regionID)
}
