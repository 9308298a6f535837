package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/farm-monitor/internal/database"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// WeatherRepo stores weather station observations.
type WeatherRepo struct{ DB *sql.DB }

func NewWeatherRepo(db *sql.DB) *WeatherRepo { return &WeatherRepo{DB: db} }

const weatherSelect = "SELECT w.region_id, r.region_name, w.weather_date, w.weather_temperature, w.weather_humidity, " +
	"w.weather_illumination, w.weather_wind_speed, w.weather_wind_direction, w.weather_atmospheric_pressure, " +
	"w.weather_precipitation, w.weather_CO2, w.weather_N, w.weather_P, w.weather_K " +
	"FROM weather w JOIN region r ON r.region_id = w.region_id"

// Insert writes one observation through the given handle so callers
// decide the transaction boundary.
func (r *WeatherRepo) Insert(ctx context.Context, db database.DBTX, w model.Weather) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO weather (region_id, weather_date, weather_temperature, weather_humidity, weather_illumination,
		 weather_wind_speed, weather_wind_direction, weather_atmospheric_pressure, weather_precipitation,
		 weather_CO2, weather_N, weather_P, weather_K) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.RegionID, w.Date, w.Temperature, w.Humidity, w.Illumination, w.WindSpeed, w.WindDirection,
		w.AtmosphericPressure, w.Precipitation, w.CO2, w.N, w.P, w.K)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// ListRange returns observations with start <= date <= end in ascending order.
func (r *WeatherRepo) ListRange(ctx context.Context, regionID uint64, start, end time.Time) ([]model.Weather, error) {
	return r.query(ctx, weatherSelect+" WHERE w.region_id=? AND w.weather_date >= ? AND w.weather_date <= ? ORDER BY w.weather_date",
		regionID, start, end)
}

// ListLatest returns the n most recent observations in ascending order.
func (r *WeatherRepo) ListLatest(ctx context.Context, regionID uint64, n int) ([]model.Weather, error) {
	out, err := r.query(ctx, weatherSelect+" WHERE w.region_id=? ORDER BY w.weather_date DESC LIMIT ?", regionID, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ListYear returns every observation of a calendar year in ascending order.
func (r *WeatherRepo) ListYear(ctx context.Context, regionID uint64, year int) ([]model.Weather, error) {
	from, to := yearBounds(year)
	return r.query(ctx, weatherSelect+" WHERE w.region_id=? AND w.weather_date >= ? AND w.weather_date < ? ORDER BY w.weather_date",
		regionID, from, to)
}

func (r *WeatherRepo) query(ctx context.Context, q string, args ...any) ([]model.Weather, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Weather
	for rows.Next() {
		var w model.Weather
		var vals [11]sql.NullFloat64
		if err := rows.Scan(&w.RegionID, &w.RegionName, &w.Date,
			&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5],
			&vals[6], &vals[7], &vals[8], &vals[9], &vals[10]); err != nil {
			return nil, err
		}
		w.Temperature, w.Humidity, w.Illumination = vals[0].Float64, vals[1].Float64, vals[2].Float64
		w.WindSpeed, w.WindDirection, w.AtmosphericPressure = vals[3].Float64, vals[4].Float64, vals[5].Float64
		w.Precipitation, w.CO2 = vals[6].Float64, vals[7].Float64
		w.N, w.P, w.K = vals[8].Float64, vals[9].Float64, vals[10].Float64
		out = append(out, w)
	}
	return out, rows.Err()
}

func yearBounds(year int) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}
