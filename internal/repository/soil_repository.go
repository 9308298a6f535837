package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/farm-monitor/internal/database"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// SoilRepo stores soil probe observations.
type SoilRepo struct{ DB *sql.DB }

func NewSoilRepo(db *sql.DB) *SoilRepo { return &SoilRepo{DB: db} }

const soilSelect = "SELECT s.device_id, d.device_instance, d.region_id, r.region_name, s.soil_date, " +
	"s.soil_temperature, s.soil_water, s.soil_conductivity, s.soil_PH, s.soil_salt " +
	"FROM soil s JOIN device d ON d.device_id = s.device_id JOIN region r ON r.region_id = d.region_id"

// Insert writes one observation through the given handle.
func (r *SoilRepo) Insert(ctx context.Context, db database.DBTX, s model.Soil) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO soil (device_id, soil_date, soil_temperature, soil_water, soil_conductivity, soil_PH, soil_salt)
		 VALUES (?,?,?,?,?,?,?)`,
		s.DeviceID, s.Date, s.Temperature, s.Water, s.Conductivity, s.PH, s.Salt)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// ListByDevice returns up to limit observations of a device, oldest first.
func (r *SoilRepo) ListByDevice(ctx context.Context, deviceID uint64, limit int) ([]model.Soil, error) {
	return r.query(ctx, soilSelect+" WHERE s.device_id=? ORDER BY s.soil_date LIMIT ?", deviceID, limit)
}

// ListYear returns the observations of every device in the region for one
// calendar year, ordered by device then date.
func (r *SoilRepo) ListYear(ctx context.Context, regionID uint64, year int) ([]model.Soil, error) {
	from, to := yearBounds(year)
	return r.query(ctx, soilSelect+" WHERE d.region_id=? AND s.soil_date >= ? AND s.soil_date < ? ORDER BY s.device_id, s.soil_date",
		regionID, from, to)
}

func (r *SoilRepo) query(ctx context.Context, q string, args ...any) ([]model.Soil, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Soil
	for rows.Next() {
		var s model.Soil
		var vals [5]sql.NullFloat64
		if err := rows.Scan(&s.DeviceID, &s.DeviceInstance, &s.RegionID, &s.RegionName, &s.Date,
			&vals[0], &vals[1], &vals[2], &vals[3], &vals[4]); err != nil {
			return nil, err
		}
		s.Temperature, s.Water, s.Conductivity = vals[0].Float64, vals[1].Float64, vals[2].Float64
		s.PH, s.Salt = vals[3].Float64, vals[4].Float64
		out = append(out, s)
	}
	return out, rows.Err()
}
