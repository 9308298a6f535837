package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/farm-monitor/internal/database"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// RegionRepo covers the static farm catalogue: regions, crops, precincts
// and devices.
type RegionRepo struct{ DB *sql.DB }

func NewRegionRepo(db *sql.DB) *RegionRepo { return &RegionRepo{DB: db} }

// ErrPrecinctTaken is returned when assigning a precinct that already has
// another manager.
var ErrPrecinctTaken = errors.New("precinct already managed")

// ListRegions returns all regions ordered by id.
func (r *RegionRepo) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT region_id, region_name, region_lon, region_lat FROM region ORDER BY region_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Region
	for rows.Next() {
		var reg model.Region
		if err := rows.Scan(&reg.ID, &reg.Name, &reg.Lon, &reg.Lat); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// RegionByName looks a region up by its unique name.
func (r *RegionRepo) RegionByName(ctx context.Context, name string) (model.Region, error) {
	var reg model.Region
	err := r.DB.QueryRowContext(ctx,
		"SELECT region_id, region_name, region_lon, region_lat FROM region WHERE region_name=? LIMIT 1", name).
		Scan(&reg.ID, &reg.Name, &reg.Lon, &reg.Lat)
	return reg, notFound(err)
}

// CreateRegion inserts a region with an explicit id.
func (r *RegionRepo) CreateRegion(ctx context.Context, reg model.Region) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO region (region_id, region_name, region_lon, region_lat) VALUES (?,?,?,?)",
		reg.ID, reg.Name, reg.Lon, reg.Lat)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// ListCrops returns the crop catalogue ordered by id.
func (r *RegionRepo) ListCrops(ctx context.Context) ([]model.Crop, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT crop_id, crop_name FROM crop ORDER BY crop_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Crop
	for rows.Next() {
		var c model.Crop
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCrop inserts a crop with an explicit id.
func (r *RegionRepo) CreateCrop(ctx context.Context, c model.Crop) error {
	_, err := r.DB.ExecContext(ctx, "INSERT INTO crop (crop_id, crop_name) VALUES (?,?)", c.ID, c.Name)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

const precinctSelect = "SELECT p.precinct_id, p.region_id, r.region_name, p.user_id, u.user_name, u.user_email, " +
	"p.precinct_name, p.precinct_area FROM precinct p " +
	"JOIN region r ON r.region_id = p.region_id " +
	"LEFT JOIN `user` u ON u.user_id = p.user_id"

func scanPrecinct(s scanner) (model.Precinct, error) {
	var (
		p           model.Precinct
		userID      sql.NullInt64
		name, email sql.NullString
	)
	if err := s.Scan(&p.ID, &p.RegionID, &p.RegionName, &userID, &name, &email, &p.Name, &p.Area); err != nil {
		return model.Precinct{}, err
	}
	if userID.Valid {
		id := uint64(userID.Int64)
		p.UserID = &id
	}
	p.UserName, p.UserEmail = nullString(name), nullString(email)
	return p, nil
}

// PrecinctByManager returns the precinct the user is responsible for.
func (r *RegionRepo) PrecinctByManager(ctx context.Context, userID uint64) (model.Precinct, error) {
	p, err := scanPrecinct(r.DB.QueryRowContext(ctx, precinctSelect+" WHERE p.user_id=? LIMIT 1", userID))
	return p, notFound(err)
}

// ListPrecincts returns the precincts of a region ordered by id.
func (r *RegionRepo) ListPrecincts(ctx context.Context, regionID uint64) ([]model.Precinct, error) {
	rows, err := r.DB.QueryContext(ctx, precinctSelect+" WHERE p.region_id=? ORDER BY p.precinct_id", regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Precinct
	for rows.Next() {
		p, err := scanPrecinct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePrecinct inserts a precinct with an explicit id.
func (r *RegionRepo) CreatePrecinct(ctx context.Context, p model.Precinct) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO precinct (precinct_id, region_id, user_id, precinct_name, precinct_area) VALUES (?,?,?,?,?)",
		p.ID, p.RegionID, p.UserID, p.Name, p.Area)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// AssignPrecinct makes userID the manager of precinctID, releasing any
// precinct the user managed before.  A nil precinctID only releases.
// Assigning a precinct held by someone else returns ErrPrecinctTaken
// together with the current holder's name.
func (r *RegionRepo) AssignPrecinct(ctx context.Context, userID uint64, precinctID *uint64) (holder string, err error) {
	err = database.WithTx(ctx, r.DB, func(ctx context.Context, tx database.DBTX) error {
		if precinctID != nil {
			var current sql.NullInt64
			var currentName sql.NullString
			err := tx.QueryRowContext(ctx,
				"SELECT p.user_id, u.user_name FROM precinct p LEFT JOIN `user` u ON u.user_id = p.user_id WHERE p.precinct_id=? FOR UPDATE",
				*precinctID).Scan(&current, &currentName)
			if err != nil {
				return notFound(err)
			}
			if current.Valid && uint64(current.Int64) != userID {
				holder = currentName.String
				return ErrPrecinctTaken
			}
		}
		if _, err := tx.ExecContext(ctx, "UPDATE precinct SET user_id=NULL WHERE user_id=?", userID); err != nil {
			return err
		}
		if precinctID == nil {
			return nil
		}
		_, err := tx.ExecContext(ctx, "UPDATE precinct SET user_id=? WHERE precinct_id=?", userID, *precinctID)
		return err
	})
	return holder, err
}

const deviceSelect = "SELECT d.device_id, d.region_id, r.region_name, d.device_instance, d.device_type, " +
	"d.device_lon, d.device_lat, d.device_abnormality_rate FROM device d JOIN region r ON r.region_id = d.region_id"

// ListDevices returns the devices of a region ordered by id.
func (r *RegionRepo) ListDevices(ctx context.Context, regionID uint64) ([]model.Device, error) {
	rows, err := r.DB.QueryContext(ctx, deviceSelect+" WHERE d.region_id=? ORDER BY d.device_id", regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Device
	for rows.Next() {
		var (
			d    model.Device
			rate sql.NullFloat64
		)
		if err := rows.Scan(&d.ID, &d.RegionID, &d.RegionName, &d.Instance, &d.Type, &d.Lon, &d.Lat, &rate); err != nil {
			return nil, err
		}
		d.AbnormalityRate = nullFloat(rate)
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDevice inserts a device with an explicit id.
func (r *RegionRepo) CreateDevice(ctx context.Context, d model.Device) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO device (device_id, region_id, device_instance, device_type, device_lon, device_lat, device_abnormality_rate) VALUES (?,?,?,?,?,?,?)",
		d.ID, d.RegionID, d.Instance, d.Type, d.Lon, d.Lat, d.AbnormalityRate)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}
