package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/farm-monitor/internal/model"
)

// ServiceRepo manages the remote-sensing service links of each region.
type ServiceRepo struct{ DB *sql.DB }

func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{DB: db} }

const serviceSelect = "SELECT s.service_id, s.region_id, r.region_name, s.service_date, s.year_terrain_url, " +
	"s.year_hydrology_url, s.day_feature_url, s.day_growth_url FROM service s JOIN region r ON r.region_id = s.region_id"

func scanService(sc scanner) (model.Service, error) {
	var (
		s                  model.Service
		terrain, hydrology sql.NullString
		feature, growth    sql.NullString
	)
	if err := sc.Scan(&s.ServiceID, &s.RegionID, &s.RegionName, &s.Date, &terrain, &hydrology, &feature, &growth); err != nil {
		return model.Service{}, err
	}
	s.YearTerrainURL, s.YearHydrologyURL = nullString(terrain), nullString(hydrology)
	s.DayFeatureURL, s.DayGrowthURL = nullString(feature), nullString(growth)
	return s, nil
}

// Count returns how many services the region has.
func (r *ServiceRepo) Count(ctx context.Context, regionID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM service WHERE region_id=?", regionID).Scan(&n)
	return n, err
}

// Page returns services of the region, newest first.
func (r *ServiceRepo) Page(ctx context.Context, regionID uint64, offset, limit int) ([]model.Service, error) {
	rows, err := r.DB.QueryContext(ctx,
		serviceSelect+" WHERE s.region_id=? ORDER BY s.service_date DESC LIMIT ? OFFSET ?", regionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get fetches a service by its derived id.
func (r *ServiceRepo) Get(ctx context.Context, serviceID string) (model.Service, error) {
	s, err := scanService(r.DB.QueryRowContext(ctx, serviceSelect+" WHERE s.service_id=? LIMIT 1", serviceID))
	return s, notFound(err)
}

// Create inserts s, deriving its service id.  A second service for the same
// region and day yields ErrConflict.
func (r *ServiceRepo) Create(ctx context.Context, s model.Service) (string, error) {
	id := model.ServiceID(s.Date, s.RegionID)
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO service (service_id, region_id, service_date, year_terrain_url, year_hydrology_url, day_feature_url, day_growth_url)
		 VALUES (?,?,?,?,?,?,?)`,
		id, s.RegionID, s.Date.Format(model.DateLayout), s.YearTerrainURL, s.YearHydrologyURL, s.DayFeatureURL, s.DayGrowthURL)
	if isDuplicate(err) {
		return "", ErrConflict
	}
	return id, err
}

// Update rewrites the service identified by serviceID.  The date may change,
// in which case the service id is derived again.
func (r *ServiceRepo) Update(ctx context.Context, serviceID string, s model.Service) (string, error) {
	id := model.ServiceID(s.Date, s.RegionID)
	res, err := r.DB.ExecContext(ctx,
		`UPDATE service SET service_id=?, service_date=?, year_terrain_url=?, year_hydrology_url=?, day_feature_url=?, day_growth_url=?
		 WHERE service_id=? AND region_id=?`,
		id, s.Date.Format(model.DateLayout), s.YearTerrainURL, s.YearHydrologyURL, s.DayFeatureURL, s.DayGrowthURL,
		serviceID, s.RegionID)
	if err != nil {
		if isDuplicate(err) {
			return "", ErrConflict
		}
		return "", err
	}
	if err := requireRow(res); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes a service of the given region.
func (r *ServiceRepo) Delete(ctx context.Context, regionID uint64, serviceID string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM service WHERE service_id=? AND region_id=?", serviceID, regionID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
