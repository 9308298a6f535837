package handler

import (
	"context"
	"time"

	"github.com/iliyamo/farm-monitor/internal/ingest"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/queue"
	"github.com/iliyamo/farm-monitor/internal/repository"
	"github.com/iliyamo/farm-monitor/internal/service"
	"github.com/iliyamo/farm-monitor/internal/utils"
)

// The handlers depend on these narrow views of the repositories so they
// can be exercised without a database.

type UserStore interface {
	Create(ctx context.Context, u model.User, roles []model.RoleName) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context, emailLike string) ([]model.User, error)
	ListByRole(ctx context.Context, role model.RoleName) ([]model.User, error)
	UpdateProfile(ctx context.Context, id uint64, p repository.Profile) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	ReplaceRoles(ctx context.Context, id uint64, roles []model.RoleName) error
}

type RoleStore interface {
	List(ctx context.Context) ([]model.Role, error)
	SetPermissions(ctx context.Context, name model.RoleName, p model.Permission) error
}

type RegionStore interface {
	ListRegions(ctx context.Context) ([]model.Region, error)
	RegionByName(ctx context.Context, name string) (model.Region, error)
	ListCrops(ctx context.Context) ([]model.Crop, error)
	PrecinctByManager(ctx context.Context, userID uint64) (model.Precinct, error)
	ListPrecincts(ctx context.Context, regionID uint64) ([]model.Precinct, error)
	AssignPrecinct(ctx context.Context, userID uint64, precinctID *uint64) (string, error)
	ListDevices(ctx context.Context, regionID uint64) ([]model.Device, error)
}

type WeatherStore interface {
	ListRange(ctx context.Context, regionID uint64, start, end time.Time) ([]model.Weather, error)
	ListLatest(ctx context.Context, regionID uint64, n int) ([]model.Weather, error)
	ListYear(ctx context.Context, regionID uint64, year int) ([]model.Weather, error)
}

type SoilStore interface {
	ListByDevice(ctx context.Context, deviceID uint64, limit int) ([]model.Soil, error)
	ListYear(ctx context.Context, regionID uint64, year int) ([]model.Soil, error)
}

type ServiceStore interface {
	Count(ctx context.Context, regionID uint64) (int, error)
	Page(ctx context.Context, regionID uint64, offset, limit int) ([]model.Service, error)
	Get(ctx context.Context, serviceID string) (model.Service, error)
	Create(ctx context.Context, s model.Service) (string, error)
	Update(ctx context.Context, serviceID string, s model.Service) (string, error)
	Delete(ctx context.Context, regionID uint64, serviceID string) error
}

// Sessions issues and revokes session tokens.
type Sessions interface {
	Issue(ctx context.Context, userID uint64) (utils.AccessToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID uint64) error
}

// Importer runs spreadsheet imports.
type Importer interface {
	ImportWeather(ctx context.Context, path string, regionID uint64) (ingest.Report, error)
	ImportSoil(ctx context.Context, path string) (ingest.Report, error)
	ImportInformation(ctx context.Context, fs *ingest.FeatureService, path, layerURL string) (ingest.Report, error)
}

type Forecaster interface {
	Predict(ctx context.Context, region model.Region, days int) ([]service.Forecast, error)
}

// EventPublisher receives import audit events.
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, ev queue.ImportCompletedEvent) error
}
