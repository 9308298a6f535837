// Package seed prepares the database: it recreates the schema with the
// default roles, and loads the demo data set used by the web client.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iliyamo/farm-monitor/internal/database"
	"github.com/iliyamo/farm-monitor/internal/ingest"
	"github.com/iliyamo/farm-monitor/internal/logging"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/repository"
	"github.com/iliyamo/farm-monitor/internal/utils"
)

// Seeder bundles what the maintenance commands need.
type Seeder struct {
	DB         *sql.DB
	Users      *repository.UserRepo
	Roles      *repository.RoleRepo
	Regions    *repository.RegionRepo
	Services   *repository.ServiceRepo
	Importer   *ingest.Importer
	BcryptCost int
	StaticDir  string
	Log        logging.Logger
}

// Reset drops every table, creates the schema again and seeds the roles.
func (s *Seeder) Reset(ctx context.Context) error {
	if err := database.DropAll(ctx, s.DB); err != nil {
		return err
	}
	if err := database.CreateAll(ctx, s.DB); err != nil {
		return err
	}
	if err := s.SeedRoles(ctx); err != nil {
		return err
	}
	s.Log.Info(ctx, "database reset", "tables", len(database.Tables()))
	return nil
}

// SeedRoles writes the default permission mask of every role.
func (s *Seeder) SeedRoles(ctx context.Context) error {
	for _, name := range []model.RoleName{model.RoleUser, model.RoleManager, model.RoleAdministrator} {
		r := model.Role{Name: name, Permissions: model.DefaultRolePermissions[name]}
		if err := s.Roles.Upsert(ctx, r); err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

// Static loads the demo data set.  Rows that already exist are skipped so
// the command can run more than once.
func (s *Seeder) Static(ctx context.Context) error {
	if err := s.SeedRoles(ctx); err != nil {
		return err
	}
	for _, r := range regions {
		if err := skipExisting(s.Regions.CreateRegion(ctx, r)); err != nil {
			return fmt.Errorf("seed region %s: %w", r.Name, err)
		}
	}
	for _, c := range crops {
		if err := skipExisting(s.Regions.CreateCrop(ctx, c)); err != nil {
			return fmt.Errorf("seed crop %s: %w", c.Name, err)
		}
	}
	ids, err := s.seedUsers(ctx)
	if err != nil {
		return err
	}
	for _, p := range precincts {
		prec := p.Precinct
		if id, ok := ids[p.Manager]; ok {
			prec.UserID = &id
		}
		if err := skipExisting(s.Regions.CreatePrecinct(ctx, prec)); err != nil {
			return fmt.Errorf("seed precinct %s: %w", prec.Name, err)
		}
	}
	for _, d := range devices {
		if err := skipExisting(s.Regions.CreateDevice(ctx, d)); err != nil {
			return fmt.Errorf("seed device %s: %w", d.Instance, err)
		}
	}
	if err := s.seedServices(ctx); err != nil {
		return err
	}
	s.Log.Info(ctx, "static data seeded", "users", len(ids), "devices", len(devices))
	return s.importStatic(ctx)
}

func (s *Seeder) seedUsers(ctx context.Context) (map[string]uint64, error) {
	ids := make(map[string]uint64, len(users))
	for _, du := range users {
		hash, err := utils.HashPassword(du.Password, s.BcryptCost)
		if err != nil {
			return nil, err
		}
		id, err := s.Users.Create(ctx, model.User{Email: du.Email, Name: du.Name, PasswordHash: hash}, du.Roles)
		if errors.Is(err, repository.ErrEmailExists) {
			existing, gerr := s.Users.GetByEmail(ctx, du.Email)
			if gerr != nil {
				return nil, gerr
			}
			id, err = existing.ID, nil
		}
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", du.Email, err)
		}
		ids[du.Email] = id
	}
	return ids, nil
}

func (s *Seeder) seedServices(ctx context.Context) error {
	for _, sv := range services {
		d, err := time.Parse(model.DateLayout, sv.Date)
		if err != nil {
			return err
		}
		url := GrowthURL(sv.Prefix, d)
		_, err = s.Services.Create(ctx, model.Service{RegionID: sv.RegionID, Date: d, DayGrowthURL: &url})
		if err := skipExisting(err); err != nil {
			return fmt.Errorf("seed service %s: %w", sv.Date, err)
		}
	}
	return nil
}

// importStatic loads the bundled weather and soil sheets.  Missing files
// are logged and skipped.
func (s *Seeder) importStatic(ctx context.Context) error {
	if s.Importer == nil || s.StaticDir == "" {
		return nil
	}
	for _, sh := range staticSheets {
		path, ok := findSheet(s.StaticDir, sh.Base)
		if !ok {
			s.Log.Warn(ctx, "static sheet not found", "dir", s.StaticDir, "name", sh.Base)
			continue
		}
		var rep ingest.Report
		var err error
		if sh.Soil {
			rep, err = s.Importer.ImportSoil(ctx, path)
		} else {
			rep, err = s.Importer.ImportWeather(ctx, path, sh.RegionID)
		}
		if err != nil {
			return fmt.Errorf("import %s: %w", filepath.Base(path), err)
		}
		s.Log.Info(ctx, "static sheet imported", "file", filepath.Base(path), "rows", rep.Rows, "records", rep.Records)
	}
	return nil
}

// findSheet returns the first existing <dir>/<base>.<ext> among the
// supported spreadsheet extensions.
func findSheet(dir, base string) (string, bool) {
	for _, ext := range []string{".xlsx", ".xlsm", ".csv"} {
		p := filepath.Join(dir, base+ext)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

func skipExisting(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	return err
}

// GrowthURL returns the growth map service URL of a layer prefix and day.
func GrowthURL(prefix string, day time.Time) string {
	return fmt.Sprintf(growthURL, strings.ToUpper(prefix), day.Format("060102"))
}
