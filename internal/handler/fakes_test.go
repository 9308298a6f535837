package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/farm-monitor/internal/ingest"
	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/queue"
	"github.com/iliyamo/farm-monitor/internal/repository"
	"github.com/iliyamo/farm-monitor/internal/service"
	"github.com/iliyamo/farm-monitor/internal/utils"
)

func role(name model.RoleName) model.Role {
	return model.Role{Name: name, Permissions: model.DefaultRolePermissions[name]}
}

// uniqueRoles mirrors the (user_id, role_name) primary key of user_role.
func uniqueRoles(roles []model.RoleName) error {
	seen := map[model.RoleName]bool{}
	for _, r := range roles {
		if seen[r] {
			return errors.New("duplicate entry for key user_role.PRIMARY")
		}
		seen[r] = true
	}
	return nil
}

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]model.User
}

func newMemUsers(seed ...model.User) *memUsers {
	m := &memUsers{users: map[uint64]model.User{}}
	for _, u := range seed {
		m.users[u.ID] = u
		if u.ID > m.nextID {
			m.nextID = u.ID
		}
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u model.User, roles []model.RoleName) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email {
			return 0, repository.ErrEmailExists
		}
	}
	if err := uniqueRoles(roles); err != nil {
		return 0, err
	}
	m.nextID++
	u.ID = m.nextID
	for _, r := range roles {
		u.Roles = append(u.Roles, role(r))
	}
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) List(_ context.Context, emailLike string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for id := uint64(1); id <= m.nextID; id++ {
		if u, ok := m.users[id]; ok && strings.Contains(u.Email, emailLike) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) ListByRole(_ context.Context, r model.RoleName) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for id := uint64(1); id <= m.nextID; id++ {
		if u, ok := m.users[id]; ok && u.HasAnyRole(r) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uint64, p repository.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Name, u.Tel, u.Sex, u.Address, u.Position = p.Name, p.Tel, p.Sex, p.Address, p.Position
	m.users[id] = u
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memUsers) ReplaceRoles(_ context.Context, id uint64, roles []model.RoleName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := uniqueRoles(roles); err != nil {
		return err
	}
	u.Roles = nil
	for _, r := range roles {
		u.Roles = append(u.Roles, role(r))
	}
	m.users[id] = u
	return nil
}

type memRegions struct {
	mu        sync.Mutex
	regions   []model.Region
	crops     []model.Crop
	precincts []model.Precinct
	devices   []model.Device
	names     map[uint64]string
}

func (m *memRegions) ListRegions(context.Context) ([]model.Region, error) { return m.regions, nil }
func (m *memRegions) ListCrops(context.Context) ([]model.Crop, error)     { return m.crops, nil }

func (m *memRegions) RegionByName(_ context.Context, name string) (model.Region, error) {
	for _, r := range m.regions {
		if r.Name == name {
			return r, nil
		}
	}
	return model.Region{}, repository.ErrNotFound
}

func (m *memRegions) PrecinctByManager(_ context.Context, userID uint64) (model.Precinct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.precincts {
		if p.UserID != nil && *p.UserID == userID {
			return p, nil
		}
	}
	return model.Precinct{}, repository.ErrNotFound
}

func (m *memRegions) ListPrecincts(_ context.Context, regionID uint64) ([]model.Precinct, error) {
	var out []model.Precinct
	for _, p := range m.precincts {
		if p.RegionID == regionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRegions) AssignPrecinct(_ context.Context, userID uint64, precinctID *uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	if precinctID != nil {
		for i, p := range m.precincts {
			if p.ID == *precinctID {
				idx = i
			}
		}
		if idx < 0 {
			return "", repository.ErrNotFound
		}
		if h := m.precincts[idx].UserID; h != nil && *h != userID {
			return m.names[*h], repository.ErrPrecinctTaken
		}
	}
	for i, p := range m.precincts {
		if p.UserID != nil && *p.UserID == userID {
			m.precincts[i].UserID = nil
		}
	}
	if idx >= 0 {
		id := userID
		m.precincts[idx].UserID = &id
	}
	return "", nil
}

func (m *memRegions) ListDevices(_ context.Context, regionID uint64) ([]model.Device, error) {
	var out []model.Device
	for _, d := range m.devices {
		if d.RegionID == regionID {
			out = append(out, d)
		}
	}
	return out, nil
}

type memWeather struct {
	rows []model.Weather
}

func (m *memWeather) ListRange(_ context.Context, regionID uint64, start, end time.Time) ([]model.Weather, error) {
	var out []model.Weather
	for _, w := range m.rows {
		if w.RegionID == regionID && !w.Date.Before(start) && !w.Date.After(end) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWeather) ListLatest(_ context.Context, regionID uint64, n int) ([]model.Weather, error) {
	var out []model.Weather
	for _, w := range m.rows {
		if w.RegionID == regionID {
			out = append(out, w)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (m *memWeather) ListYear(_ context.Context, regionID uint64, year int) ([]model.Weather, error) {
	var out []model.Weather
	for _, w := range m.rows {
		if w.RegionID == regionID && w.Date.Year() == year {
			out = append(out, w)
		}
	}
	return out, nil
}

type memSoil struct {
	rows []model.Soil
}

func (m *memSoil) ListByDevice(_ context.Context, deviceID uint64, limit int) ([]model.Soil, error) {
	var out []model.Soil
	for _, s := range m.rows {
		if s.DeviceID == deviceID {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memSoil) ListYear(_ context.Context, regionID uint64, year int) ([]model.Soil, error) {
	var out []model.Soil
	for _, s := range m.rows {
		if s.RegionID == regionID && s.Date.Year() == year {
			out = append(out, s)
		}
	}
	return out, nil
}

type memServices struct {
	mu   sync.Mutex
	rows []model.Service
}

func (m *memServices) Count(_ context.Context, regionID uint64) (int, error) {
	n := 0
	for _, s := range m.rows {
		if s.RegionID == regionID {
			n++
		}
	}
	return n, nil
}

func (m *memServices) Page(_ context.Context, regionID uint64, offset, limit int) ([]model.Service, error) {
	var all []model.Service
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].RegionID == regionID {
			all = append(all, m.rows[i])
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (m *memServices) Get(_ context.Context, id string) (model.Service, error) {
	for _, s := range m.rows {
		if s.ServiceID == id {
			return s, nil
		}
	}
	return model.Service{}, repository.ErrNotFound
}

func (m *memServices) Create(_ context.Context, s model.Service) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ServiceID = model.ServiceID(s.Date, s.RegionID)
	for _, x := range m.rows {
		if x.ServiceID == s.ServiceID {
			return "", repository.ErrConflict
		}
	}
	m.rows = append(m.rows, s)
	return s.ServiceID, nil
}

func (m *memServices) Update(_ context.Context, id string, s model.Service) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.rows {
		if x.ServiceID == id && x.RegionID == s.RegionID {
			s.ServiceID = model.ServiceID(s.Date, s.RegionID)
			m.rows[i] = s
			return s.ServiceID, nil
		}
	}
	return "", repository.ErrNotFound
}

func (m *memServices) Delete(_ context.Context, regionID uint64, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.rows {
		if x.ServiceID == id && x.RegionID == regionID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type stubImporter struct {
	mu      sync.Mutex
	paths   []string
	regions []uint64
	report  ingest.Report
	err     error
}

func (s *stubImporter) ImportWeather(_ context.Context, path string, regionID uint64) (ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	s.regions = append(s.regions, regionID)
	return s.report, s.err
}

func (s *stubImporter) ImportSoil(_ context.Context, path string) (ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return s.report, s.err
}

func (s *stubImporter) ImportInformation(_ context.Context, _ *ingest.FeatureService, path, _ string) (ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return s.report, s.err
}

type stubForecast struct {
	out []service.Forecast
	err error
}

func (s stubForecast) Predict(_ context.Context, r model.Region, days int) ([]service.Forecast, error) {
	if s.err != nil {
		return nil, s.err
	}
	if days > len(s.out) {
		days = len(s.out)
	}
	return s.out[:days], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ImportCompletedEvent
}

func (p *recordingPublisher) PublishImportCompleted(_ context.Context, ev queue.ImportCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type revokeRecorder struct {
	mu         sync.Mutex
	revoked    []string
	revokedAll []uint64
}

func (r *revokeRecorder) Issue(_ context.Context, userID uint64) (utils.AccessToken, error) {
	return utils.NewAccessToken("recorder", userID, time.Hour)
}

func (r *revokeRecorder) Revoke(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, token)
	return nil
}

func (r *revokeRecorder) RevokeAll(_ context.Context, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revokedAll = append(r.revokedAll, userID)
	return nil
}

type memRoles struct {
	mu    sync.Mutex
	roles map[model.RoleName]model.Permission
}

func newMemRoles() *memRoles {
	m := &memRoles{roles: map[model.RoleName]model.Permission{}}
	for n, p := range model.DefaultRolePermissions {
		m.roles[n] = p
	}
	return m
}

func (m *memRoles) List(context.Context) ([]model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Role
	for _, n := range []model.RoleName{model.RoleAdministrator, model.RoleManager, model.RoleUser} {
		if p, ok := m.roles[n]; ok {
			out = append(out, model.Role{Name: n, Permissions: p})
		}
	}
	return out, nil
}

func (m *memRoles) SetPermissions(_ context.Context, n model.RoleName, p model.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[n]; !ok {
		return repository.ErrNotFound
	}
	m.roles[n] = p
	return nil
}
