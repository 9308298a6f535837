package seed

import "github.com/iliyamo/farm-monitor/internal/model"

// demoUser is an account created by the static seed.
type demoUser struct {
	Email    string
	Name     string
	Password string
	Roles    []model.RoleName
}

var (
	manager = []model.RoleName{model.RoleManager, model.RoleUser}
	user    = []model.RoleName{model.RoleUser}
)

var regions = []model.Region{
	{ID: 1, Name: "YY", Lon: 132.00, Lat: 46.83},
	{ID: 2, Name: "597", Lon: 132.01, Lat: 46.82},
}

var crops = []model.Crop{
	{ID: 1, Name: "水稻"},
	{ID: 2, Name: "大豆"},
	{ID: 3, Name: "玉米"},
	{ID: 4, Name: "麦类"},
	{ID: 5, Name: "花生"},
	{ID: 6, Name: "其他"},
}

var users = []demoUser{
	{"admin@163.com", "超级管理员", "webgis", []model.RoleName{model.RoleAdministrator}},
	{"yy_manager1@163.com", "友谊管理员1", "yy1", manager},
	{"yy_manager2@163.com", "友谊管理员2", "yy2", manager},
	{"yy_manager3@163.com", "友谊管理员3", "yy3", manager},
	{"597_manager1@163.com", "597管理员1", "5971", manager},
	{"597_manager2@163.com", "597管理员2", "5972", manager},
	{"597_manager3@163.com", "597管理员3", "5973", manager},
	{"user1@163.com", "user1", "user1", user},
	{"user2@163.com", "user2", "user2", user},
	{"user3@163.com", "user3", "user3", user},
}

// precinct rows name their manager by email; ids are resolved at seed time.
var precincts = []struct {
	model.Precinct
	Manager string
}{
	{model.Precinct{ID: 1, RegionID: 1, Name: "友谊管理区1", Area: 1000}, "yy_manager1@163.com"},
	{model.Precinct{ID: 2, RegionID: 1, Name: "友谊管理区2", Area: 2000}, "yy_manager2@163.com"},
	{model.Precinct{ID: 3, RegionID: 1, Name: "友谊管理区3", Area: 3000}, "yy_manager3@163.com"},
	{model.Precinct{ID: 4, RegionID: 2, Name: "597管理区1", Area: 3000}, "597_manager1@163.com"},
	{model.Precinct{ID: 5, RegionID: 2, Name: "597管理区2", Area: 2000}, "597_manager2@163.com"},
	{model.Precinct{ID: 6, RegionID: 2, Name: "597管理区3", Area: 1000}, "597_manager3@163.com"},
}

var devices = []model.Device{
	{ID: 1, RegionID: 1, Instance: "YY土壤设备1", Type: "土壤监测设备", Lon: 132.01, Lat: 46.84},
	{ID: 2, RegionID: 1, Instance: "YY土壤设备2", Type: "土壤监测设备", Lon: 132.02, Lat: 46.85},
	{ID: 3, RegionID: 1, Instance: "YY气象设备1", Type: "气象监测设备", Lon: 132.03, Lat: 46.86},
	{ID: 4, RegionID: 1, Instance: "YY气象设备2", Type: "气象监测设备", Lon: 132.04, Lat: 46.87},
}

const growthURL = "https://webgis.xiaoruirui.site:6443/arcgis/rest/services/ZSJC/%s%s/MapServer"

// services lists (region id, layer prefix, date) of the published growth maps.
var services = []struct {
	RegionID uint64
	Prefix   string
	Date     string
}{
	{2, "WJQ", "2022-06-11"},
	{2, "WJQ", "2022-08-01"},
	{2, "WJQ", "2022-08-11"},
	{1, "YY", "2022-06-11"},
	{1, "YY", "2022-08-01"},
	{1, "YY", "2022-08-11"},
}

// staticSheets are imported from the static directory when present.  The
// extension is resolved at seed time.
var staticSheets = []struct {
	Base     string
	Soil     bool
	RegionID uint64
}{
	{"YY_weather_2023", false, 1},
	{"YY_soil_2023", true, 0},
}
