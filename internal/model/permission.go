package model

import "strings"

// Permission is a set of capability bits.  A single flag is a Permission with
// one bit set; a role's mask and a handler's requirement are both Permission
// values built by OR-ing flags together.
type Permission uint32

// Capability flags.  The bit positions are persisted in role.role_permissions
// and must never be reordered.
const (
	PermViewRegion Permission = 1 << iota
	PermViewWeather
	PermViewSoil
	PermImportData
	PermManageService
	PermExportReport
	PermViewDevice
	PermManageUser
	PermManageRole
	PermAssignPrecinct
)

// AllPermissions is the union of every defined flag.
const AllPermissions = PermViewRegion | PermViewWeather | PermViewSoil | PermImportData |
	PermManageService | PermExportReport | PermViewDevice | PermManageUser | PermManageRole |
	PermAssignPrecinct

var permissionNames = []struct {
	p    Permission
	name string
}{
	{PermViewRegion, "view_region"},
	{PermViewWeather, "view_weather"},
	{PermViewSoil, "view_soil"},
	{PermImportData, "import_data"},
	{PermManageService, "manage_service"},
	{PermExportReport, "export_report"},
	{PermViewDevice, "view_device"},
	{PermManageUser, "manage_user"},
	{PermManageRole, "manage_role"},
	{PermAssignPrecinct, "assign_precinct"},
}

// Perms combines flags with bitwise OR.
func Perms(ps ...Permission) Permission {
	var out Permission
	for _, p := range ps {
		out |= p
	}
	return out
}

// Has reports whether every bit of required is present in p.
func (p Permission) Has(required Permission) bool {
	return p&required == required
}

// With returns p with the given flags added.
func (p Permission) With(flags Permission) Permission { return p | flags }

// Without returns p with the given flags cleared.
func (p Permission) Without(flags Permission) Permission { return p &^ flags }

// Valid reports whether p only contains defined flags.
func (p Permission) Valid() bool { return p&^AllPermissions == 0 }

// Names lists the defined flags set in p, in bit order.
func (p Permission) Names() []string {
	names := []string{}
	for _, pn := range permissionNames {
		if p&pn.p != 0 {
			names = append(names, pn.name)
		}
	}
	return names
}

func (p Permission) String() string {
	if p == 0 {
		return "none"
	}
	names := p.Names()
	if !p.Valid() {
		names = append(names, "unknown")
	}
	return strings.Join(names, "|")
}

// ParsePermission resolves a flag name as produced by String.
func ParsePermission(name string) (Permission, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, pn := range permissionNames {
		if pn.name == name {
			return pn.p, true
		}
	}
	return 0, false
}
