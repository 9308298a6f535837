package model

// RoleName is one of the fixed role names stored in role.role_name.
type RoleName string

const (
	RoleUser          RoleName = "User"
	RoleManager       RoleName = "Manager"
	RoleAdministrator RoleName = "Administrator"
)

// Valid reports whether r is one of the known role names.
func (r RoleName) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdministrator:
		return true
	}
	return false
}

// DefaultRolePermissions is the mask each role is seeded with.
var DefaultRolePermissions = map[RoleName]Permission{
	RoleUser:          Perms(PermViewRegion, PermViewWeather, PermViewSoil),
	RoleManager:       Perms(PermImportData, PermManageService, PermExportReport, PermViewDevice),
	RoleAdministrator: Perms(PermManageUser, PermManageRole, PermAssignPrecinct),
}

// Role represents a row in the `role` table.
type Role struct {
	Name        RoleName   `json:"role_name"`
	Permissions Permission `json:"role_permissions"`
}

// User represents a row in the `user` table together with its role
// assignments (from `user_role`).  Optional profile columns are nullable
// and therefore pointers.
type User struct {
	ID           uint64
	Email        string
	Name         string
	PasswordHash string
	Tel          *string
	Sex          *string
	Address      *string
	Position     *string
	Roles        []Role
}

// UserRole mirrors the `user_role` join table.
type UserRole struct {
	UserID   uint64   `json:"user_id"`
	RoleName RoleName `json:"role_name"`
}

// Permissions returns the OR of every assigned role's mask.
func (u User) Permissions() Permission {
	var p Permission
	for _, r := range u.Roles {
		p |= r.Permissions
	}
	return p
}

// Can reports whether the combined mask covers all bits of required.
func (u User) Can(required Permission) bool {
	return u.Permissions().Has(required)
}

// HasAnyRole reports whether the user holds at least one of the given roles.
func (u User) HasAnyRole(names ...RoleName) bool {
	for _, r := range u.Roles {
		for _, want := range names {
			if r.Name == want {
				return true
			}
		}
	}
	return false
}

// RoleNames lists the assigned role names in stored order.
func (u User) RoleNames() []RoleName {
	out := make([]RoleName, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, r.Name)
	}
	return out
}

// UserView is the serialized form of a user returned by the API.  The
// password hash is never part of it.
type UserView struct {
	ID       uint64     `json:"user_id"`
	Email    string     `json:"user_email"`
	Name     string     `json:"user_name"`
	Tel      *string    `json:"user_tel"`
	Sex      *string    `json:"user_sex"`
	Address  *string    `json:"user_address"`
	Position *string    `json:"user_position"`
	Roles    []RoleName `json:"user_roles"`
}

func (u User) View() UserView {
	return UserView{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Tel:      u.Tel,
		Sex:      u.Sex,
		Address:  u.Address,
		Position: u.Position,
		Roles:    u.RoleNames(),
	}
}
