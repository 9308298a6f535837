package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/farm-monitor/internal/model"
)

// RoleRepo manages the `role` table.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// List returns all roles ordered by name.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT role_name, role_permissions FROM role ORDER BY role_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.Name, &role.Permissions); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Upsert creates the role or resets its mask.
func (r *RoleRepo) Upsert(ctx context.Context, role model.Role) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO role (role_name, role_permissions) VALUES (?,?) ON DUPLICATE KEY UPDATE role_permissions=VALUES(role_permissions)",
		string(role.Name), uint32(role.Permissions))
	return err
}

// SetPermissions overwrites a role's mask.
func (r *RoleRepo) SetPermissions(ctx context.Context, name model.RoleName, p model.Permission) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE role SET role_permissions=? WHERE role_name=?", uint32(p), string(name))
	if err != nil {
		return err
	}
	return requireRow(res)
}
