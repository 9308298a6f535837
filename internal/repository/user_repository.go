package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/farm-monitor/internal/database"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// UserRepo reads and writes the `user` and `user_role` tables.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Profile holds the user-editable columns.
type Profile struct {
	Name     string
	Tel      *string
	Sex      *string
	Address  *string
	Position *string
}

const userColumns = "user_id, user_email, user_name, user_password, user_tel, user_sex, user_address, user_position"

// NormalizeEmail lower-cases and trims an email before it is stored or compared.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts the user and its role assignments in a single transaction
// and returns the new id.  A duplicate email yields ErrEmailExists; the
// unique index decides the winner when two signups race.
func (r *UserRepo) Create(ctx context.Context, u model.User, roles []model.RoleName) (uint64, error) {
	var id uint64
	err := database.WithTx(ctx, r.DB, func(ctx context.Context, tx database.DBTX) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO `user` (user_email, user_name, user_password, user_tel, user_sex, user_address, user_position) VALUES (?,?,?,?,?,?,?)",
			NormalizeEmail(u.Email), u.Name, u.PasswordHash, u.Tel, u.Sex, u.Address, u.Position)
		if err != nil {
			if isDuplicate(err) {
				return ErrEmailExists
			}
			return err
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(lastID)
		return insertRoles(ctx, tx, id, roles)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertRoles(ctx context.Context, tx database.DBTX, userID uint64, roles []model.RoleName) error {
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_role (user_id, role_name) VALUES (?,?)", userID, string(role)); err != nil {
			return err
		}
	}
	return nil
}

// GetByEmail fetches a user (with roles) by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM `user` WHERE user_email=? LIMIT 1", NormalizeEmail(email))
	return r.withRoles(ctx, row)
}

// GetByID fetches a user (with roles) by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM `user` WHERE user_id=? LIMIT 1", id)
	return r.withRoles(ctx, row)
}

func (r *UserRepo) withRoles(ctx context.Context, row *sql.Row) (model.User, error) {
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, notFound(err)
	}
	u.Roles, err = r.rolesOf(ctx, u.ID)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanUser(s scanner) (model.User, error) {
	var (
		u                           model.User
		tel, sex, address, position sql.NullString
	)
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &tel, &sex, &address, &position); err != nil {
		return model.User{}, err
	}
	u.Tel, u.Sex, u.Address, u.Position = nullString(tel), nullString(sex), nullString(address), nullString(position)
	return u, nil
}

func (r *UserRepo) rolesOf(ctx context.Context, userID uint64) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT r.role_name, r.role_permissions FROM user_role ur
		 JOIN role r ON r.role_name = ur.role_name
		 WHERE ur.user_id=? ORDER BY r.role_name`, userID)
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

// List returns users ordered by id.  A non-empty emailLike filters by
// substring match on the email.
func (r *UserRepo) List(ctx context.Context, emailLike string) ([]model.User, error) {
	q := "SELECT " + userColumns + " FROM `user`"
	var args []any
	if emailLike != "" {
		q += " WHERE user_email LIKE ?"
		args = append(args, "%"+emailLike+"%")
	}
	q += " ORDER BY user_id"
	return r.listWithRoles(ctx, q, args...)
}

// ListByRole returns every user holding the given role, ordered by id.
func (r *UserRepo) ListByRole(ctx context.Context, role model.RoleName) ([]model.User, error) {
	q := "SELECT u.user_id, u.user_email, u.user_name, u.user_password, u.user_tel, u.user_sex, u.user_address, u.user_position " +
		"FROM `user` u JOIN user_role ur ON ur.user_id = u.user_id WHERE ur.role_name=? ORDER BY u.user_id"
	return r.listWithRoles(ctx, q, string(role))
}

func (r *UserRepo) listWithRoles(ctx context.Context, q string, args ...any) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range users {
		if users[i].Roles, err = r.rolesOf(ctx, users[i].ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// UpdateProfile overwrites the editable profile columns.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, p Profile) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE `user` SET user_name=?, user_tel=?, user_sex=?, user_address=?, user_position=? WHERE user_id=?",
		p.Name, p.Tel, p.Sex, p.Address, p.Position, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdatePassword stores a new bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE `user` SET user_password=? WHERE user_id=?", hash, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ReplaceRoles swaps the user's role set in one transaction.
func (r *UserRepo) ReplaceRoles(ctx context.Context, id uint64, roles []model.RoleName) error {
	return database.WithTx(ctx, r.DB, func(ctx context.Context, tx database.DBTX) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM user_role WHERE user_id=?", id); err != nil {
			return err
		}
		return insertRoles(ctx, tx, id, roles)
	})
}

// requireRow turns a zero-row UPDATE into ErrNotFound.  MySQL reports
// matched rows as affected only when values change, so the DSN enables
// clientFoundRows.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
