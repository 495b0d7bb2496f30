package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/users"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, avatar, phone,
	is_email_verified, is_active, vendor_profile, created_at, updated_at`

func scanUser(row pgx.Row) (users.User, error) {
	var u users.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role,
		&u.Avatar, &u.Phone, &u.IsEmailVerified, &u.IsActive, &u.VendorProfile, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u *users.User) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO users(`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.Avatar, u.Phone,
		u.IsEmailVerified, u.IsActive, u.VendorProfile, u.CreatedAt, u.UpdatedAt)
	return mapErr(err, "user")
}

func (s *Store) GetUser(ctx context.Context, id string) (users.User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	return u, mapErr(err, "user")
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (users.User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
	return u, mapErr(err, "user")
}

func (s *Store) ListUsers(ctx context.Context, f users.Filter, p paging.Page) ([]users.User, int, error) {
	var where []string
	var args []any
	if f.Role != "" {
		args = append(args, f.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", n, n, n))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM users`+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err, "count users")
	}
	args = append(args, p.Limit, p.Offset())
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, mapErr(err, "list users")
	}
	defer rows.Close()

	out := []users.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, mapErr(err, "scan user")
		}
		out = append(out, u)
	}
	return out, total, mapErr(rows.Err(), "list users")
}

func (s *Store) UpdateUser(ctx context.Context, u users.User) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE users SET email=$2, password_hash=$3, first_name=$4, last_name=$5, role=$6, avatar=$7,
			phone=$8, is_email_verified=$9, is_active=$10, vendor_profile=$11, updated_at=$12
		WHERE id=$1`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.Avatar,
		u.Phone, u.IsEmailVerified, u.IsActive, u.VendorProfile, u.UpdatedAt)
	if err != nil {
		return mapErr(err, "user")
	}
	if ct.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "user")
	}
	return nil
}
