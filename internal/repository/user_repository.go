package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/albumforge/backoffice/internal/model"
)

// UserRepo reads back-office accounts from the `users` table joined against
// `roles` for the role name. Account creation happens through the admin CRUD
// screens; this service only authenticates existing accounts.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByEmail fetches an active user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.password_hash, u.role_id, r.name, u.is_active, u.created_at, u.updated_at
		 FROM users u JOIN roles r ON r.id = u.role_id
		 WHERE u.email = ? LIMIT 1`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.RoleID, &u.RoleName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.password_hash, u.role_id, r.name, u.is_active, u.created_at, u.updated_at
		 FROM users u JOIN roles r ON r.id = u.role_id
		 WHERE u.id = ? LIMIT 1`,
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.RoleID, &u.RoleName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
