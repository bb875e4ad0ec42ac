package repository

import (
	"context"
	"database/sql"

	"github.com/albumforge/backoffice/internal/model"
)

// RoleRepo loads a user's role and its flattened permission set from the
// roles / permissions / role_permissions join. Roles are read-only here.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// GetRoleForUser returns the role assigned to the user together with the
// names of every permission reachable from it. A user without a role row is
// a valid "no role" outcome and yields (nil, nil), not an error.
func (r *RoleRepo) GetRoleForUser(ctx context.Context, userID uint64) (*model.Role, error) {
	var role model.Role
	err := r.DB.QueryRowContext(ctx,
		`SELECT r.id, r.name FROM users u JOIN roles r ON r.id = u.role_id WHERE u.id = ? LIMIT 1`,
		userID).Scan(&role.ID, &role.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.name FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = ?`,
		role.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		role.Permissions = append(role.Permissions, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &role, nil
}
