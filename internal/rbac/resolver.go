// Package rbac resolves a signed-in user's role and permission set and
// answers capability checks for the admin UI and API.
package rbac

import (
	"context"
	"sync"

	"github.com/albumforge/backoffice/internal/model"
)

// SuperAdminRole bypasses individual permission checks. The bypass is
// layered on top of the permission set in Authorized, not folded into it,
// so audit paths can tell the two apart.
const SuperAdminRole = "super_admin"

// RoleSource supplies the role-permission join for a user. A (nil, nil)
// result is the valid "no role assigned" outcome.
type RoleSource interface {
	GetRoleForUser(ctx context.Context, userID uint64) (*model.Role, error)
}

type grant struct {
	role  string
	perms map[string]struct{}
}

// Resolver caches one flattened permission set per authenticated user for
// the lifetime of their session. Checks are pure in-memory lookups and fail
// closed: an unloaded or roleless user has no permissions.
type Resolver struct {
	src RoleSource

	mu     sync.RWMutex
	grants map[uint64]*grant
}

func NewResolver(src RoleSource) *Resolver {
	return &Resolver{src: src, grants: make(map[uint64]*grant)}
}

// Load fetches and caches the user's role and permissions. Loading again
// replaces the cached grant, so a role change takes effect after
// Invalidate+Load or a plain Load.
func (r *Resolver) Load(ctx context.Context, userID uint64) error {
	role, err := r.src.GetRoleForUser(ctx, userID)
	if err != nil {
		return err
	}
	g := &grant{perms: make(map[string]struct{})}
	if role != nil {
		g.role = role.Name
		for _, p := range role.Permissions {
			g.perms[p] = struct{}{}
		}
	}
	r.mu.Lock()
	r.grants[userID] = g
	r.mu.Unlock()
	return nil
}

// Loaded reports whether a grant is cached for the user.
func (r *Resolver) Loaded(userID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[userID]
	return ok
}

// HasPermission is a set-membership check against the loaded grant. False
// when nothing is loaded, when the user has no role, or when the permission
// is absent. Never errors.
func (r *Resolver) HasPermission(userID uint64, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[userID]
	if !ok {
		return false
	}
	_, ok = g.perms[name]
	return ok
}

// IsSuperAdmin reports whether the loaded role is the super-admin role.
func (r *Resolver) IsSuperAdmin(userID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[userID]
	return ok && g.role == SuperAdminRole
}

// Authorized is the two-part authorization check: super-admin bypass OR
// explicit permission membership.
func (r *Resolver) Authorized(userID uint64, name string) bool {
	return r.IsSuperAdmin(userID) || r.HasPermission(userID, name)
}

// Role returns the loaded role name, if any.
func (r *Resolver) Role(userID uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[userID]
	if !ok || g.role == "" {
		return "", false
	}
	return g.role, true
}

// Permissions returns a copy of the loaded permission names.
func (r *Resolver) Permissions(userID uint64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[userID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.perms))
	for p := range g.perms {
		out = append(out, p)
	}
	return out
}

// Invalidate drops the cached grant, forcing a reload on next use. Called
// on sign-out and role change.
func (r *Resolver) Invalidate(userID uint64) {
	r.mu.Lock()
	delete(r.grants, userID)
	r.mu.Unlock()
}
