package model

import "time"

// User represents a back-office account as stored in the `users` table.
// Handlers define separate response types with JSON tags; these structs are
// used internally by the repository layer.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	RoleID       – foreign key into the roles table.
//	IsActive     – whether the account is active.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	RoleID       uint8     // users.role_id (references roles.id)
	RoleName     string    // joined from roles.name for convenience
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Role is a named capability bundle assigned to a user. Permissions holds
// the flattened set of permission names reachable from the role, joined
// through role_permissions. Roles are loaded read-only by this service;
// creating or editing them is an administrative CRUD operation handled
// elsewhere.
type Role struct {
	ID          uint8    // roles.id
	Name        string   // roles.name (super_admin, admin, editor, visitor)
	Permissions []string // permissions.name via role_permissions
}

// RefreshToken models an entry in the `refresh_tokens` table. Each refresh
// token belongs to a user and carries metadata for expiry and revocation.
// The plain token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Product is a read-only row from the marketing catalog (`products`).
// The printing business entities behind it (albums, orders, customers)
// are managed by the back-office CRUD screens, not by this service.
type Product struct {
	ID          uint64 // products.id
	Name        string // products.name
	Description string // products.description
	PriceCents  uint32 // products.price_cents
	IsActive    bool   // products.is_active
}
