package auth

import (
	"context"

	"github.com/google/uuid"

	"tablebook/internal/model"
)

// Identity is the caller resolved from a session for one request.
type Identity struct {
	UserID   uuid.UUID  `json:"user_id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == model.RoleAdmin
}

// IdentityOf builds the identity a session for user carries.
func IdentityOf(user *model.User) Identity {
	return Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity carried by ctx. ok is false for anonymous requests.
func IdentityFrom(ctx context.Context) (id Identity, ok bool) {
	id, ok = ctx.Value(identityKey{}).(Identity)
	return id, ok
}
