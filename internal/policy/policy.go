// Package policy holds the authorization decisions for reservations and users.
// Every function is pure: it looks only at the caller and the resource.
package policy

import (
	"tablebook/internal/auth"
	apperrors "tablebook/internal/errors"
	"tablebook/internal/model"
)

// CanModify reports whether caller may edit or delete r: admins may touch any
// reservation, everyone else only their own.
func CanModify(caller auth.Identity, r *model.Reservation) bool {
	return caller.IsAdmin() || r.OwnedBy(caller.UserID)
}

// CanPromote reports whether caller may change another user's role.
func CanPromote(caller auth.Identity) bool {
	return caller.IsAdmin()
}

// CanBrowseAll reports whether caller may list and search every reservation.
func CanBrowseAll(caller auth.Identity) bool {
	return caller.IsAdmin()
}

// HasRole reports whether caller satisfies the required role.
func HasRole(caller auth.Identity, required model.Role) bool {
	switch required {
	case model.RoleAdmin:
		return caller.Role == model.RoleAdmin
	case model.RoleUser:
		return caller.Role == model.RoleUser || caller.Role == model.RoleAdmin
	default:
		return false
	}
}

// RequireModify returns ErrForbidden unless CanModify holds.
func RequireModify(caller auth.Identity, r *model.Reservation) error {
	if !CanModify(caller, r) {
		return apperrors.ErrForbidden
	}
	return nil
}

// RequireAdmin returns ErrForbidden unless caller is an admin.
func RequireAdmin(caller auth.Identity) error {
	if !caller.IsAdmin() {
		return apperrors.ErrForbidden
	}
	return nil
}
