package auth

import (
	"errors"
	"strings"

	"github.com/taskmanager/apiserver/types"
)

// ErrNotPermitted is returned when a principal may not act on a resource.
var ErrNotPermitted = errors.New("not permitted")

// HasRole reports whether the principal carries the ROLE_<role> marker.
func HasRole(p *Principal, role string) bool {
	return p.Has(RolePrefix + role)
}

// IsAdmin is shorthand for HasRole(p, types.RoleAdmin).
func IsAdmin(p *Principal) bool {
	return HasRole(p, types.RoleAdmin)
}

// CanAccess reports whether the principal may view, mutate or delete a
// resource owned by ownerUsername. Admins may access everything.
func CanAccess(p *Principal, ownerUsername string) bool {
	if p == nil {
		return false
	}
	return IsAdmin(p) || ownerUsername == p.Username
}

// Authorize returns ErrNotPermitted when CanAccess is false.
func Authorize(p *Principal, ownerUsername string) error {
	if !CanAccess(p, ownerUsername) {
		return ErrNotPermitted
	}
	return nil
}

// OwnerFor resolves the owner of a resource being created. Only admins may
// create on behalf of another user; everyone else always owns what they create.
func OwnerFor(p *Principal, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" && IsAdmin(p) {
		return requested
	}
	if p == nil {
		return ""
	}
	return p.Username
}
