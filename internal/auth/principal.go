package auth

import (
	"context"
	"sort"

	"github.com/taskmanager/apiserver/types"
)

// RolePrefix marks a role in the flat permission set.
const RolePrefix = "ROLE_"

// Principal is the authenticated identity attached to a request. It is built
// once from the user's roles and never mutated afterwards.
type Principal struct {
	UserID   int
	Username string
	Email    string
	Name     types.FullName

	permissions map[string]struct{}
}

// NewPrincipal flattens the user's roles into a permission set holding every
// role's authorities plus a ROLE_<name> marker per role.
func NewPrincipal(user types.User) *Principal {
	perms := make(map[string]struct{})
	for _, role := range user.Roles {
		perms[RolePrefix+role.Name] = struct{}{}
		for _, authority := range role.Authorities {
			perms[authority.Name] = struct{}{}
		}
	}
	return &Principal{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Name:        user.Name,
		permissions: perms,
	}
}

// Has reports whether the permission is in the set.
func (p *Principal) Has(permission string) bool {
	if p == nil {
		return false
	}
	_, ok := p.permissions[permission]
	return ok
}

// Permissions returns a sorted copy of the permission set.
func (p *Principal) Permissions() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.permissions))
	for perm := range p.permissions {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}

type principalContextKey struct{}

// WithPrincipal returns a copy of ctx carrying the principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the request principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}
