package types

import (
	"strings"
	"time"
)

// Provider tags the identity source an account has authenticated through.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// User represents an account in the system.
// It contains identity, role, provider and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name. It may be empty for an account
	// created by a federated provider until reconciliation backfills it.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It is unique across accounts and
	// is the join key used to link federated identities.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// Accounts created only through a federated provider have no hash.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Name is the user's structured display name.
	Name FullName `json:"name"`

	// Age is the self-reported age. Federated accounts that never
	// registered locally carry -1.
	Age int `json:"age" db:"age"`

	// Roles are the roles granted to the user.
	Roles []Role `json:"roles"`

	// Providers is the set of identity sources linked to the account.
	// It only grows.
	Providers []Provider `json:"providers"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName is a structured person name. Every part is optional.
type FullName struct {
	Given  string `json:"given,omitempty" db:"given_name"`
	Middle string `json:"middle,omitempty" db:"middle_name"`
	Family string `json:"family,omitempty" db:"family_name"`
}

// IsEmpty reports whether no part of the name is set.
func (n FullName) IsEmpty() bool {
	return strings.TrimSpace(n.Given) == "" &&
		strings.TrimSpace(n.Middle) == "" &&
		strings.TrimSpace(n.Family) == ""
}

// String joins the non-empty parts with a single space.
func (n FullName) String() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{n.Given, n.Middle, n.Family} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// HasProvider reports whether the provider is linked to the user.
func (u User) HasProvider(provider Provider) bool {
	for _, p := range u.Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// AddProvider links the provider to the user. It returns false when the
// provider was already present.
func (u *User) AddProvider(provider Provider) bool {
	if u.HasProvider(provider) {
		return false
	}
	u.Providers = append(u.Providers, provider)
	return true
}

// HasRole reports whether the user has been granted the named role.
func (u User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// AddRole grants the role unless a role with the same name is already present.
func (u *User) AddRole(role Role) bool {
	if u.HasRole(role.Name) {
		return false
	}
	u.Roles = append(u.Roles, role)
	return true
}

// RegisterRequest is the payload for local account registration.
type RegisterRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Age      int      `json:"age"`
	Name     FullName `json:"name"`
}
