package types

// Well-known role and authority names seeded at install time.
const (
	RoleAdmin = "ADMIN"
	RoleBasic = "BASIC"

	AuthorityReadPrivileges = "READ_PRIVILEGES"
)

// Role is a named group of authorities granted to users.
type Role struct {
	// ID is the unique identifier of the role.
	ID int `json:"id" db:"id"`

	// Name is the unique role name, e.g. "ADMIN" or "BASIC".
	Name string `json:"name" db:"name"`

	// Authorities are the fine-grained permissions the role carries.
	Authorities []Authority `json:"authorities"`
}

// Authority is a named, fine-grained permission.
type Authority struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// HasAuthority reports whether the role carries the named authority.
func (r Role) HasAuthority(name string) bool {
	for _, a := range r.Authorities {
		if a.Name == name {
			return true
		}
	}
	return false
}
