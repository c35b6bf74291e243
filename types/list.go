package types

import "time"

// List represents a named checklist owned by a single user.
type List struct {
	// ID is the unique identifier of the list.
	ID int `json:"id" db:"id"`

	// Owner is the username of the account that owns the list.
	Owner string `json:"owner" db:"owner_username"`

	// Name is the list title.
	Name string `json:"name" db:"name"`

	// Description holds the free-form details.
	Description string `json:"description" db:"description"`

	// Elements are the list entries, stored as a JSON document.
	Elements []ListElement `json:"elements" db:"elements"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ListElement is a single checklist entry.
type ListElement struct {
	Name string `json:"name"`
	Done bool   `json:"done"`
}
