package types

import "time"

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStatePending    TaskState = "PENDING"
	TaskStateInProgress TaskState = "IN_PROGRESS"
	TaskStateDone       TaskState = "DONE"
)

// Valid reports whether the state is one of the known values.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStatePending, TaskStateInProgress, TaskStateDone:
		return true
	default:
		return false
	}
}

// Task represents a to-do item owned by a single user.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// Owner is the username of the account that owns the task.
	Owner string `json:"owner" db:"owner_username"`

	// Title is a short summary of the task.
	Title string `json:"title" db:"title"`

	// Description holds the free-form details.
	Description string `json:"description" db:"description"`

	// Priority orders tasks; higher is more urgent.
	Priority int `json:"priority" db:"priority"`

	// State is the current lifecycle state.
	State TaskState `json:"state" db:"state"`

	// DueAt is the optional deadline.
	DueAt *time.Time `json:"due_at,omitempty" db:"due_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
