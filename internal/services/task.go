package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskmanager/apiserver/internal/auth"
	"github.com/taskmanager/apiserver/types"
)

// ErrInvalidTask is returned for tasks that fail field validation.
var ErrInvalidTask = errors.New("invalid task")

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context, owner string, offset, limit int) ([]types.Task, int, error)
	Get(ctx context.Context, id int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id int) error
}

// TaskService encapsulates task use-cases. Every operation is checked
// against the calling principal's ownership.
type TaskService struct {
	repo TaskRepository
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

// List returns the caller's tasks. Admins may filter by any owner or, with
// an empty owner, list everything.
func (s *TaskService) List(ctx context.Context, p *auth.Principal, owner string, offset, limit int) ([]types.Task, int, error) {
	owner, err := listOwner(p, owner)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, owner, offset, limit)
}

func (s *TaskService) Get(ctx context.Context, p *auth.Principal, id int) (types.Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if err := auth.Authorize(p, task.Owner); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (s *TaskService) Create(ctx context.Context, p *auth.Principal, task types.Task) (types.Task, error) {
	if p == nil {
		return types.Task{}, auth.ErrNotPermitted
	}
	task.Owner = auth.OwnerFor(p, task.Owner)
	if err := validateTask(&task); err != nil {
		return types.Task{}, err
	}
	return s.repo.Create(ctx, task)
}

// Update replaces the mutable fields of a task. The owner never changes.
func (s *TaskService) Update(ctx context.Context, p *auth.Principal, task types.Task) (types.Task, error) {
	existing, err := s.Get(ctx, p, task.ID)
	if err != nil {
		return types.Task{}, err
	}
	task.Owner = existing.Owner
	if err := validateTask(&task); err != nil {
		return types.Task{}, err
	}
	return s.repo.Update(ctx, task)
}

func (s *TaskService) Delete(ctx context.Context, p *auth.Principal, id int) error {
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func validateTask(task *types.Task) error {
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if task.State == "" {
		task.State = types.TaskStatePending
	}
	if !task.State.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidTask, task.State)
	}
	return nil
}

// listOwner resolves the owner filter for a listing. Non-admins asking for
// someone else's resources are refused rather than silently narrowed.
func listOwner(p *auth.Principal, requested string) (string, error) {
	if p == nil {
		return "", auth.ErrNotPermitted
	}
	requested = strings.TrimSpace(requested)
	if auth.IsAdmin(p) {
		return requested, nil
	}
	if requested != "" && requested != p.Username {
		return "", auth.ErrNotPermitted
	}
	return p.Username, nil
}
