package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskmanager/apiserver/internal/auth"
	"github.com/taskmanager/apiserver/types"
)

// ErrInvalidList is returned for lists that fail field validation.
var ErrInvalidList = errors.New("invalid list")

// ListRepository defines persistence operations for lists.
type ListRepository interface {
	List(ctx context.Context, owner string, offset, limit int) ([]types.List, int, error)
	Get(ctx context.Context, id int) (types.List, error)
	Create(ctx context.Context, list types.List) (types.List, error)
	Update(ctx context.Context, list types.List) (types.List, error)
	Delete(ctx context.Context, id int) error
}

// ListService encapsulates checklist use-cases, gated like TaskService.
type ListService struct {
	repo ListRepository
}

func NewListService(repo ListRepository) *ListService {
	return &ListService{repo: repo}
}

func (s *ListService) List(ctx context.Context, p *auth.Principal, owner string, offset, limit int) ([]types.List, int, error) {
	owner, err := listOwner(p, owner)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, owner, offset, limit)
}

func (s *ListService) Get(ctx context.Context, p *auth.Principal, id int) (types.List, error) {
	list, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.List{}, err
	}
	if err := auth.Authorize(p, list.Owner); err != nil {
		return types.List{}, err
	}
	return list, nil
}

func (s *ListService) Create(ctx context.Context, p *auth.Principal, list types.List) (types.List, error) {
	if p == nil {
		return types.List{}, auth.ErrNotPermitted
	}
	list.Owner = auth.OwnerFor(p, list.Owner)
	if err := validateList(&list); err != nil {
		return types.List{}, err
	}
	return s.repo.Create(ctx, list)
}

func (s *ListService) Update(ctx context.Context, p *auth.Principal, list types.List) (types.List, error) {
	existing, err := s.Get(ctx, p, list.ID)
	if err != nil {
		return types.List{}, err
	}
	list.Owner = existing.Owner
	if err := validateList(&list); err != nil {
		return types.List{}, err
	}
	return s.repo.Update(ctx, list)
}

func (s *ListService) Delete(ctx context.Context, p *auth.Principal, id int) error {
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func validateList(list *types.List) error {
	list.Name = strings.TrimSpace(list.Name)
	if list.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidList)
	}
	if list.Elements == nil {
		list.Elements = []types.ListElement{}
	}
	for i, el := range list.Elements {
		if strings.TrimSpace(el.Name) == "" {
			return fmt.Errorf("%w: element %d has no name", ErrInvalidList, i)
		}
	}
	return nil
}
