package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

const roleCacheSize = 64

// ErrInvalidRoleName is returned for empty role or authority names.
var ErrInvalidRoleName = errors.New("invalid role name")

// RoleRepository defines persistence operations for roles.
type RoleRepository interface {
	GetByName(ctx context.Context, name string) (types.Role, error)
	List(ctx context.Context) ([]types.Role, error)
	Create(ctx context.Context, name string) (types.Role, error)
	Rename(ctx context.Context, oldName, newName string) (types.Role, error)
	Delete(ctx context.Context, name string) error
	GrantAuthority(ctx context.Context, roleName, authority string) (types.Role, error)
}

// RoleService resolves the default role, manages the role catalog and
// assigns roles to users. Reads go through an LRU cache that every write purges.
type RoleService struct {
	repo   RoleRepository
	users  UserRepository
	cache  *lru.Cache[string, types.Role]
	logger *slog.Logger

	// mu guards gen. A read only fills the cache if no write finished while
	// it was loading from the repository.
	mu  sync.Mutex
	gen uint64
}

func NewRoleService(repo RoleRepository, users UserRepository, logger *slog.Logger) (*RoleService, error) {
	cache, err := lru.New[string, types.Role](roleCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create role cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleService{repo: repo, users: users, cache: cache, logger: logger}, nil
}

// Get returns the named role.
func (s *RoleService) Get(ctx context.Context, name string) (types.Role, error) {
	if role, ok := s.cache.Get(name); ok {
		return role, nil
	}
	gen := s.generation()
	role, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return types.Role{}, err
	}
	s.fill(gen, name, role)
	return role, nil
}

func (s *RoleService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *RoleService) fill(gen uint64, name string, role types.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cache.Add(name, role)
	}
}

// invalidate drops every cached role once a write has reached the repository.
func (s *RoleService) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Purge()
}

// DefaultRole returns the BASIC role. A catalog that was never seeded is not
// an error: ok is false and the caller proceeds without a role.
func (s *RoleService) DefaultRole(ctx context.Context) (role types.Role, ok bool, err error) {
	role, err = s.Get(ctx, types.RoleBasic)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "default role missing, account created without roles", "role", types.RoleBasic)
			return types.Role{}, false, nil
		}
		return types.Role{}, false, fmt.Errorf("load default role: %w", err)
	}
	return role, true, nil
}

// AssignDefault grants the default role to user when it exists.
func (s *RoleService) AssignDefault(ctx context.Context, user *types.User) error {
	role, ok, err := s.DefaultRole(ctx)
	if err != nil {
		return err
	}
	if ok {
		user.AddRole(role)
	}
	return nil
}

func (s *RoleService) List(ctx context.Context) ([]types.Role, error) {
	return s.repo.List(ctx)
}

func (s *RoleService) Create(ctx context.Context, name string) (types.Role, error) {
	name, err := normalizeRoleName(name)
	if err != nil {
		return types.Role{}, err
	}
	role, err := s.repo.Create(ctx, name)
	s.invalidate()
	return role, err
}

func (s *RoleService) Rename(ctx context.Context, oldName, newName string) (types.Role, error) {
	newName, err := normalizeRoleName(newName)
	if err != nil {
		return types.Role{}, err
	}
	role, err := s.repo.Rename(ctx, oldName, newName)
	s.invalidate()
	return role, err
}

func (s *RoleService) Delete(ctx context.Context, name string) error {
	err := s.repo.Delete(ctx, name)
	s.invalidate()
	return err
}

func (s *RoleService) GrantAuthority(ctx context.Context, roleName, authority string) (types.Role, error) {
	authority, err := normalizeRoleName(authority)
	if err != nil {
		return types.Role{}, err
	}
	role, err := s.repo.GrantAuthority(ctx, roleName, authority)
	s.invalidate()
	return role, err
}

// AssignToUser grants the named role to the user. Granting a role the user
// already has is a no-op.
func (s *RoleService) AssignToUser(ctx context.Context, username, roleName string) (types.User, error) {
	role, err := s.Get(ctx, roleName)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return types.User{}, err
	}
	if !user.AddRole(role) {
		return user, nil
	}
	return s.users.Update(ctx, user)
}

// RevokeFromUser removes the named role from the user.
func (s *RoleService) RevokeFromUser(ctx context.Context, username, roleName string) (types.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return types.User{}, err
	}
	kept := make([]types.Role, 0, len(user.Roles))
	for _, role := range user.Roles {
		if role.Name != roleName {
			kept = append(kept, role)
		}
	}
	if len(kept) == len(user.Roles) {
		return user, nil
	}
	user.Roles = kept
	return s.users.Update(ctx, user)
}

// EnsureCatalog creates the ADMIN and BASIC roles and grants BASIC the
// read authority. It is safe to run repeatedly.
func (s *RoleService) EnsureCatalog(ctx context.Context) error {
	defer s.invalidate()
	for _, name := range []string{types.RoleAdmin, types.RoleBasic} {
		if _, err := s.repo.GetByName(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load role %s: %w", name, err)
		}
		if _, err := s.repo.Create(ctx, name); err != nil && !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("create role %s: %w", name, err)
		}
		s.logger.InfoContext(ctx, "role seeded", "role", name)
	}
	if _, err := s.repo.GrantAuthority(ctx, types.RoleBasic, types.AuthorityReadPrivileges); err != nil {
		return fmt.Errorf("grant %s: %w", types.AuthorityReadPrivileges, err)
	}
	return nil
}

func normalizeRoleName(name string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return "", ErrInvalidRoleName
	}
	return name, nil
}
