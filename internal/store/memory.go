package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taskmanager/apiserver/types"
)

// The in-memory repositories back STORE_BACKEND=memory and tests. They
// enforce the same uniqueness rules as the Postgres schema.

// MemoryRoleRepository is an in-memory RoleRepository.
type MemoryRoleRepository struct {
	mu      sync.RWMutex
	nextID  int
	nextAID int
	roles   map[string]types.Role
	auths   map[string]int
}

func NewMemoryRoleRepository() *MemoryRoleRepository {
	return &MemoryRoleRepository{
		roles: make(map[string]types.Role),
		auths: make(map[string]int),
	}
}

func (r *MemoryRoleRepository) GetByName(ctx context.Context, name string) (types.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[name]
	if !ok {
		return types.Role{}, ErrNotFound
	}
	return copyRole(role), nil
}

func (r *MemoryRoleRepository) List(ctx context.Context) ([]types.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]types.Role, 0, len(r.roles))
	for _, role := range r.roles {
		roles = append(roles, copyRole(role))
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (r *MemoryRoleRepository) Create(ctx context.Context, name string) (types.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[name]; ok {
		return types.Role{}, ErrConflict
	}
	r.nextID++
	role := types.Role{ID: r.nextID, Name: name, Authorities: []types.Authority{}}
	r.roles[name] = role
	return copyRole(role), nil
}

func (r *MemoryRoleRepository) Rename(ctx context.Context, oldName, newName string) (types.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[oldName]
	if !ok {
		return types.Role{}, ErrNotFound
	}
	if _, taken := r.roles[newName]; taken && newName != oldName {
		return types.Role{}, ErrConflict
	}
	delete(r.roles, oldName)
	role.Name = newName
	r.roles[newName] = role
	return copyRole(role), nil
}

func (r *MemoryRoleRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[name]; !ok {
		return ErrNotFound
	}
	delete(r.roles, name)
	return nil
}

func (r *MemoryRoleRepository) GrantAuthority(ctx context.Context, roleName, authority string) (types.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[roleName]
	if !ok {
		return types.Role{}, ErrNotFound
	}
	id, ok := r.auths[authority]
	if !ok {
		r.nextAID++
		id = r.nextAID
		r.auths[authority] = id
	}
	if !role.HasAuthority(authority) {
		role.Authorities = append(role.Authorities, types.Authority{ID: id, Name: authority})
		r.roles[roleName] = role
	}
	return copyRole(role), nil
}

// byID resolves a role snapshot by id. Callers must hold r.mu.
func (r *MemoryRoleRepository) byID(id int) (types.Role, bool) {
	for _, role := range r.roles {
		if role.ID == id {
			return role, true
		}
	}
	return types.Role{}, false
}

// MemoryUserRepository is an in-memory UserRepository. When roles is set,
// role grants are re-resolved on every read so renames and authority grants
// show up the way they do with joins in Postgres.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int
	users  map[int]types.User
	roles  *MemoryRoleRepository
}

func NewMemoryUserRepository(roles *MemoryRoleRepository) *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int]types.User),
		roles: roles,
	}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.hydrate(user), nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.find(func(u types.User) bool { return username != "" && u.Username == username })
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.find(func(u types.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

func (r *MemoryUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *MemoryUserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	users := make([]types.User, 0)
	for i, id := range ids {
		if i < offset || (limit > 0 && len(users) >= limit) {
			continue
		}
		users = append(users, r.hydrate(r.users[id]))
	}
	return users, len(ids), nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken(user, 0) {
		return types.User{}, ErrConflict
	}
	r.nextID++
	now := time.Now()
	user.ID = r.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = copyUser(user)
	return r.hydrate(user), nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if r.taken(user, user.ID) {
		return types.User{}, ErrConflict
	}
	for _, provider := range existing.Providers {
		user.AddProvider(provider)
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	r.users[user.ID] = copyUser(user)
	return r.hydrate(user), nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) find(match func(types.User) bool) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if match(user) {
			return r.hydrate(user), nil
		}
	}
	return types.User{}, ErrNotFound
}

// taken reports whether another user already holds the username or email.
func (r *MemoryUserRepository) taken(user types.User, selfID int) bool {
	for id, other := range r.users {
		if id == selfID {
			continue
		}
		if strings.EqualFold(other.Email, user.Email) {
			return true
		}
		if user.Username != "" && other.Username == user.Username {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) hydrate(user types.User) types.User {
	user = copyUser(user)
	if r.roles == nil {
		return user
	}
	r.roles.mu.RLock()
	defer r.roles.mu.RUnlock()
	roles := make([]types.Role, 0, len(user.Roles))
	for _, granted := range user.Roles {
		if current, ok := r.roles.byID(granted.ID); ok {
			roles = append(roles, copyRole(current))
		} else if current, ok := r.roles.roles[granted.Name]; ok {
			roles = append(roles, copyRole(current))
		}
	}
	user.Roles = roles
	return user
}

// MemoryTaskRepository is an in-memory TaskRepository.
type MemoryTaskRepository struct {
	mu     sync.RWMutex
	nextID int
	tasks  map[int]types.Task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[int]types.Task)}
}

func (r *MemoryTaskRepository) List(ctx context.Context, owner string, offset, limit int) ([]types.Task, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]types.Task, 0)
	for _, task := range r.tasks {
		if owner == "" || task.Owner == owner {
			matched = append(matched, task)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return page(matched, offset, limit), len(matched), nil
}

func (r *MemoryTaskRepository) Get(ctx context.Context, id int) (types.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return types.Task{}, ErrNotFound
	}
	return task, nil
}

func (r *MemoryTaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now()
	task.ID = r.nextID
	task.CreatedAt = now
	task.UpdatedAt = now
	r.tasks[task.ID] = task
	return task, nil
}

func (r *MemoryTaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok {
		return types.Task{}, ErrNotFound
	}
	task.Owner = existing.Owner
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now()
	r.tasks[task.ID] = task
	return task, nil
}

func (r *MemoryTaskRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

// MemoryListRepository is an in-memory ListRepository.
type MemoryListRepository struct {
	mu     sync.RWMutex
	nextID int
	lists  map[int]types.List
}

func NewMemoryListRepository() *MemoryListRepository {
	return &MemoryListRepository{lists: make(map[int]types.List)}
}

func (r *MemoryListRepository) List(ctx context.Context, owner string, offset, limit int) ([]types.List, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]types.List, 0)
	for _, list := range r.lists {
		if owner == "" || list.Owner == owner {
			matched = append(matched, copyList(list))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return page(matched, offset, limit), len(matched), nil
}

func (r *MemoryListRepository) Get(ctx context.Context, id int) (types.List, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, ok := r.lists[id]
	if !ok {
		return types.List{}, ErrNotFound
	}
	return copyList(list), nil
}

func (r *MemoryListRepository) Create(ctx context.Context, list types.List) (types.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now()
	list.ID = r.nextID
	list.CreatedAt = now
	list.UpdatedAt = now
	list = copyList(list)
	r.lists[list.ID] = list
	return copyList(list), nil
}

func (r *MemoryListRepository) Update(ctx context.Context, list types.List) (types.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.lists[list.ID]
	if !ok {
		return types.List{}, ErrNotFound
	}
	list.Owner = existing.Owner
	list.CreatedAt = existing.CreatedAt
	list.UpdatedAt = time.Now()
	list = copyList(list)
	r.lists[list.ID] = list
	return copyList(list), nil
}

func (r *MemoryListRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[id]; !ok {
		return ErrNotFound
	}
	delete(r.lists, id)
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func copyRole(role types.Role) types.Role {
	role.Authorities = append([]types.Authority{}, role.Authorities...)
	return role
}

func copyUser(user types.User) types.User {
	roles := make([]types.Role, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, copyRole(role))
	}
	user.Roles = roles
	user.Providers = append([]types.Provider{}, user.Providers...)
	return user
}

func copyList(list types.List) types.List {
	list.Elements = append([]types.ListElement{}, list.Elements...)
	return list
}

