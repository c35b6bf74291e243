package services

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

func TestEnsureCatalogIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.roles.EnsureCatalog(ctx))

	roles, err := f.roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)

	basic, ok, err := f.roles.DefaultRole(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, basic.HasAuthority(types.AuthorityReadPrivileges))
	assert.Len(t, basic.Authorities, 1)
}

func TestDefaultRoleMissing(t *testing.T) {
	f := newFixture(t, withoutCatalog())

	_, ok, err := f.roles.DefaultRole(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoleWritesPurgeCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.roles.Get(ctx, types.RoleBasic)
	require.NoError(t, err)

	_, err = f.roles.Rename(ctx, types.RoleBasic, "standard")
	require.NoError(t, err)

	_, err = f.roles.Get(ctx, types.RoleBasic)
	require.ErrorIs(t, err, store.ErrNotFound)

	renamed, err := f.roles.Get(ctx, "STANDARD")
	require.NoError(t, err)
	assert.Equal(t, "STANDARD", renamed.Name)

	_, err = f.roles.GrantAuthority(ctx, "STANDARD", "write_privileges")
	require.NoError(t, err)
	renamed, err = f.roles.Get(ctx, "STANDARD")
	require.NoError(t, err)
	assert.True(t, renamed.HasAuthority("WRITE_PRIVILEGES"))

	require.NoError(t, f.roles.Delete(ctx, "STANDARD"))
	_, err = f.roles.Get(ctx, "STANDARD")
	require.ErrorIs(t, err, store.ErrNotFound)
}

// pausingRoleRepo holds the first GetByName after it has read from the
// underlying repository until release is closed.
type pausingRoleRepo struct {
	RoleRepository
	hold    atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func (r *pausingRoleRepo) GetByName(ctx context.Context, name string) (types.Role, error) {
	role, err := r.RoleRepository.GetByName(ctx, name)
	if r.hold.CompareAndSwap(true, false) {
		close(r.loaded)
		<-r.release
	}
	return role, err
}

func TestRoleReadDuringWriteDoesNotCacheStaleRole(t *testing.T) {
	ctx := context.Background()
	base := store.NewMemoryRoleRepository()
	repo := &pausingRoleRepo{
		RoleRepository: base,
		loaded:         make(chan struct{}),
		release:        make(chan struct{}),
	}
	roles, err := NewRoleService(repo, store.NewMemoryUserRepository(base), testLogger)
	require.NoError(t, err)
	_, err = roles.Create(ctx, types.RoleBasic)
	require.NoError(t, err)

	repo.hold.Store(true)
	done := make(chan types.Role)
	go func() {
		role, _ := roles.Get(ctx, types.RoleBasic)
		done <- role
	}()
	<-repo.loaded

	_, err = roles.GrantAuthority(ctx, types.RoleBasic, "write_privileges")
	require.NoError(t, err)
	close(repo.release)

	stale := <-done
	assert.False(t, stale.HasAuthority("WRITE_PRIVILEGES"))

	current, err := roles.Get(ctx, types.RoleBasic)
	require.NoError(t, err)
	assert.True(t, current.HasAuthority("WRITE_PRIVILEGES"))
}

func TestRoleCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.roles.Create(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidRoleName)

	_, err = f.roles.Create(ctx, "admin")
	require.ErrorIs(t, err, store.ErrConflict)

	created, err := f.roles.Create(ctx, " auditor ")
	require.NoError(t, err)
	assert.Equal(t, "AUDITOR", created.Name)
}

func TestAssignAndRevokeRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.Create(ctx, types.User{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	user, err := f.roles.AssignToUser(ctx, "alice", types.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, user.HasRole(types.RoleAdmin))

	user, err = f.roles.AssignToUser(ctx, "alice", types.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, user.Roles, 1)

	user, err = f.roles.RevokeFromUser(ctx, "alice", types.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, user.HasRole(types.RoleAdmin))

	_, err = f.roles.AssignToUser(ctx, "alice", "MISSING")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserServicePrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, validRegistration("alice", "alice@example.com"))
	require.NoError(t, err)

	p, err := NewUserService(f.users).Principal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, []string{"READ_PRIVILEGES", "ROLE_BASIC"}, p.Permissions())

	_, err = NewUserService(f.users).Principal(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}
