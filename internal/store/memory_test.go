package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmanager/apiserver/types"
)

func TestMemoryUserUniqueness(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserRepository(nil)

	_, err := users.Create(ctx, types.User{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	_, err = users.Create(ctx, types.User{Username: "alice", Email: "other@example.com"})
	require.ErrorIs(t, err, ErrConflict)

	_, err = users.Create(ctx, types.User{Username: "other", Email: "alice@example.com"})
	require.ErrorIs(t, err, ErrConflict)

	// Accounts without a username do not collide with each other.
	_, err = users.Create(ctx, types.User{Email: "a@example.com"})
	require.NoError(t, err)
	_, err = users.Create(ctx, types.User{Email: "b@example.com"})
	require.NoError(t, err)

	exists, err := users.ExistsByUsername(ctx, "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryUserEmailIgnoresCase(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserRepository(nil)

	created, err := users.Create(ctx, types.User{Username: "bob", Email: "bob@x.com"})
	require.NoError(t, err)

	_, err = users.Create(ctx, types.User{Username: "robert", Email: "Bob@X.com"})
	require.ErrorIs(t, err, ErrConflict)

	found, err := users.GetByEmail(ctx, "BOB@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	exists, err := users.ExistsByEmail(ctx, "Bob@X.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryUserProvidersOnlyGrow(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserRepository(nil)

	created, err := users.Create(ctx, types.User{
		Username:  "alice",
		Email:     "alice@example.com",
		Providers: []types.Provider{types.ProviderLocal},
	})
	require.NoError(t, err)

	created.Providers = []types.Provider{types.ProviderGitHub}
	updated, err := users.Update(ctx, created)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.Provider{types.ProviderLocal, types.ProviderGitHub}, updated.Providers)
}

func TestMemoryUserReflectsRoleChanges(t *testing.T) {
	ctx := context.Background()
	roles := NewMemoryRoleRepository()
	users := NewMemoryUserRepository(roles)

	basic, err := roles.Create(ctx, types.RoleBasic)
	require.NoError(t, err)
	user, err := users.Create(ctx, types.User{Username: "alice", Email: "alice@example.com", Roles: []types.Role{basic}})
	require.NoError(t, err)

	_, err = roles.GrantAuthority(ctx, types.RoleBasic, types.AuthorityReadPrivileges)
	require.NoError(t, err)

	loaded, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Roles, 1)
	assert.True(t, loaded.Roles[0].HasAuthority(types.AuthorityReadPrivileges))

	require.NoError(t, roles.Delete(ctx, types.RoleBasic))
	loaded, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Roles)
}

func TestMemoryUserReturnsCopies(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserRepository(nil)

	created, err := users.Create(ctx, types.User{Username: "alice", Email: "alice@example.com", Providers: []types.Provider{types.ProviderLocal}})
	require.NoError(t, err)
	created.Providers[0] = types.ProviderGoogle

	loaded, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []types.Provider{types.ProviderLocal}, loaded.Providers)
}

func TestMemoryRoleRenameConflict(t *testing.T) {
	ctx := context.Background()
	roles := NewMemoryRoleRepository()

	_, err := roles.Create(ctx, "A")
	require.NoError(t, err)
	_, err = roles.Create(ctx, "B")
	require.NoError(t, err)

	_, err = roles.Rename(ctx, "A", "B")
	require.ErrorIs(t, err, ErrConflict)

	renamed, err := roles.Rename(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, "C", renamed.Name)
}

func TestMemoryTaskPagingAndOwnerFilter(t *testing.T) {
	ctx := context.Background()
	tasks := NewMemoryTaskRepository()

	for _, owner := range []string{"alice", "bob", "alice", "alice"} {
		_, err := tasks.Create(ctx, types.Task{Owner: owner, Title: "t"})
		require.NoError(t, err)
	}

	page, total, err := tasks.List(ctx, "alice", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, 3, page[0].ID)

	all, total, err := tasks.List(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, all, 4)
}
