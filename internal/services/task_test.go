package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmanager/apiserver/internal/auth"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

func TestTaskOwnership(t *testing.T) {
	svc := NewTaskService(store.NewMemoryTaskRepository())
	ctx := context.Background()
	alice := principalFor("alice", types.RoleBasic)
	bob := principalFor("bob", types.RoleBasic)
	admin := principalFor("root", types.RoleAdmin)

	// A non-admin cannot create on behalf of someone else.
	task, err := svc.Create(ctx, alice, types.Task{Title: " write report ", Owner: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "alice", task.Owner)
	assert.Equal(t, "write report", task.Title)
	assert.Equal(t, types.TaskStatePending, task.State)

	_, err = svc.Get(ctx, bob, task.ID)
	require.ErrorIs(t, err, auth.ErrNotPermitted)
	err = svc.Delete(ctx, bob, task.ID)
	require.ErrorIs(t, err, auth.ErrNotPermitted)

	got, err := svc.Get(ctx, admin, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = svc.Get(ctx, alice, 999)
	require.ErrorIs(t, err, store.ErrNotFound)

	forBob, err := svc.Create(ctx, admin, types.Task{Title: "review", Owner: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", forBob.Owner)
}

func TestTaskUpdateKeepsOwner(t *testing.T) {
	svc := NewTaskService(store.NewMemoryTaskRepository())
	ctx := context.Background()
	alice := principalFor("alice")

	task, err := svc.Create(ctx, alice, types.Task{Title: "draft"})
	require.NoError(t, err)

	task.Owner = "mallory"
	task.State = types.TaskStateDone
	updated, err := svc.Update(ctx, alice, task)
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Owner)
	assert.Equal(t, types.TaskStateDone, updated.State)

	task.State = "LOST"
	_, err = svc.Update(ctx, alice, task)
	require.ErrorIs(t, err, ErrInvalidTask)

	_, err = svc.Create(ctx, alice, types.Task{Title: "  "})
	require.ErrorIs(t, err, ErrInvalidTask)
}

func TestTaskListScoping(t *testing.T) {
	svc := NewTaskService(store.NewMemoryTaskRepository())
	ctx := context.Background()
	alice := principalFor("alice")
	bob := principalFor("bob")
	admin := principalFor("root", types.RoleAdmin)

	for _, p := range []*auth.Principal{alice, alice, bob} {
		_, err := svc.Create(ctx, p, types.Task{Title: "t"})
		require.NoError(t, err)
	}

	tasks, total, err := svc.List(ctx, alice, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, tasks, 2)

	_, _, err = svc.List(ctx, alice, "bob", 0, 10)
	require.ErrorIs(t, err, auth.ErrNotPermitted)

	_, total, err = svc.List(ctx, admin, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	_, total, err = svc.List(ctx, admin, "bob", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, _, err = svc.List(ctx, nil, "", 0, 10)
	require.ErrorIs(t, err, auth.ErrNotPermitted)
}

func TestListOwnership(t *testing.T) {
	svc := NewListService(store.NewMemoryListRepository())
	ctx := context.Background()
	alice := principalFor("alice")
	bob := principalFor("bob")

	list, err := svc.Create(ctx, alice, types.List{Name: "groceries", Elements: []types.ListElement{{Name: "milk"}}})
	require.NoError(t, err)
	assert.Equal(t, "alice", list.Owner)

	_, err = svc.Get(ctx, bob, list.ID)
	require.ErrorIs(t, err, auth.ErrNotPermitted)

	list.Elements[0].Done = true
	updated, err := svc.Update(ctx, alice, list)
	require.NoError(t, err)
	assert.True(t, updated.Elements[0].Done)

	list.Elements = append(list.Elements, types.ListElement{Name: " "})
	_, err = svc.Update(ctx, alice, list)
	require.ErrorIs(t, err, ErrInvalidList)

	_, err = svc.Update(ctx, bob, list)
	require.ErrorIs(t, err, auth.ErrNotPermitted)

	require.NoError(t, svc.Delete(ctx, alice, list.ID))
	_, err = svc.Get(ctx, alice, list.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
