package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmanager/apiserver/types"
)

var roleRowColumns = []string{"id", "name", "id", "name"}

func newRoleRepoWithMock(t *testing.T) (*RoleRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewRoleRepository(conn), mock
}

func TestRoleGetByName(t *testing.T) {
	repo, mock := newRoleRepoWithMock(t)

	mock.ExpectQuery(`FROM roles r LEFT JOIN role_authorities (.+) WHERE r.name = \$1`).
		WithArgs("BASIC").
		WillReturnRows(sqlmock.NewRows(roleRowColumns).
			AddRow(2, "BASIC", 1, "READ_PRIVILEGES").
			AddRow(2, "BASIC", 4, "WRITE_TASKS"))

	role, err := repo.GetByName(context.Background(), "BASIC")
	require.NoError(t, err)
	assert.Equal(t, 2, role.ID)
	assert.Equal(t, []types.Authority{{ID: 1, Name: "READ_PRIVILEGES"}, {ID: 4, Name: "WRITE_TASKS"}}, role.Authorities)
}

func TestRoleGetByNameMissing(t *testing.T) {
	repo, mock := newRoleRepoWithMock(t)

	mock.ExpectQuery(`WHERE r.name = \$1`).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows(roleRowColumns))

	_, err := repo.GetByName(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRoleListGroupsRows(t *testing.T) {
	repo, mock := newRoleRepoWithMock(t)

	mock.ExpectQuery(`FROM roles r (.+) ORDER BY r.id, a.id`).
		WillReturnRows(sqlmock.NewRows(roleRowColumns).
			AddRow(1, "ADMIN", nil, nil).
			AddRow(2, "BASIC", 1, "READ_PRIVILEGES"))

	roles, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "ADMIN", roles[0].Name)
	assert.Empty(t, roles[0].Authorities)
	assert.True(t, roles[1].HasAuthority("READ_PRIVILEGES"))
}

func TestRoleCreateDuplicate(t *testing.T) {
	repo, mock := newRoleRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO roles \(name\) VALUES \(\$1\) RETURNING id`).
		WithArgs("ADMIN").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "roles_name_key"})

	_, err := repo.Create(context.Background(), "ADMIN")
	require.ErrorIs(t, err, ErrConflict)
}

func TestRoleGrantAuthority(t *testing.T) {
	repo, mock := newRoleRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM roles WHERE name = \$1`).
		WithArgs("BASIC").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery(`INSERT INTO authorities \(name\) VALUES \(\$1\) ON CONFLICT`).
		WithArgs("READ_PRIVILEGES").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO role_authorities`).
		WithArgs(2, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`WHERE r.name = \$1`).
		WithArgs("BASIC").
		WillReturnRows(sqlmock.NewRows(roleRowColumns).AddRow(2, "BASIC", 1, "READ_PRIVILEGES"))

	role, err := repo.GrantAuthority(context.Background(), "BASIC", "READ_PRIVILEGES")
	require.NoError(t, err)
	assert.True(t, role.HasAuthority("READ_PRIVILEGES"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleGrantAuthorityUnknownRole(t *testing.T) {
	repo, mock := newRoleRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM roles WHERE name = \$1`).
		WithArgs("GHOST").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.GrantAuthority(context.Background(), "GHOST", "X")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRenameAndDeleteMissing(t *testing.T) {
	repo, mock := newRoleRepoWithMock(t)

	mock.ExpectExec(`UPDATE roles SET name = \$1 WHERE name = \$2`).
		WithArgs("NEW", "OLD").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM roles WHERE name = \$1`).
		WithArgs("OLD").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Rename(context.Background(), "OLD", "NEW")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.Delete(context.Background(), "OLD"), ErrNotFound)
}
