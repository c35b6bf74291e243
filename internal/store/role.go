package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taskmanager/apiserver/internal/db"
	"github.com/taskmanager/apiserver/types"
)

const roleSelect = `
	SELECT r.id, r.name, a.id, a.name
	FROM roles r
	LEFT JOIN role_authorities ra ON ra.role_id = r.id
	LEFT JOIN authorities a ON a.id = ra.authority_id`

// RoleRepository handles persistence for roles and their authorities.
type RoleRepository struct {
	db *sql.DB
}

func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (types.Role, error) {
	rows, err := r.db.QueryContext(ctx, roleSelect+` WHERE r.name = $1 ORDER BY a.id`, name)
	if err != nil {
		return types.Role{}, err
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return types.Role{}, err
	}
	if len(roles) == 0 {
		return types.Role{}, ErrNotFound
	}
	return roles[0], nil
}

func (r *RoleRepository) List(ctx context.Context) ([]types.Role, error) {
	rows, err := r.db.QueryContext(ctx, roleSelect+` ORDER BY r.id, a.id`)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

func (r *RoleRepository) Create(ctx context.Context, name string) (types.Role, error) {
	role := types.Role{Name: name, Authorities: []types.Authority{}}
	const query = `INSERT INTO roles (name) VALUES ($1) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&role.ID); err != nil {
		return types.Role{}, mapError(err)
	}
	return role, nil
}

func (r *RoleRepository) Rename(ctx context.Context, oldName, newName string) (types.Role, error) {
	const query = `UPDATE roles SET name = $1 WHERE name = $2`
	result, err := r.db.ExecContext(ctx, query, newName, oldName)
	if err != nil {
		return types.Role{}, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Role{}, err
	}
	if affected == 0 {
		return types.Role{}, ErrNotFound
	}
	return r.GetByName(ctx, newName)
}

func (r *RoleRepository) Delete(ctx context.Context, name string) error {
	const query = `DELETE FROM roles WHERE name = $1`
	result, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantAuthority attaches the authority to the role, creating the authority
// if it does not exist yet. Granting twice is a no-op.
func (r *RoleRepository) GrantAuthority(ctx context.Context, roleName, authority string) (types.Role, error) {
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		var roleID int
		err := tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1`, roleName).Scan(&roleID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var authorityID int
		const upsert = `
			INSERT INTO authorities (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`
		if err := tx.QueryRowContext(ctx, upsert, authority).Scan(&authorityID); err != nil {
			return err
		}

		const link = `
			INSERT INTO role_authorities (role_id, authority_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`
		_, err = tx.ExecContext(ctx, link, roleID, authorityID)
		return err
	})
	if err != nil {
		return types.Role{}, err
	}
	return r.GetByName(ctx, roleName)
}

// collectRoles folds (role id, role name, authority id, authority name) rows
// into roles, preserving row order. It closes rows.
func collectRoles(rows *sql.Rows) ([]types.Role, error) {
	defer rows.Close()

	roles := make([]types.Role, 0)
	index := make(map[int]int)
	for rows.Next() {
		var (
			roleID        int
			roleName      string
			authorityID   sql.NullInt64
			authorityName sql.NullString
		)
		if err := rows.Scan(&roleID, &roleName, &authorityID, &authorityName); err != nil {
			return nil, err
		}
		pos, ok := index[roleID]
		if !ok {
			roles = append(roles, types.Role{ID: roleID, Name: roleName, Authorities: []types.Authority{}})
			pos = len(roles) - 1
			index[roleID] = pos
		}
		if authorityID.Valid {
			roles[pos].Authorities = append(roles[pos].Authorities, types.Authority{
				ID:   int(authorityID.Int64),
				Name: authorityName.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
