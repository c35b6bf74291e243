package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/taskmanager/apiserver/types"
)

const listColumns = `id, owner_username, name, description, elements, created_at, updated_at`

// ListRepository handles persistence for checklists.
type ListRepository struct {
	db *sql.DB
}

func NewListRepository(db *sql.DB) *ListRepository {
	return &ListRepository{db: db}
}

// List returns a page of lists. An empty owner lists every owner's lists.
func (r *ListRepository) List(ctx context.Context, owner string, offset, limit int) ([]types.List, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM lists WHERE ($1 = '' OR owner_username = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, owner).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + listColumns + `
		FROM lists
		WHERE ($1 = '' OR owner_username = $1)
		ORDER BY id
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, owner, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	lists := make([]types.List, 0, limit)
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, 0, err
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return lists, total, nil
}

func (r *ListRepository) Get(ctx context.Context, id int) (types.List, error) {
	const query = `SELECT ` + listColumns + ` FROM lists WHERE id = $1`
	list, err := scanList(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.List{}, ErrNotFound
		}
		return types.List{}, err
	}
	return list, nil
}

func (r *ListRepository) Create(ctx context.Context, list types.List) (types.List, error) {
	now := time.Now()
	list.CreatedAt = now
	list.UpdatedAt = now
	if list.Elements == nil {
		list.Elements = []types.ListElement{}
	}

	elementsJSON, err := json.Marshal(list.Elements)
	if err != nil {
		return types.List{}, err
	}

	const query = `
		INSERT INTO lists (owner_username, name, description, elements, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		list.Owner,
		list.Name,
		list.Description,
		elementsJSON,
		list.CreatedAt,
		list.UpdatedAt,
	).Scan(&list.ID); err != nil {
		return types.List{}, mapError(err)
	}
	return list, nil
}

func (r *ListRepository) Update(ctx context.Context, list types.List) (types.List, error) {
	list.UpdatedAt = time.Now()
	if list.Elements == nil {
		list.Elements = []types.ListElement{}
	}

	elementsJSON, err := json.Marshal(list.Elements)
	if err != nil {
		return types.List{}, err
	}

	const query = `
		UPDATE lists
		SET name = $1,
			description = $2,
			elements = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, list.Name, list.Description, elementsJSON, list.UpdatedAt, list.ID)
	if err != nil {
		return types.List{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.List{}, err
	}
	if affected == 0 {
		return types.List{}, ErrNotFound
	}
	return list, nil
}

func (r *ListRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM lists WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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

func scanList(row rowScanner) (types.List, error) {
	var (
		list         types.List
		elementsJSON []byte
	)
	if err := row.Scan(
		&list.ID,
		&list.Owner,
		&list.Name,
		&list.Description,
		&elementsJSON,
		&list.CreatedAt,
		&list.UpdatedAt,
	); err != nil {
		return types.List{}, err
	}
	list.Elements = []types.ListElement{}
	_ = json.Unmarshal(elementsJSON, &list.Elements)
	return list, nil
}
