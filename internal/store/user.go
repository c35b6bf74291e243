package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskmanager/apiserver/internal/db"
	"github.com/taskmanager/apiserver/types"
)

const userColumns = `id, username, email, password_hash, given_name, middle_name, family_name, age, created_at, updated_at`

// UserRepository handles persistence for users, their role grants and
// linked identity providers.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns a page of users ordered by id together with the total count.
func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range users {
		if err := hydrateUser(ctx, r.db, &users[i]); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

// Create inserts the user with its roles and providers in one transaction.
// Unique violations on username or email are reported as ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		const query = `
			INSERT INTO users (username, email, password_hash, given_name, middle_name, family_name, age, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			query,
			nullString(user.Username),
			user.Email,
			nullString(user.PasswordHash),
			user.Name.Given,
			user.Name.Middle,
			user.Name.Family,
			user.Age,
			user.CreatedAt,
			user.UpdatedAt,
		).Scan(&user.ID); err != nil {
			return err
		}
		if err := replaceUserRoles(ctx, tx, user.ID, user.Roles); err != nil {
			return err
		}
		return addUserProviders(ctx, tx, user.ID, user.Providers)
	})
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// Update rewrites the user's columns and role grants. Providers are only ever
// added, never removed.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		const query = `
			UPDATE users
			SET username = $1,
				email = $2,
				password_hash = $3,
				given_name = $4,
				middle_name = $5,
				family_name = $6,
				age = $7,
				updated_at = $8
			WHERE id = $9`
		result, err := tx.ExecContext(
			ctx,
			query,
			nullString(user.Username),
			user.Email,
			nullString(user.PasswordHash),
			user.Name.Given,
			user.Name.Middle,
			user.Name.Family,
			user.Age,
			user.UpdatedAt,
			user.ID,
		)
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
		if err := replaceUserRoles(ctx, tx, user.ID, user.Roles); err != nil {
			return err
		}
		return addUserProviders(ctx, tx, user.ID, user.Providers)
	})
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
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

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	if err := hydrateUser(ctx, r.db, &user); err != nil {
		return types.User{}, err
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user         types.User
		username     sql.NullString
		passwordHash sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&username,
		&user.Email,
		&passwordHash,
		&user.Name.Given,
		&user.Name.Middle,
		&user.Name.Family,
		&user.Age,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	user.Username = username.String
	user.PasswordHash = passwordHash.String
	return user, nil
}

// hydrateUser loads the role grants (with authorities) and providers.
func hydrateUser(ctx context.Context, conn db.DBTX, user *types.User) error {
	const rolesQuery = `
		SELECT r.id, r.name, a.id, a.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_authorities ra ON ra.role_id = r.id
		LEFT JOIN authorities a ON a.id = ra.authority_id
		WHERE ur.user_id = $1
		ORDER BY r.id, a.id`
	rows, err := conn.QueryContext(ctx, rolesQuery, user.ID)
	if err != nil {
		return err
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return err
	}
	user.Roles = roles

	const providersQuery = `SELECT provider FROM user_providers WHERE user_id = $1 ORDER BY provider`
	providerRows, err := conn.QueryContext(ctx, providersQuery, user.ID)
	if err != nil {
		return err
	}
	defer providerRows.Close()

	user.Providers = make([]types.Provider, 0)
	for providerRows.Next() {
		var provider string
		if err := providerRows.Scan(&provider); err != nil {
			return err
		}
		user.Providers = append(user.Providers, types.Provider(provider))
	}
	return providerRows.Err()
}

func replaceUserRoles(ctx context.Context, tx db.DBTX, userID int, roles []types.Role) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	const query = `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
		ON CONFLICT DO NOTHING`
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, query, userID, role.Name); err != nil {
			return err
		}
	}
	return nil
}

func addUserProviders(ctx context.Context, tx db.DBTX, userID int, providers []types.Provider) error {
	const query = `
		INSERT INTO user_providers (user_id, provider)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	for _, provider := range providers {
		if _, err := tx.ExecContext(ctx, query, userID, string(provider)); err != nil {
			return err
		}
	}
	return nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
