package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

// SeedOptions describes the bootstrap administrator.
type SeedOptions struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Seed creates the role catalog and the bootstrap administrator. Running it
// again leaves existing roles and users untouched. Without an admin password
// only the catalog is seeded.
func Seed(ctx context.Context, roles *RoleService, users UserRepository, hasher CredentialHasher, opts SeedOptions, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := roles.EnsureCatalog(ctx); err != nil {
		return err
	}

	username := strings.TrimSpace(opts.AdminUsername)
	if username == "" || opts.AdminPassword == "" {
		logger.WarnContext(ctx, "admin password not set, skipping admin bootstrap")
		return nil
	}

	exists, err := users.ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if exists {
		logger.InfoContext(ctx, "admin user already present", "username", username)
		return nil
	}

	admin, err := roles.Get(ctx, types.RoleAdmin)
	if err != nil {
		return fmt.Errorf("load admin role: %w", err)
	}
	hash, err := hasher.Hash(opts.AdminPassword)
	if err != nil {
		return err
	}

	user := types.User{
		Username:     username,
		Email:        strings.TrimSpace(opts.AdminEmail),
		PasswordHash: hash,
		Name:         types.FullName{Given: username},
		Age:          federatedAge,
		Roles:        []types.Role{admin},
		Providers:    []types.Provider{types.ProviderLocal},
	}
	created, err := users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.WarnContext(ctx, "admin email already in use, skipping admin bootstrap", "email", user.Email)
			return nil
		}
		return fmt.Errorf("create admin user: %w", err)
	}
	logger.InfoContext(ctx, "admin user seeded", "user_id", created.ID, "username", created.Username)
	return nil
}
