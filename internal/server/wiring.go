package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskmanager/apiserver/config"
	"github.com/taskmanager/apiserver/internal/auth"
	"github.com/taskmanager/apiserver/internal/db"
	"github.com/taskmanager/apiserver/internal/identity"
	"github.com/taskmanager/apiserver/internal/services"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type repositories struct {
	db    *sql.DB
	users services.UserRepository
	roles services.RoleRepository
	tasks services.TaskRepository
	lists services.ListRepository
}

func (r repositories) close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

func openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	switch cfg.StoreBackend {
	case "", StorePostgres:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return repositories{}, fmt.Errorf("open database: %w", err)
		}
		return repositories{
			db:    conn,
			users: store.NewUserRepository(conn),
			roles: store.NewRoleRepository(conn),
			tasks: store.NewTaskRepository(conn),
			lists: store.NewListRepository(conn),
		}, nil
	case StoreMemory:
		roles := store.NewMemoryRoleRepository()
		return repositories{
			users: store.NewMemoryUserRepository(roles),
			roles: roles,
			tasks: store.NewMemoryTaskRepository(),
			lists: store.NewMemoryListRepository(),
		}, nil
	default:
		return repositories{}, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

// NewTokenService picks RS256 when both key paths are configured and HS256
// otherwise.
func NewTokenService(cfg config.JWTConfig) (*auth.TokenService, error) {
	opts := []auth.TokenOption{auth.WithIssuer(cfg.Issuer)}
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		return auth.LoadRSATokenService(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TTL, opts...)
	}
	if cfg.Secret == "" {
		return nil, errors.New("JWT_SECRET or JWT_PRIVATE_KEY_PATH/JWT_PUBLIC_KEY_PATH must be set")
	}
	return auth.NewHMACTokenService([]byte(cfg.Secret), cfg.TTL, opts...)
}

// NewIdentityRegistry registers the local adapter and both federated
// adapters. Disabled providers stay registered so callers get
// provider_disabled instead of provider_unsupported.
func NewIdentityRegistry(cfg config.OAuthConfig) *identity.Registry {
	return identity.NewRegistry(
		identity.NewLocal(),
		identity.NewGoogle(providerOptions(cfg, types.ProviderGoogle, cfg.Google)),
		identity.NewGitHub(providerOptions(cfg, types.ProviderGitHub, cfg.GitHub)),
	)
}

func providerOptions(cfg config.OAuthConfig, provider types.Provider, pc config.ProviderConfig) identity.ProviderOptions {
	return identity.ProviderOptions{
		Enabled:      pc.Enabled,
		ClientID:     pc.ClientID,
		ClientSecret: pc.ClientSecret,
		RedirectURL:  fmt.Sprintf("%s/oauth2/callback/%s", cfg.CallbackBaseURL, provider),
		Scopes:       pc.Scopes,
	}
}

// Seed runs the role catalog and admin bootstrap against the configured
// store without starting the HTTP server.
func Seed(ctx context.Context, cfg config.Config) error {
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	logger := slog.Default()
	roles, err := services.NewRoleService(repos.roles, repos.users, logger)
	if err != nil {
		return err
	}
	return services.Seed(ctx, roles, repos.users, auth.NewPasswordHasher(cfg.BcryptCost), seedOptions(cfg.Seed), logger)
}
