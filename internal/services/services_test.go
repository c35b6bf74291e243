package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskmanager/apiserver/internal/auth"
	"github.com/taskmanager/apiserver/internal/identity"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingPublisher struct {
	mu     sync.Mutex
	events []AccountEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, data []byte, _ map[string]string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	var event AccountEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return "msg-1", nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	roleRepo  *store.MemoryRoleRepository
	users     *store.MemoryUserRepository
	roles     *RoleService
	tokens    *auth.TokenService
	hasher    *auth.PasswordHasher
	publisher *recordingPublisher
	auth      *AuthService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	seed      bool
	adapters  []identity.Adapter
	publisher *recordingPublisher
}

func withoutCatalog() fixtureOption {
	return func(c *fixtureConfig) { c.seed = false }
}

func withAdapters(adapters ...identity.Adapter) fixtureOption {
	return func(c *fixtureConfig) { c.adapters = adapters }
}

func withPublisher(p *recordingPublisher) fixtureOption {
	return func(c *fixtureConfig) { c.publisher = p }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		seed: true,
		adapters: []identity.Adapter{
			identity.NewLocal(),
			identity.NewGoogle(identity.ProviderOptions{Enabled: true}),
			identity.NewGitHub(identity.ProviderOptions{Enabled: true}),
		},
		publisher: &recordingPublisher{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	roleRepo := store.NewMemoryRoleRepository()
	users := store.NewMemoryUserRepository(roleRepo)
	roles, err := NewRoleService(roleRepo, users, testLogger)
	require.NoError(t, err)
	if cfg.seed {
		require.NoError(t, roles.EnsureCatalog(context.Background()))
	}

	tokens, err := auth.NewHMACTokenService([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	events := NewAccountEvents(cfg.publisher, "account-events", testLogger)

	return &fixture{
		roleRepo:  roleRepo,
		users:     users,
		roles:     roles,
		tokens:    tokens,
		hasher:    hasher,
		publisher: cfg.publisher,
		auth: NewAuthService(AuthDeps{
			Users:     users,
			Roles:     roles,
			Providers: identity.NewRegistry(cfg.adapters...),
			Tokens:    tokens,
			Hasher:    hasher,
			Events:    events,
			Logger:    testLogger,
		}),
	}
}

func validRegistration(username, email string) types.RegisterRequest {
	return types.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "Secr3t!pass",
		Age:      30,
		Name:     types.FullName{Given: "Test", Family: "User"},
	}
}

func principalFor(username string, roles ...string) *auth.Principal {
	user := types.User{Username: username}
	for _, role := range roles {
		user.Roles = append(user.Roles, types.Role{Name: role})
	}
	return auth.NewPrincipal(user)
}
