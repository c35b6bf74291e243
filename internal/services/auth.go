package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taskmanager/apiserver/internal/identity"
	"github.com/taskmanager/apiserver/internal/metrics"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

// Messages returned to clients by the authentication endpoints.
const (
	MsgNotRegistered        = "User not registered!"
	MsgAuthenticationFailed = "Authentication failed!"
	MsgUsernameTaken        = "User already registered!"
	MsgEmailTaken           = "Email already registered!"
	MsgUserRegistered       = "User registered successfully!"
)

var (
	// ErrNotRegistered is returned when no account has the login username.
	ErrNotRegistered = errors.New("user not registered")
	// ErrAuthenticationFailed is returned when the password does not match
	// or the account has no local credential.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// TokenIssuer signs access tokens for a subject.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// CredentialHasher hashes and verifies passwords.
type CredentialHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users      UserRepository
	Roles      *RoleService
	Providers  *identity.Registry
	Reconciler *Reconciler
	Tokens     TokenIssuer
	Hasher     CredentialHasher
	Events     *AccountEvents
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// AuthService is the entry point for local login, registration and
// federated login. Every successful login ends with a freshly issued token.
type AuthService struct {
	users      UserRepository
	roles      *RoleService
	providers  *identity.Registry
	reconciler *Reconciler
	tokens     TokenIssuer
	hasher     CredentialHasher
	events     *AccountEvents
	metrics    metrics.Recorder
	logger     *slog.Logger
}

func NewAuthService(deps AuthDeps) *AuthService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Providers == nil {
		deps.Providers = identity.NewRegistry(identity.NewLocal())
	}
	if deps.Reconciler == nil {
		deps.Reconciler = NewReconciler(deps.Users, deps.Roles, deps.Events, deps.Metrics, deps.Logger)
	}
	return &AuthService{
		users:      deps.Users,
		roles:      deps.Roles,
		providers:  deps.Providers,
		reconciler: deps.Reconciler,
		tokens:     deps.Tokens,
		hasher:     deps.Hasher,
		events:     deps.Events,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Login verifies a username and password and returns a new token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	const method = string(types.ProviderLocal)

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.RecordLogin(method, "not_registered")
			return "", ErrNotRegistered
		}
		s.metrics.RecordLogin(method, "error")
		return "", fmt.Errorf("load user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.RecordLogin(method, "rejected")
		return "", ErrAuthenticationFailed
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.metrics.RecordLogin(method, "error")
		return "", fmt.Errorf("issue token: %w", err)
	}
	s.metrics.RecordLogin(method, "success")
	return token, nil
}

// Register creates a local account. Validation and duplicate failures are
// reported in the Result; the error is reserved for store failures.
func (s *AuthService) Register(ctx context.Context, req types.RegisterRequest) (types.Result, error) {
	req, err := s.normalizeRegistration(ctx, req)
	if err != nil {
		return types.Result{}, err
	}

	result := ValidateRegistration(req)
	if result.Failed() {
		s.metrics.RecordRegistration("invalid")
		return result, nil
	}

	if msg, err := s.duplicate(ctx, req.Username, req.Email); err != nil {
		return types.Result{}, err
	} else if msg != "" {
		s.metrics.RecordRegistration("duplicate")
		result.AddError(msg)
		return result, nil
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return types.Result{}, err
	}

	user := types.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Age:          req.Age,
		Providers:    []types.Provider{types.ProviderLocal},
	}
	if err := s.roles.AssignDefault(ctx, &user); err != nil {
		return types.Result{}, err
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return types.Result{}, fmt.Errorf("create user: %w", err)
		}
		// Lost a race with a concurrent registration.
		msg, dupErr := s.duplicate(ctx, req.Username, req.Email)
		if dupErr != nil {
			return types.Result{}, dupErr
		}
		if msg == "" {
			msg = MsgUsernameTaken
		}
		s.metrics.RecordRegistration("duplicate")
		result.AddError(msg)
		return result, nil
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", created.ID, "username", created.Username)
	s.metrics.RecordRegistration("success")
	s.events.Emit(ctx, EventUserRegistered, created, types.ProviderLocal)
	result.AddSuccess(MsgUserRegistered)
	return result, nil
}

// normalizeRegistration runs the payload through the local identity adapter
// so local and federated accounts share one extraction path.
func (s *AuthService) normalizeRegistration(ctx context.Context, req types.RegisterRequest) (types.RegisterRequest, error) {
	adapter, err := s.providers.Lookup(string(types.ProviderLocal))
	if err != nil {
		adapter = identity.NewLocal()
	}
	a := identity.LocalAssertion(req)

	email, err := adapter.ExtractEmail(ctx, a)
	if err != nil {
		return req, err
	}
	req.Email = identity.NormalizeEmail(email)
	req.Username = strings.TrimSpace(adapter.ExtractUsername(a))
	if name := adapter.ExtractName(a); name != nil {
		req.Name = *name
	}
	return req, nil
}

// duplicate returns the message for the first taken identifier, username
// before email.
func (s *AuthService) duplicate(ctx context.Context, username, email string) (string, error) {
	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("check username: %w", err)
	}
	if taken {
		return MsgUsernameTaken, nil
	}
	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("check email: %w", err)
	}
	if taken {
		return MsgEmailTaken, nil
	}
	return "", nil
}

// AuthCodeURL returns the provider consent URL carrying state.
func (s *AuthService) AuthCodeURL(providerTag, state string) (string, error) {
	adapter, err := s.federated(providerTag)
	if err != nil {
		return "", err
	}
	return adapter.AuthCodeURL(state), nil
}

// FederatedCallback exchanges an authorization code and logs the identity in.
func (s *AuthService) FederatedCallback(ctx context.Context, providerTag, code string) (string, types.User, error) {
	adapter, err := s.federated(providerTag)
	if err != nil {
		return "", types.User{}, err
	}
	assertion, err := adapter.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordLogin(string(adapter.Provider()), "error")
		return "", types.User{}, fmt.Errorf("%s exchange: %w", adapter.Provider(), err)
	}
	return s.FederatedLogin(ctx, providerTag, assertion)
}

// FederatedLogin normalizes a provider assertion, reconciles it onto a local
// account and issues a token for that account.
func (s *AuthService) FederatedLogin(ctx context.Context, providerTag string, a identity.Assertion) (string, types.User, error) {
	adapter, err := s.federated(providerTag)
	if err != nil {
		return "", types.User{}, err
	}
	method := string(adapter.Provider())

	id, err := identity.Normalize(ctx, adapter, a)
	if err != nil {
		s.metrics.RecordLogin(method, "rejected")
		return "", types.User{}, err
	}

	user, err := s.reconciler.Reconcile(ctx, id)
	if err != nil {
		s.metrics.RecordLogin(method, "error")
		return "", types.User{}, fmt.Errorf("reconcile account: %w", err)
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.metrics.RecordLogin(method, "error")
		return "", types.User{}, fmt.Errorf("issue token: %w", err)
	}
	s.metrics.RecordLogin(method, "success")
	return token, user, nil
}

func (s *AuthService) federated(providerTag string) (identity.Federated, error) {
	adapter, err := s.providers.Federated(providerTag)
	if err != nil {
		return nil, err
	}
	if !adapter.Enabled() {
		return nil, fmt.Errorf("%w: %s", identity.ErrProviderDisabled, adapter.Provider())
	}
	return adapter, nil
}
