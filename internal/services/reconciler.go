package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/taskmanager/apiserver/internal/identity"
	"github.com/taskmanager/apiserver/internal/metrics"
	"github.com/taskmanager/apiserver/internal/store"
	"github.com/taskmanager/apiserver/types"
)

const (
	// federatedAge marks accounts whose age was never collected.
	federatedAge = -1

	maxUsernameProbes = 1000
	fallbackUsername  = "user"
)

// ErrUsernameExhausted is returned when no free username could be derived.
var ErrUsernameExhausted = errors.New("no free username available")

// Reconciler maps a normalized identity onto exactly one local account,
// creating it on first sight and linking the provider otherwise.
type Reconciler struct {
	users   UserRepository
	roles   *RoleService
	events  *AccountEvents
	metrics metrics.Recorder
	logger  *slog.Logger
}

func NewReconciler(users UserRepository, roles *RoleService, events *AccountEvents, recorder metrics.Recorder, logger *slog.Logger) *Reconciler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{users: users, roles: roles, events: events, metrics: recorder, logger: logger}
}

// Reconcile returns the account for the identity's email. Two first-time
// logins racing on the same email collide on the unique constraint; the
// loser retries once and then finds the winner's account.
func (r *Reconciler) Reconcile(ctx context.Context, id identity.Identity) (types.User, error) {
	user, err := r.reconcile(ctx, id)
	if errors.Is(err, store.ErrConflict) {
		r.logger.InfoContext(ctx, "reconciliation conflict, retrying", "provider", id.Provider, "email", id.Email)
		r.metrics.RecordReconciliation("retried")
		user, err = r.reconcile(ctx, id)
	}
	if err != nil {
		r.metrics.RecordReconciliation("failed")
		return types.User{}, err
	}
	return user, nil
}

func (r *Reconciler) reconcile(ctx context.Context, id identity.Identity) (types.User, error) {
	user, err := r.users.GetByEmail(ctx, id.Email)
	switch {
	case err == nil:
		return r.link(ctx, user, id)
	case errors.Is(err, store.ErrNotFound):
		return r.create(ctx, id)
	default:
		return types.User{}, fmt.Errorf("load user by email: %w", err)
	}
}

func (r *Reconciler) create(ctx context.Context, id identity.Identity) (types.User, error) {
	username, err := r.UniqueUsername(ctx, usernameBase(id))
	if err != nil {
		return types.User{}, err
	}
	name := types.FullName{Given: username}
	if id.Name != nil && !id.Name.IsEmpty() {
		name = *id.Name
	}

	user := types.User{
		Username:  username,
		Email:     id.Email,
		Name:      name,
		Age:       federatedAge,
		Providers: []types.Provider{id.Provider},
	}
	if err := r.roles.AssignDefault(ctx, &user); err != nil {
		return types.User{}, err
	}

	created, err := r.users.Create(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	r.logger.InfoContext(ctx, "account created from identity provider",
		"user_id", created.ID, "username", created.Username, "provider", id.Provider)
	r.metrics.RecordReconciliation("created")
	r.events.Emit(ctx, EventUserCreated, created, id.Provider)
	return created, nil
}

// link adds the provider to an existing account and fills in a missing
// username or name. Existing values are never overwritten.
func (r *Reconciler) link(ctx context.Context, user types.User, id identity.Identity) (types.User, error) {
	linked := user.AddProvider(id.Provider)
	changed := linked

	if user.Username == "" {
		username, err := r.UniqueUsername(ctx, usernameBase(id))
		if err != nil {
			return types.User{}, err
		}
		user.Username = username
		changed = true
	}
	if user.Name.IsEmpty() && id.Name != nil && !id.Name.IsEmpty() {
		user.Name = *id.Name
		changed = true
	}

	if !changed {
		r.metrics.RecordReconciliation("unchanged")
		return user, nil
	}

	updated, err := r.users.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	r.metrics.RecordReconciliation("linked")
	if linked {
		r.logger.InfoContext(ctx, "identity provider linked", "user_id", updated.ID, "provider", id.Provider)
		r.events.Emit(ctx, EventProviderLinked, updated, id.Provider)
	}
	return updated, nil
}

// UniqueUsername returns base if it is free, otherwise the first free
// base1, base2, ... candidate.
func (r *Reconciler) UniqueUsername(ctx context.Context, base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = fallbackUsername
	}
	candidate := base
	for i := 1; i <= maxUsernameProbes; i++ {
		exists, err := r.users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
	return "", fmt.Errorf("%w: %q", ErrUsernameExhausted, base)
}

func usernameBase(id identity.Identity) string {
	if id.UsernameHint != "" {
		return id.UsernameHint
	}
	local, _, _ := strings.Cut(id.Email, "@")
	return local
}
