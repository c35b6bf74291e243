package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taskmanager/apiserver/internal/auth"
	"github.com/taskmanager/apiserver/internal/metrics"
	"github.com/taskmanager/apiserver/internal/store"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// PrincipalLoader builds the principal for a token subject.
type PrincipalLoader interface {
	Principal(ctx context.Context, username string) (*auth.Principal, error)
}

// Authenticator resolves bearer tokens into request principals.
type Authenticator struct {
	tokens     TokenVerifier
	principals PrincipalLoader
	metrics    metrics.Recorder
	logger     *slog.Logger
}

func NewAuthenticator(tokens TokenVerifier, principals PrincipalLoader, recorder metrics.Recorder, logger *slog.Logger) *Authenticator {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{tokens: tokens, principals: principals, metrics: recorder, logger: logger}
}

// Authenticate attaches the principal of a valid bearer token to the request
// context. Requests without Bearer credentials pass through anonymously; a
// Bearer token that does not verify is rejected before any handler runs.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if errors.Is(err, errNoBearer) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			a.metrics.RecordTokenVerification("invalid")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			outcome := "invalid"
			if errors.Is(err, auth.ErrTokenExpired) {
				outcome = "expired"
			}
			a.metrics.RecordTokenVerification(outcome)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		principal, err := a.principals.Principal(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				a.metrics.RecordTokenVerification("unknown_subject")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			a.logger.ErrorContext(r.Context(), "load principal", "subject", claims.Subject, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
			return
		}

		a.metrics.RecordTokenVerification("success")
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose principal lacks the role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !auth.HasRole(p, role) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principal(r *http.Request) *auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}
