package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/taskmanager/apiserver/internal/identity"
	"github.com/taskmanager/apiserver/internal/services"
)

const (
	oauthStateCookie = "oauth2_state"
	oauthStateMaxAge = 600
)

// OAuthConfig configures the federated login redirects.
type OAuthConfig struct {
	// FrontendRedirectURL receives ?token= on success and ?code=&message= on failure.
	FrontendRedirectURL string
	CookieSecure        bool
}

// OAuthHandler runs the authorization code flow for federated providers.
type OAuthHandler struct {
	authService *services.AuthService
	config      OAuthConfig
	logger      *slog.Logger
}

func NewOAuthHandler(authService *services.AuthService, config OAuthConfig, logger *slog.Logger) *OAuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthHandler{authService: authService, config: config, logger: logger}
}

// OAuthRouter registers the federated login routes on the given router.
func OAuthRouter(r chi.Router, authService *services.AuthService, config OAuthConfig, logger *slog.Logger) {
	handler := NewOAuthHandler(authService, config, logger)

	r.Get("/authorize/{provider}", handler.Authorize)
	r.Get("/callback/{provider}", handler.Callback)
}

// Authorize redirects to the provider's consent page.
// GET /oauth2/authorize/{provider}
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	state := uuid.NewString()

	consentURL, err := h.authService.AuthCodeURL(provider, state)
	if err != nil {
		h.fail(w, r, provider, identity.ErrorCode(err), failureMessage(err), err)
		return
	}

	http.SetCookie(w, h.stateCookie(state, oauthStateMaxAge))
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// Callback completes the flow and hands the token to the frontend.
// GET /oauth2/callback/{provider}?code=xxx&state=yyy
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	query := r.URL.Query()

	// The state is single use whatever the outcome.
	stateCookie, cookieErr := r.Cookie(oauthStateCookie)
	http.SetCookie(w, h.stateCookie("", -1))

	if providerErr := query.Get("error"); providerErr != "" {
		h.fail(w, r, provider, identity.CodeAuthorization, providerErrorMessage(providerErr),
			errors.New(providerErr+": "+query.Get("error_description")))
		return
	}

	state := query.Get("state")
	if cookieErr != nil || state == "" ||
		subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		h.fail(w, r, provider, identity.CodeInvalidState, "Invalid OAuth2 state", errors.New("oauth state mismatch"))
		return
	}

	code := query.Get("code")
	if code == "" {
		h.fail(w, r, provider, identity.CodeAuthorization, "Missing authorization code", errors.New("missing code"))
		return
	}

	token, user, err := h.authService.FederatedCallback(r.Context(), provider, code)
	if err != nil {
		h.fail(w, r, provider, identity.ErrorCode(err), failureMessage(err), err)
		return
	}

	h.logger.InfoContext(r.Context(), "federated login", "provider", provider, "user_id", user.ID)
	h.redirect(w, r, url.Values{"token": {token}})
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, provider, code, message string, err error) {
	level := slog.LevelWarn
	if code == identity.CodeServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "federated login failed",
		"provider", provider, "code", code, "error", err)
	h.redirect(w, r, url.Values{"code": {code}, "message": {message}})
}

func (h *OAuthHandler) redirect(w http.ResponseWriter, r *http.Request, params url.Values) {
	target := h.config.FrontendRedirectURL
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	http.Redirect(w, r, target+sep+params.Encode(), http.StatusFound)
}

func (h *OAuthHandler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/oauth2",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrProviderUnsupported):
		return "Identity provider not supported"
	case errors.Is(err, identity.ErrProviderDisabled):
		return "Identity provider is disabled"
	case errors.Is(err, identity.ErrEmailNotFound):
		return "Email not found from identity provider"
	default:
		return "Authentication failed"
	}
}

// providerErrorMessage maps RFC 6749 error codes returned on the callback.
func providerErrorMessage(code string) string {
	switch code {
	case "access_denied":
		return "User cancelled authorization"
	case "invalid_request":
		return "Invalid OAuth2 request"
	case "unauthorized_client":
		return "Unauthorized client"
	case "unsupported_response_type":
		return "Unsupported response type"
	case "invalid_scope":
		return "Invalid scope"
	case "server_error":
		return "Authorization server error"
	case "temporarily_unavailable":
		return "Service temporarily unavailable"
	default:
		return "OAuth2 authentication error"
	}
}
