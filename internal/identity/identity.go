// Package identity normalizes the attribute shapes of local and federated
// identity providers into a single Identity the account reconciler can use.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/taskmanager/apiserver/types"
	"golang.org/x/oauth2"
)

var (
	// ErrProviderUnsupported is returned for unknown or non-federated provider tags.
	ErrProviderUnsupported = errors.New("identity provider not supported")
	// ErrProviderDisabled is returned when a known provider is switched off by configuration.
	ErrProviderDisabled = errors.New("identity provider disabled")
	// ErrEmailNotFound is returned when no email can be resolved from the assertion.
	ErrEmailNotFound = errors.New("email not found from identity provider")
)

// Stable failure codes reported to the frontend on the federated login redirect.
const (
	CodeProviderUnsupported = "provider_unsupported"
	CodeProviderDisabled    = "provider_disabled"
	CodeEmailNotFound       = "email_not_found"
	CodeAuthorization       = "authorization_error"
	CodeInvalidState        = "invalid_state"
	CodeServerError         = "server_error"
)

// ErrorCode maps an identity error to its stable code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrProviderUnsupported):
		return CodeProviderUnsupported
	case errors.Is(err, ErrProviderDisabled):
		return CodeProviderDisabled
	case errors.Is(err, ErrEmailNotFound):
		return CodeEmailNotFound
	default:
		return CodeServerError
	}
}

// Assertion is the raw outcome of a provider exchange: the userinfo
// attributes plus the access token needed for secondary lookups.
type Assertion struct {
	Attributes  map[string]any
	AccessToken string
}

// Identity is the provider-independent result of normalizing an Assertion.
type Identity struct {
	Provider     types.Provider
	ProviderID   string
	Email        string
	UsernameHint string
	// Name is nil when the provider supplied no usable name.
	Name *types.FullName
}

// Adapter extracts identity attributes from one provider's assertion shape.
// Missing attributes yield empty results; only I/O failures during secondary
// lookups are returned as errors.
type Adapter interface {
	Provider() types.Provider
	Enabled() bool
	ExtractEmail(ctx context.Context, a Assertion) (string, error)
	ExtractName(a Assertion) *types.FullName
	ExtractUsername(a Assertion) string
	ExtractProviderID(a Assertion) string
}

// Federated is an Adapter that can run the OAuth2 authorization code flow.
type Federated interface {
	Adapter
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Assertion, error)
}

// NormalizeEmail trims and lower-cases an address. Accounts are stored and
// looked up by this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize runs every extraction of the adapter over the assertion.
func Normalize(ctx context.Context, adapter Adapter, a Assertion) (Identity, error) {
	email, err := adapter.ExtractEmail(ctx, a)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve %s email: %w", adapter.Provider(), err)
	}
	email = NormalizeEmail(email)
	if email == "" {
		return Identity{}, ErrEmailNotFound
	}

	return Identity{
		Provider:     adapter.Provider(),
		ProviderID:   adapter.ExtractProviderID(a),
		Email:        email,
		UsernameHint: strings.TrimSpace(adapter.ExtractUsername(a)),
		Name:         adapter.ExtractName(a),
	}, nil
}

// Registry is the provider lookup table built at startup.
type Registry struct {
	adapters map[types.Provider]Adapter
}

// NewRegistry indexes the adapters by provider tag. Later adapters replace
// earlier ones with the same tag.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[types.Provider]Adapter, len(adapters))}
	for _, adapter := range adapters {
		r.adapters[adapter.Provider()] = adapter
	}
	return r
}

// Lookup returns the adapter for the tag, matched case-insensitively.
func (r *Registry) Lookup(tag string) (Adapter, error) {
	adapter, ok := r.adapters[types.Provider(strings.ToLower(strings.TrimSpace(tag)))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderUnsupported, tag)
	}
	return adapter, nil
}

// Federated returns the adapter for the tag if it supports the authorization
// code flow. The local provider is never federated.
func (r *Registry) Federated(tag string) (Federated, error) {
	adapter, err := r.Lookup(tag)
	if err != nil {
		return nil, err
	}
	federated, ok := adapter.(Federated)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderUnsupported, tag)
	}
	return federated, nil
}

// Enabled lists the tags of enabled federated providers.
func (r *Registry) Enabled() []types.Provider {
	var out []types.Provider
	for tag, adapter := range r.adapters {
		if _, ok := adapter.(Federated); ok && adapter.Enabled() {
			out = append(out, tag)
		}
	}
	return out
}

// fetchJSON performs an authenticated GET and decodes the JSON body into out.
func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s failed with status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// exchange swaps the authorization code for a token and fetches userinfo.
func exchange(ctx context.Context, conf *oauth2.Config, httpClient *http.Client, userInfoURL, code string) (Assertion, error) {
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return Assertion{}, fmt.Errorf("exchange code: %w", err)
	}

	attrs := make(map[string]any)
	if err := fetchJSON(ctx, conf.Client(ctx, token), userInfoURL, &attrs); err != nil {
		return Assertion{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	return Assertion{Attributes: attrs, AccessToken: token.AccessToken}, nil
}
