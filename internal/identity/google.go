package identity

import (
	"context"
	"net/http"

	"github.com/taskmanager/apiserver/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ProviderOptions configures a federated adapter. Zero endpoint and URL
// fields fall back to the provider's public defaults; tests override them.
type ProviderOptions struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	Endpoint    oauth2.Endpoint
	UserInfoURL string
	EmailsURL   string
	HTTPClient  *http.Client
}

func (o ProviderOptions) oauthConfig(fallback oauth2.Endpoint) *oauth2.Config {
	endpoint := o.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = fallback
	}
	return &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  o.RedirectURL,
		Scopes:       o.Scopes,
		Endpoint:     endpoint,
	}
}

// Google adapts Google OpenID Connect userinfo.
type Google struct {
	opts ProviderOptions
	conf *oauth2.Config
}

func NewGoogle(opts ProviderOptions) *Google {
	if opts.UserInfoURL == "" {
		opts.UserInfoURL = defaultGoogleUserInfoURL
	}
	return &Google{opts: opts, conf: opts.oauthConfig(google.Endpoint)}
}

func (g *Google) Provider() types.Provider { return types.ProviderGoogle }

func (g *Google) Enabled() bool { return g.opts.Enabled }

func (g *Google) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state)
}

func (g *Google) Exchange(ctx context.Context, code string) (Assertion, error) {
	return exchange(ctx, g.conf, g.opts.HTTPClient, g.opts.UserInfoURL, code)
}

func (g *Google) ExtractEmail(_ context.Context, a Assertion) (string, error) {
	return stringAttr(a.Attributes, "email"), nil
}

// ExtractName prefers the structured given_name/family_name claims and falls
// back to splitting the combined name claim.
func (g *Google) ExtractName(a Assertion) *types.FullName {
	given := stringAttr(a.Attributes, "given_name")
	family := stringAttr(a.Attributes, "family_name")
	if given != "" || family != "" {
		return &types.FullName{Given: given, Family: family}
	}
	return splitName(stringAttr(a.Attributes, "name"))
}

func (g *Google) ExtractUsername(a Assertion) string {
	if preferred := stringAttr(a.Attributes, "preferred_username"); preferred != "" {
		return preferred
	}
	return localPart(stringAttr(a.Attributes, "email"))
}

func (g *Google) ExtractProviderID(a Assertion) string {
	return stringAttr(a.Attributes, "sub")
}
