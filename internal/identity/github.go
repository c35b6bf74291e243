package identity

import (
	"context"
	"strings"

	"github.com/taskmanager/apiserver/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	defaultGitHubUserURL   = "https://api.github.com/user"
	defaultGitHubEmailsURL = "https://api.github.com/user/emails"
)

// GitHub adapts the GitHub REST user resource. GitHub omits the email from
// /user when the address is private, so ExtractEmail falls back to the
// notification email and then to the primary verified address from
// /user/emails.
type GitHub struct {
	opts ProviderOptions
	conf *oauth2.Config
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func NewGitHub(opts ProviderOptions) *GitHub {
	if opts.UserInfoURL == "" {
		opts.UserInfoURL = defaultGitHubUserURL
	}
	if opts.EmailsURL == "" {
		opts.EmailsURL = defaultGitHubEmailsURL
	}
	return &GitHub{opts: opts, conf: opts.oauthConfig(github.Endpoint)}
}

func (g *GitHub) Provider() types.Provider { return types.ProviderGitHub }

func (g *GitHub) Enabled() bool { return g.opts.Enabled }

func (g *GitHub) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state)
}

func (g *GitHub) Exchange(ctx context.Context, code string) (Assertion, error) {
	return exchange(ctx, g.conf, g.opts.HTTPClient, g.opts.UserInfoURL, code)
}

func (g *GitHub) ExtractEmail(ctx context.Context, a Assertion) (string, error) {
	if email := stringAttr(a.Attributes, "email"); email != "" {
		return email, nil
	}
	if email := stringAttr(a.Attributes, "notification_email"); email != "" {
		return email, nil
	}
	if a.AccessToken == "" {
		return "", nil
	}
	return g.primaryEmail(ctx, a.AccessToken)
}

func (g *GitHub) primaryEmail(ctx context.Context, accessToken string) (string, error) {
	if g.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.opts.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	var emails []githubEmail
	if err := fetchJSON(ctx, client, g.opts.EmailsURL, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return strings.TrimSpace(e.Email), nil
		}
	}
	return "", nil
}

func (g *GitHub) ExtractName(a Assertion) *types.FullName {
	return splitName(stringAttr(a.Attributes, "name"))
}

func (g *GitHub) ExtractUsername(a Assertion) string {
	return stringAttr(a.Attributes, "login")
}

func (g *GitHub) ExtractProviderID(a Assertion) string {
	return stringAttr(a.Attributes, "id")
}
