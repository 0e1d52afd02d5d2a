// Package oauth wraps the external identity providers used for social login.
// It only proves identity; mapping a provider identity to a local user lives
// in the auth service.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/inner-byte/i2bt-v1/internal/config"
)

const exchangeTimeout = 10 * time.Second

// UserInfo is the identity a provider vouches for after a successful exchange.
type UserInfo struct {
	Email     string
	Name      string
	AvatarURL string
}

// Provider performs the authorization-code dance with one external provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*UserInfo, error)
}

type provider struct {
	name        string
	cfg         *oauth2.Config
	userInfoURL string
	parse       func([]byte) (*UserInfo, error)
}

// NewProvider builds a Provider from explicit endpoints. Tests point it at a
// local server; production code uses the Google/GitHub constructors below.
func NewProvider(name string, cfg *oauth2.Config, userInfoURL string, parse func([]byte) (*UserInfo, error)) Provider {
	return &provider{name: name, cfg: cfg, userInfoURL: userInfoURL, parse: parse}
}

func (p *provider) Name() string {
	return p.name
}

func (p *provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *provider) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s userinfo request: status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	info, err := p.parse(body)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo decode: %w", p.name, err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("%s did not supply an email address", p.name)
	}
	return info, nil
}

// Google returns the Google provider configured for OIDC userinfo.
func Google(clientID, clientSecret, redirectURL string) Provider {
	return NewProvider("google", &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
	}, "https://openidconnect.googleapis.com/v1/userinfo", parseGoogle)
}

// GitHub returns the GitHub provider.
func GitHub(clientID, clientSecret, redirectURL string) Provider {
	return NewProvider("github", &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     endpoints.GitHub,
	}, "https://api.github.com/user", parseGitHub)
}

func parseGoogle(body []byte) (*UserInfo, error) {
	var payload struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &UserInfo{Email: payload.Email, Name: payload.Name, AvatarURL: payload.Picture}, nil
}

func parseGitHub(body []byte) (*UserInfo, error) {
	var payload struct {
		Email     string `json:"email"`
		Name      string `json:"name"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	name := payload.Name
	if name == "" {
		name = payload.Login
	}
	return &UserInfo{Email: payload.Email, Name: name, AvatarURL: payload.AvatarURL}, nil
}

// Registry holds the configured providers keyed by name.
type Registry map[string]Provider

// NewRegistry builds providers for every configured credential pair. The
// callback URL is derived from the public base URL so emailed and redirected
// links agree.
func NewRegistry(cfg *config.Config) Registry {
	reg := Registry{}
	if cfg.OAuthConfigured("google") {
		reg["google"] = Google(cfg.GoogleClientID, cfg.GoogleClientSecret,
			cfg.PublicBaseURL+"/api/auth/google/callback")
	}
	if cfg.OAuthConfigured("github") {
		reg["github"] = GitHub(cfg.GithubClientID, cfg.GithubClientSecret,
			cfg.PublicBaseURL+"/api/auth/github/callback")
	}
	return reg
}
