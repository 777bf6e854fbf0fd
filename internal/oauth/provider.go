package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"
	googleendpoint "golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Profile is the subset of the upstream user record the bridge cares
// about: a stable ID, a display name, and an email address.
type Profile struct {
	ID    string
	Name  string
	Email string
}

// Provider performs the upstream half of the authorization code grant:
// building the authorization URL, exchanging the callback code for an
// access token, and fetching the authenticated user's profile.
type Provider interface {
	// Name identifies the provider in logs and metrics ("google", "github").
	Name() string

	// AuthCodeURL returns the provider's authorization URL with the given
	// state parameter.
	AuthCodeURL(state string) string

	// Exchange trades the callback code for an upstream token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchProfile resolves the token to the upstream user's profile.
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// GoogleConfig configures the Google upstream provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Scopes defaults to the identity scopes (openid, profile, email).
	Scopes []string

	// Endpoint overrides Google's OAuth endpoints (tests only).
	Endpoint oauth2.Endpoint

	// UserinfoEndpoint overrides the userinfo service base URL (tests only).
	UserinfoEndpoint string

	// HTTPClient is used for the token exchange when set.
	HTTPClient *http.Client
}

type googleProvider struct {
	oauth            *oauth2.Config
	userinfoEndpoint string
	httpClient       *http.Client
}

// NewGoogleProvider creates a Provider backed by Google's OAuth 2.0
// endpoints. The profile is fetched through the Google userinfo service.
func NewGoogleProvider(cfg GoogleConfig) (Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google client ID and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("google redirect URL is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = googleendpoint.Endpoint
	}

	return &googleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userinfoEndpoint: cfg.UserinfoEndpoint,
		httpClient:       cfg.HTTPClient,
	}, nil
}

func (p *googleProvider) Name() string { return "google" }

func (p *googleProvider) AuthCodeURL(state string) string {
	// AccessTypeOffline requests a refresh token alongside the access token.
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *googleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	return p.oauth.Exchange(ctx, code)
}

func (p *googleProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(token)),
	}
	if p.userinfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.userinfoEndpoint))
	}

	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo service: %w", err)
	}

	userinfo, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google userinfo: %w", err)
	}

	return &Profile{
		ID:    userinfo.Id,
		Name:  userinfo.Name,
		Email: userinfo.Email,
	}, nil
}

// GitHubConfig configures the GitHub upstream provider.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Scopes defaults to read:user and user:email.
	Scopes []string

	// Endpoint overrides GitHub's OAuth endpoints (tests only).
	Endpoint oauth2.Endpoint

	// APIBaseURL overrides the REST API base, default "https://api.github.com".
	APIBaseURL string

	// HTTPClient is used for the token exchange and profile fetch when set.
	HTTPClient *http.Client
}

type githubProvider struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewGitHubProvider creates a Provider backed by GitHub's OAuth endpoints
// and REST API.
func NewGitHubProvider(cfg GitHubConfig) (Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("github client ID and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("github redirect URL is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = githubendpoint.Endpoint
	}

	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = "https://api.github.com"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &githubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		apiBaseURL: apiBaseURL,
		httpClient: httpClient,
	}, nil
}

func (p *githubProvider) Name() string { return "github" }

func (p *githubProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *githubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return p.oauth.Exchange(ctx, code)
}

func (p *githubProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := p.getJSON(ctx, "/user", token, &user); err != nil {
		return nil, err
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	email := user.Email
	if email == "" {
		// The profile email is hidden for most accounts; the user:email
		// scope exposes it through a separate endpoint.
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := p.getJSON(ctx, "/user/emails", token, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary {
				email = e.Email
				break
			}
		}
		if email == "" && len(emails) > 0 {
			email = emails[0].Email
		}
	}

	return &Profile{
		ID:    strconv.FormatInt(user.ID, 10),
		Name:  name,
		Email: email,
	}, nil
}

func (p *githubProvider) getJSON(ctx context.Context, path string, token *oauth2.Token, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github %s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode github %s response: %w", path, err)
	}
	return nil
}
