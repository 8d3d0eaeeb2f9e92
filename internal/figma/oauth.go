package figma

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL  = "https://www.figma.com/oauth"
	DefaultTokenURL = "https://api.figma.com/v1/oauth/token"

	oauthScopeFileRead = "file_read"
)

var ErrOAuthNotConfigured = errors.New("figma_oauth_not_configured")

// OAuthConfig describes the Figma OAuth application.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	HTTPClient   *http.Client
}

// OAuth runs the Figma authorization-code flow.
type OAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuth validates the application credentials and builds the flow.
func NewOAuth(config OAuthConfig) (*OAuth, error) {
	clientID := strings.TrimSpace(config.ClientID)
	clientSecret := strings.TrimSpace(config.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, ErrOAuthNotConfigured
	}
	authURL := strings.TrimSpace(config.AuthURL)
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := strings.TrimSpace(config.TokenURL)
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  strings.TrimSpace(config.RedirectURL),
			Scopes:       []string{oauthScopeFileRead},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: config.HTTPClient,
	}, nil
}

// AuthorizeURL returns the consent page url carrying the state nonce.
func (flow *OAuth) AuthorizeURL(state string) string {
	return flow.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token.
func (flow *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return flow.config.Exchange(flow.clientContext(ctx), strings.TrimSpace(code))
}

// Credential wraps a stored token in a refreshing credential.
func (flow *OAuth) Credential(ctx context.Context, token *oauth2.Token) Credential {
	return TokenSourceCredential{Source: flow.config.TokenSource(flow.clientContext(ctx), token)}
}

func (flow *OAuth) clientContext(ctx context.Context) context.Context {
	if flow.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, flow.httpClient)
}
