package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"avito-assist/internal/core/domain"
)

// ErrOAuthNotConfigured is returned when client credentials are missing
var ErrOAuthNotConfigured = errors.New("avito oauth client is not configured")

// defaultTokenLifetime applies when the token response omits expires_in
const defaultTokenLifetime = time.Hour

// AvitoAuthClient runs the authorization code flow against Avito OAuth
type AvitoAuthClient struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewAvitoAuthClient creates a new OAuth client. authBaseURL hosts both the
// authorize and token endpoints.
func NewAvitoAuthClient(authBaseURL, clientID, clientSecret, redirectURI string) *AvitoAuthClient {
	if authBaseURL == "" {
		authBaseURL = DefaultAvitoBaseURL
	}
	base := strings.TrimRight(authBaseURL, "/")

	return &AvitoAuthClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth/authorize",
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether client credentials are present
func (c *AvitoAuthClient) Configured() bool {
	return c.config.ClientID != "" && c.config.ClientSecret != ""
}

// AuthCodeURL returns the page the operator is redirected to
func (c *AvitoAuthClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for access and refresh tokens
func (c *AvitoAuthClient) Exchange(ctx context.Context, code string) (*domain.Tokens, error) {
	if !c.Configured() {
		return nil, ErrOAuthNotConfigured
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		slog.Error("Avito OAuth token exchange failed", "error", err)

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, fmt.Errorf("Avito OAuth token endpoint returned status %d", retrieveErr.Response.StatusCode)
		}
		return nil, errors.New("Failed to call Avito OAuth token endpoint")
	}

	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return nil, errors.New("Avito OAuth response missing tokens")
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}

	return &domain.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt.UTC(),
	}, nil
}
