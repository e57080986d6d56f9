package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"yt_multi_account/internal/domain"
	httpclient "yt_multi_account/internal/infrastructure/http"
)

// ErrOAuthNotConfigured is returned when no client secrets were loaded
var ErrOAuthNotConfigured = errors.New("oauth client not configured")

// LoadOAuthConfig reads a Google client secrets file (installed or web app).
func LoadOAuthConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, youtube.YoutubeForceSslScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	return cfg, nil
}

// Authorizer runs the consent-code flow for new accounts
type Authorizer struct {
	config *oauth2.Config
	client *httpclient.HTTPClient
}

// NewAuthorizer creates an Authorizer. A nil config yields ErrOAuthNotConfigured
// from every method.
func NewAuthorizer(cfg *oauth2.Config, client *httpclient.HTTPClient) *Authorizer {
	return &Authorizer{config: cfg, client: client}
}

// AuthURL returns the consent page URL. Offline access with a forced consent
// prompt makes Google return a refresh token every time.
func (a *Authorizer) AuthURL(state string) (string, error) {
	if a.config == nil || a.config.ClientID == "" {
		return "", ErrOAuthNotConfigured
	}
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for a credential record.
func (a *Authorizer) Exchange(ctx context.Context, code string) (domain.CredentialRecord, error) {
	if a.config == nil || a.config.ClientID == "" {
		return domain.CredentialRecord{}, ErrOAuthNotConfigured
	}
	if a.client != nil {
		ctx = a.client.Context(ctx)
	}
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return domain.CredentialRecord{}, toAPIError(err)
	}
	return domain.CredentialFromToken(tok), nil
}
