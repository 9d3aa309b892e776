package credentials

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// ProviderEndpoint is one provider's OAuth token endpoint and client
// credentials, used only to build a refresh request; issuing the initial
// grant is out of scope here.
type ProviderEndpoint struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// OAuthRefresher implements Refresher against real provider token
// endpoints via golang.org/x/oauth2's token-refresh flow.
type OAuthRefresher struct {
	Endpoints map[string]ProviderEndpoint
}

// NewOAuthRefresher builds a refresher over a fixed provider->endpoint map.
func NewOAuthRefresher(endpoints map[string]ProviderEndpoint) *OAuthRefresher {
	return &OAuthRefresher{Endpoints: endpoints}
}

// Refresh exchanges refreshToken for a new access token at provider's
// configured endpoint. A token-endpoint error whose body or status
// indicates the grant was revoked is reported as revoked=true rather than
// as an error, so the caller can surface a re-auth prompt instead of a raw
// transport error.
func (r *OAuthRefresher) Refresh(ctx context.Context, provider string, refreshToken string) (accessToken, newRefreshToken string, expiresUnix int64, revoked bool, err error) {
	endpoint, ok := r.Endpoints[provider]
	if !ok {
		return "", "", 0, false, fmt.Errorf("credentials: no oauth endpoint configured for provider %q", provider)
	}

	cfg := oauth2.Config{
		ClientID:     endpoint.ClientID,
		ClientSecret: endpoint.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: endpoint.TokenURL},
	}
	source := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, tokErr := source.Token()
	if tokErr != nil {
		if isRevokedGrantError(tokErr) {
			return "", "", 0, true, nil
		}
		return "", "", 0, false, fmt.Errorf("credentials: oauth refresh for %q: %w", provider, tokErr)
	}

	newRefresh := token.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	return token.AccessToken, newRefresh, token.Expiry.Unix(), false, nil
}

// isRevokedGrantError reports whether the token endpoint's error indicates
// the refresh token itself was revoked, as opposed to a transient
// transport failure. oauth2.RetrieveError surfaces the endpoint's
// error/error_description body; providers use invalid_grant for a revoked
// or expired refresh token.
func isRevokedGrantError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if e, ok := err.(*oauth2.RetrieveError); ok {
		retrieveErr = e
	}
	if retrieveErr == nil {
		return false
	}
	return strings.Contains(strings.ToLower(retrieveErr.ErrorCode), "invalid_grant")
}
