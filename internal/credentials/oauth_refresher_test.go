package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOAuthRefresherReturnsNewAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    3600,
			"token_type":    "Bearer",
		})
	}))
	defer srv.Close()

	r := NewOAuthRefresher(map[string]ProviderEndpoint{
		"anthropic": {ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL},
	})

	access, refresh, expires, revoked, err := r.Refresh(context.Background(), "anthropic", "old-refresh")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if revoked {
		t.Fatal("Refresh() revoked = true, want false")
	}
	if access != "new-access" || refresh != "new-refresh" {
		t.Fatalf("Refresh() = (%q, %q), want (new-access, new-refresh)", access, refresh)
	}
	if expires <= 0 {
		t.Fatalf("expiresUnix = %d, want > 0", expires)
	}
}

func TestOAuthRefresherReportsRevokedOnInvalidGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "refresh token revoked",
		})
	}))
	defer srv.Close()

	r := NewOAuthRefresher(map[string]ProviderEndpoint{
		"anthropic": {ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL},
	})

	_, _, _, revoked, err := r.Refresh(context.Background(), "anthropic", "old-refresh")
	if err != nil {
		t.Fatalf("Refresh() error = %v, want nil (revoked signaled via return value)", err)
	}
	if !revoked {
		t.Fatal("Refresh() revoked = false, want true")
	}
}

func TestOAuthRefresherRejectsUnknownProvider(t *testing.T) {
	r := NewOAuthRefresher(map[string]ProviderEndpoint{})
	if _, _, _, _, err := r.Refresh(context.Background(), "unknown", "rt"); err == nil {
		t.Fatal("expected error for unconfigured provider")
	}
}
