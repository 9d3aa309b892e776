package credentials

import (
	"context"
	"errors"
	"os"

	"github.com/tauhq/tau/pkg/tau"
)

// ErrMissingAPIKey is returned by Resolve when an api_key method has no
// source to draw from.
var ErrMissingAPIKey = errors.New("missing_provider_api_key")

// ErrReauthRequired is returned by Resolve when a refresh indicates the
// grant has been revoked.
var ErrReauthRequired = errors.New("reauth_required")

// EnvLookup abstracts environment variable lookup so tests can supply a
// fake environment.
type EnvLookup func(key string) (string, bool)

// OSEnv reads from the real process environment.
func OSEnv(key string) (string, bool) { return os.LookupEnv(key) }

// Refresher performs a provider-specific OAuth refresh call.
type Refresher interface {
	Refresh(ctx context.Context, provider string, refreshToken string) (accessToken, newRefreshToken string, expiresUnix int64, revoked bool, err error)
}

// ProviderAuthConfig names the per-provider env vars and CLI flag value
// consulted by Resolve, in precedence order.
type ProviderAuthConfig struct {
	Provider       string
	Method         tau.AuthMethod
	CLIAPIKey      string // flag value, empty if unset
	DedicatedEnvVar string // e.g. "ANTHROPIC_API_KEY"
	GenericEnvVar   string // e.g. "TAU_API_KEY"
}

// Resolver resolves a ready-to-use credential for one provider+method.
type Resolver struct {
	Store     *Store
	Env       EnvLookup
	Refresher Refresher
	Now       func() int64 // unix seconds
}

// Resolve tries, in order: a CLI-provided API key, a dedicated provider env
// var, a generic fallback env var, then the credential store (refreshing an
// OAuth token if it is expired).
func (r *Resolver) Resolve(ctx context.Context, cfg ProviderAuthConfig) (string, error) {
	switch cfg.Method {
	case tau.AuthAPIKey:
		return r.resolveAPIKey(cfg)
	case tau.AuthOAuthToken, tau.AuthSessionToken:
		return r.resolveTokenBased(ctx, cfg)
	case tau.AuthADC:
		return "", nil // opaque; no secret resolved here
	default:
		return "", errors.New("credentials: unsupported auth method")
	}
}

func (r *Resolver) resolveAPIKey(cfg ProviderAuthConfig) (string, error) {
	if cfg.CLIAPIKey != "" {
		return cfg.CLIAPIKey, nil
	}
	if v, ok := r.Env(cfg.DedicatedEnvVar); ok && v != "" {
		return v, nil
	}
	if v, ok := r.Env(cfg.GenericEnvVar); ok && v != "" {
		return v, nil
	}
	return "", ErrMissingAPIKey
}

func (r *Resolver) resolveTokenBased(ctx context.Context, cfg ProviderAuthConfig) (string, error) {
	now := r.Now()
	entry, haveEntry := r.Store.Get(cfg.Provider)

	if !haveEntry {
		if v, ok := r.Env(cfg.DedicatedEnvVar); ok && v != "" {
			// Env access-token path requires an explicit expiry to trust;
			// callers supplying an env token without one are treated as
			// always-valid (the env is authoritative).
			return v, nil
		}
		return "", ErrMissingAPIKey
	}

	if entry.Ready(now) {
		return entry.AccessToken, nil
	}
	if entry.Revoked {
		return "", ErrReauthRequired
	}
	if entry.RefreshToken == "" {
		return "", ErrReauthRequired
	}

	access, newRefresh, expires, revoked, err := r.Refresher.Refresh(ctx, cfg.Provider, entry.RefreshToken)
	if err != nil {
		return "", err
	}
	if revoked {
		entry.Revoked = true
		_ = r.Store.Put(cfg.Provider, entry)
		return "", ErrReauthRequired
	}
	entry.AccessToken = access
	entry.RefreshToken = newRefresh
	exp := expires
	entry.ExpiresUnix = &exp
	if err := r.Store.Put(cfg.Provider, entry); err != nil {
		return "", err
	}
	return access, nil
}
