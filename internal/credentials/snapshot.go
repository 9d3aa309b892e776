package credentials

import "github.com/tauhq/tau/pkg/tau"

// Snapshot returns a provider's status without ever writing to the store.
func (s *Store) Snapshot(provider string, now int64) tau.CredentialStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.doc.Providers[provider]
	if !ok {
		return tau.StatusMissingCredential
	}
	if entry.Revoked {
		return tau.StatusRevoked
	}
	if entry.AccessToken == "" {
		if entry.RefreshToken != "" {
			return tau.StatusExpiredRefreshPending
		}
		return tau.StatusMissingAccessToken
	}
	if entry.ExpiresUnix != nil && *entry.ExpiresUnix <= now {
		if entry.RefreshToken != "" {
			return tau.StatusExpiredRefreshPending
		}
		return tau.StatusExpired
	}
	return tau.StatusReady
}

// SnapshotAll returns every provider's status, for rendering a status
// table. It never leaks secret values.
func (s *Store) SnapshotAll(now int64) map[string]tau.CredentialStatus {
	s.mu.RLock()
	providers := make([]string, 0, len(s.doc.Providers))
	for p := range s.doc.Providers {
		providers = append(providers, p)
	}
	s.mu.RUnlock()

	out := make(map[string]tau.CredentialStatus, len(providers))
	for _, p := range providers {
		out[p] = s.Snapshot(p, now)
	}
	return out
}
