// Package credentials implements the encrypted-or-plaintext credential
// store and the provider credential resolver.
package credentials

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/tauhq/tau/internal/atomicfile"
	"github.com/tauhq/tau/pkg/tau"
)

// EncryptionMode selects how the store's JSON blob is protected at rest.
type EncryptionMode string

const (
	EncryptionNone      EncryptionMode = "none"
	EncryptionSecretbox EncryptionMode = "secretbox"
)

type encryptionConfig struct {
	Mode EncryptionMode `json:"mode"`
}

type document struct {
	SchemaVersion int                               `json:"schema_version"`
	Encryption    encryptionConfig                  `json:"encryption"`
	Providers     map[string]tau.CredentialEntry     `json:"providers"`
	Integrations  map[string]tau.IntegrationEntry    `json:"integrations"`
}

// Store is the single encrypted-or-plaintext JSON blob of provider and
// integration credentials.
type Store struct {
	path string
	mode EncryptionMode
	key  *[32]byte

	mu  sync.RWMutex
	doc document
}

// Open loads path if it exists (decrypting with key if mode requires it),
// or starts an empty store. key is required and ignored when mode is
// EncryptionNone.
func Open(path string, mode EncryptionMode, key *[32]byte) (*Store, error) {
	if mode == EncryptionSecretbox && key == nil {
		return nil, fmt.Errorf("credentials: secretbox mode requires a key")
	}
	s := &Store{path: path, mode: mode, key: key, doc: document{
		SchemaVersion: 1,
		Encryption:    encryptionConfig{Mode: mode},
		Providers:     map[string]tau.CredentialEntry{},
		Integrations:  map[string]tau.IntegrationEntry{},
	}}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	plain := raw
	if mode == EncryptionSecretbox {
		plain, err = decrypt(raw, key)
		if err != nil {
			return nil, fmt.Errorf("credentials: decrypt: %w", err)
		}
	}
	if err := json.Unmarshal(plain, &s.doc); err != nil {
		return nil, fmt.Errorf("credentials: parse: %w", err)
	}
	if s.doc.Providers == nil {
		s.doc.Providers = map[string]tau.CredentialEntry{}
	}
	if s.doc.Integrations == nil {
		s.doc.Integrations = map[string]tau.IntegrationEntry{}
	}
	return s, nil
}

// Get returns the stored entry for a provider, if any.
func (s *Store) Get(provider string) (tau.CredentialEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.doc.Providers[provider]
	return e, ok
}

// Put stores (or replaces) a provider's credential entry and persists.
func (s *Store) Put(provider string, entry tau.CredentialEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Providers[provider] = entry
	return s.persistLocked()
}

// Revoke marks a provider's entry revoked and persists.
func (s *Store) Revoke(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.doc.Providers[provider]
	if !ok {
		return fmt.Errorf("credentials: no entry for provider %q", provider)
	}
	e.Revoked = true
	s.doc.Providers[provider] = e
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	plain, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	out := plain
	if s.mode == EncryptionSecretbox {
		out, err = encrypt(plain, s.key)
		if err != nil {
			return err
		}
	}
	// owner-readable only
	return atomicfile.WriteFileAtomic(s.path, out, 0o600)
}

func encrypt(plain []byte, key *[32]byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plain, &nonce, key), nil
}

func decrypt(sealed []byte, key *[32]byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, fmt.Errorf("sealed payload too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	out, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("secretbox: authentication failed")
	}
	return out, nil
}
