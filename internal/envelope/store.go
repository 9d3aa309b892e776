package envelope

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/tauhq/tau/internal/atomicfile"
	"github.com/tauhq/tau/pkg/tau"
)

// FileTrustStore loads trust roots from a JSON array file:
// [{id, public_key, revoked, expires_unix?, rotated_from?}, ...].
type FileTrustStore struct {
	path string

	mu    sync.RWMutex
	roots []tau.TrustedRoot
}

// NewFileTrustStore loads path if it exists, or starts empty.
func NewFileTrustStore(path string) (*FileTrustStore, error) {
	s := &FileTrustStore{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	var roots []tau.TrustedRoot
	if err := json.Unmarshal(data, &roots); err != nil {
		return nil, err
	}
	s.roots = roots
	return s, nil
}

// Find implements TrustStore.
func (s *FileTrustStore) Find(keyID string) (tau.TrustedRoot, bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roots {
		if strings.EqualFold(r.ID, keyID) {
			return r, true, true
		}
	}
	return tau.TrustedRoot{}, false, true
}

// Put inserts or replaces a root and persists the store.
func (s *FileTrustStore) Put(root tau.TrustedRoot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i, r := range s.roots {
		if strings.EqualFold(r.ID, root.ID) {
			s.roots[i] = root
			replaced = true
			break
		}
	}
	if !replaced {
		s.roots = append(s.roots, root)
	}
	return s.persistLocked()
}

func (s *FileTrustStore) persistLocked() error {
	data, err := json.MarshalIndent(s.roots, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFileAtomic(s.path, data, 0o600)
}

// fileReplayGuard persists {schema_version, nonce_last_seen_unix_ms} to a
// single JSON file, pruned to 3x the replay window on each successful
// Record call.
type fileReplayGuardDoc struct {
	SchemaVersion        int              `json:"schema_version"`
	NonceLastSeenUnixMs map[string]int64 `json:"nonce_last_seen_unix_ms"`
}

// FileReplayGuard implements ReplayGuard against a JSON sidecar file.
type FileReplayGuard struct {
	path      string
	windowMs  int64

	mu  sync.Mutex
	doc fileReplayGuardDoc
}

// NewFileReplayGuard loads path if present, or starts empty.
func NewFileReplayGuard(path string, windowMs int64) (*FileReplayGuard, error) {
	g := &FileReplayGuard{path: path, windowMs: windowMs, doc: fileReplayGuardDoc{SchemaVersion: 1, NonceLastSeenUnixMs: map[string]int64{}}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return g, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &g.doc); err != nil {
		return nil, err
	}
	if g.doc.NonceLastSeenUnixMs == nil {
		g.doc.NonceLastSeenUnixMs = map[string]int64{}
	}
	return g, nil
}

func replayKey(keyID, nonce string) string {
	return strings.ToLower(keyID) + ":" + strings.ToLower(nonce)
}

// Check implements ReplayGuard.
func (g *FileReplayGuard) Check(keyID, nonce string) (int64, bool, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts, ok := g.doc.NonceLastSeenUnixMs[replayKey(keyID, nonce)]
	return ts, ok, true
}

// Record implements ReplayGuard: stores the pair, prunes entries older
// than 3x the replay window, and persists.
func (g *FileReplayGuard) Record(keyID, nonce string, nowMs int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.doc.NonceLastSeenUnixMs[replayKey(keyID, nonce)] = nowMs

	pruneBefore := nowMs - 3*g.windowMs
	for k, ts := range g.doc.NonceLastSeenUnixMs {
		if ts < pruneBefore {
			delete(g.doc.NonceLastSeenUnixMs, k)
		}
	}

	data, err := json.MarshalIndent(g.doc, "", "  ")
	if err != nil {
		return false
	}
	return atomicfile.WriteFileAtomic(g.path, data, 0o600) == nil
}
