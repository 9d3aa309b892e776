package envelope

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/tauhq/tau/pkg/tau"
)

// EventContext is the inbound event an envelope (if present) is checked
// against.
type EventContext struct {
	Channel     string
	ActorID     string
	EventID     string
	TimestampMs int64
	Text        string
}

// Config bounds envelope evaluation.
type Config struct {
	SkewSeconds    int64
	ReplayWindowMs int64
}

// Result is the outcome of Evaluate.
type Result struct {
	Reason ReasonCode
	KeyID  string
	Nonce  string
}

// Allowed reports whether the result grants access.
func (r Result) Allowed() bool {
	return r.Reason == AllowVerified
}

// TrustStore resolves trust roots by key id.
type TrustStore interface {
	// Find returns the root matching key_id, case-insensitively, and
	// whether the lookup itself succeeded (false only on I/O failure).
	Find(keyID string) (root tau.TrustedRoot, found bool, ok bool)
}

// ReplayGuard tracks (key_id, nonce) pairs seen within the replay window.
type ReplayGuard interface {
	// Check returns the unix-ms timestamp the pair was last seen, if any,
	// and whether the lookup itself succeeded.
	Check(keyID, nonce string) (lastSeenMs int64, seen bool, ok bool)
	// Record persists that the pair was seen at nowMs. Returns false only
	// on I/O failure.
	Record(keyID, nonce string, nowMs int64) bool
}

// Evaluate runs the deny/allow pipeline for one envelope against one event,
// at the given wall-clock time.
func Evaluate(cfg Config, env *tau.SignedEnvelope, ev EventContext, nowMs int64, trust TrustStore, replay ReplayGuard) Result {
	if env == nil {
		return Result{Reason: Missing}
	}
	if env.SchemaVersion != 1 {
		return Result{Reason: DenyUnsupportedSchema}
	}
	if !validMetadata(env) {
		return Result{Reason: DenyInvalidMetadata}
	}

	if env.Channel != ev.Channel {
		return Result{Reason: DenyChannelMismatch}
	}
	if !strings.EqualFold(env.ActorID, ev.ActorID) {
		return Result{Reason: DenyActorMismatch}
	}
	if env.EventID != ev.EventID {
		return Result{Reason: DenyEventMismatch}
	}
	if env.TimestampMs != ev.TimestampMs {
		return Result{Reason: DenyTimestampMismatch}
	}

	skewMs := cfg.SkewSeconds * 1000
	diff := env.TimestampMs - nowMs
	if diff < 0 {
		diff = -diff
	}
	if diff > skewMs {
		return Result{Reason: DenyTimestampOutOfWindow}
	}

	root, found, ok := trust.Find(env.KeyID)
	if !ok {
		return Result{Reason: DenyTrustStoreError}
	}
	if !found {
		return Result{Reason: DenyUntrustedKey}
	}
	if root.Revoked {
		return Result{Reason: DenyRevokedKey}
	}
	if root.ExpiresUnix != nil && *root.ExpiresUnix <= nowMs/1000 {
		return Result{Reason: DenyExpiredKey}
	}

	if !verifySignature(root.PublicKeyB64, env, ev) {
		return Result{Reason: DenyInvalidSignature}
	}

	lastSeen, seen, replayOK := replay.Check(env.KeyID, env.Nonce)
	if !replayOK {
		return Result{Reason: DenyReplayGuardError}
	}
	if seen && (nowMs-lastSeen) <= cfg.ReplayWindowMs {
		return Result{Reason: DenyReplay}
	}
	if !replay.Record(env.KeyID, env.Nonce, nowMs) {
		return Result{Reason: DenyReplayGuardError}
	}

	return Result{Reason: AllowVerified, KeyID: env.KeyID, Nonce: env.Nonce}
}

func validMetadata(env *tau.SignedEnvelope) bool {
	fields := []string{env.KeyID, env.Nonce, env.Channel, env.ActorID, env.EventID, env.Signature}
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return env.TimestampMs != 0
}

func verifySignature(publicKeyB64 string, env *tau.SignedEnvelope, ev EventContext) bool {
	pubBytes, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil || len(pubBytes) != ed25519.PublicKeySize {
		return false
	}
	sigBytes, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return false
	}
	msg := tau.CanonicalBytes(env.Channel, env.ActorID, env.EventID, env.TimestampMs, env.Nonce, ev.Text)
	return ed25519.Verify(ed25519.PublicKey(pubBytes), msg, sigBytes)
}

// Sign produces a base64-standard Ed25519 signature over the canonical
// bytes for the given fields, using priv. It is a test/tooling helper, not
// part of the verification path.
func Sign(priv ed25519.PrivateKey, channel, actorID, eventID string, timestampMs int64, nonce, text string) string {
	msg := tau.CanonicalBytes(channel, actorID, eventID, timestampMs, nonce, text)
	sig := ed25519.Sign(priv, msg)
	return base64.StdEncoding.EncodeToString(sig)
}
