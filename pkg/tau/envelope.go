package tau

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignedEnvelope authenticates an ingress event. See CanonicalBytes for the
// exact byte string that is Ed25519-signed.
type SignedEnvelope struct {
	SchemaVersion int    `json:"schema_version"`
	KeyID         string `json:"key_id"`
	Nonce         string `json:"nonce"`
	TimestampMs   int64  `json:"timestamp_ms"`
	Channel       string `json:"channel"`
	ActorID       string `json:"actor_id"`
	EventID       string `json:"event_id"`
	Signature     string `json:"signature"` // base64-standard
}

// CanonicalBytes returns the exact byte string that is signed:
//
//	v1\nchannel=<c>\nactor_id=<a>\nevent_id=<e>\ntimestamp_ms=<t>\nnonce=<n>\ntext_sha256=<hex(SHA-256(text))>
func CanonicalBytes(channel, actorID, eventID string, timestampMs int64, nonce, text string) []byte {
	sum := sha256.Sum256([]byte(text))
	s := fmt.Sprintf("v1\nchannel=%s\nactor_id=%s\nevent_id=%s\ntimestamp_ms=%d\nnonce=%s\ntext_sha256=%s",
		channel, actorID, eventID, timestampMs, nonce, hex.EncodeToString(sum[:]))
	return []byte(s)
}

// TrustedRoot is a public key trusted to sign envelopes.
type TrustedRoot struct {
	ID            string `json:"id"`
	PublicKeyB64  string `json:"public_key"`
	Revoked       bool   `json:"revoked"`
	ExpiresUnix   *int64 `json:"expires_unix,omitempty"`
	RotatedFrom   string `json:"rotated_from,omitempty"`
}

// Active reports whether the root is currently usable: not revoked, and
// either no expiry or an expiry strictly in the future.
func (r TrustedRoot) Active(nowSeconds int64) bool {
	if r.Revoked {
		return false
	}
	if r.ExpiresUnix == nil {
		return true
	}
	return *r.ExpiresUnix > nowSeconds
}
