// Package envelope verifies signed ingress envelopes: Ed25519 signature
// checking over a canonical byte string, trust-root lookup, and a
// replay-nonce window, all reported through a closed set of stable reason
// codes.
package envelope

// ReasonCode is a stable, testable outcome string for envelope evaluation.
type ReasonCode string

const (
	AllowVerified ReasonCode = "allow_signed_envelope_verified"
	Missing       ReasonCode = "signed_envelope_missing"

	DenyInvalidMetadata    ReasonCode = "deny_signed_envelope_invalid_metadata"
	DenyUnsupportedSchema  ReasonCode = "deny_signed_envelope_unsupported_schema"
	DenyChannelMismatch    ReasonCode = "deny_signed_envelope_channel_mismatch"
	DenyActorMismatch      ReasonCode = "deny_signed_envelope_actor_mismatch"
	DenyEventMismatch      ReasonCode = "deny_signed_envelope_event_mismatch"
	DenyTimestampMismatch  ReasonCode = "deny_signed_envelope_timestamp_mismatch"
	DenyTimestampOutOfWindow ReasonCode = "deny_signed_envelope_timestamp_out_of_window"
	DenyUntrustedKey       ReasonCode = "deny_signed_envelope_untrusted_key"
	DenyRevokedKey         ReasonCode = "deny_signed_envelope_revoked_key"
	DenyExpiredKey         ReasonCode = "deny_signed_envelope_expired_key"
	DenyInvalidSignature   ReasonCode = "deny_signed_envelope_invalid_signature"
	DenyReplay             ReasonCode = "deny_signed_envelope_replay"
	DenyReplayGuardError   ReasonCode = "deny_signed_envelope_replay_guard_error"
	DenyTrustStoreError    ReasonCode = "deny_signed_envelope_trust_store_error"
)
