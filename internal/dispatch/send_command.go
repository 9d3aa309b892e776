package dispatch

import (
	"context"
	"encoding/json"

	"github.com/tauhq/tau/pkg/tau"
)

// RunSend implements the "send" command: dispatch responseText to ev's
// channel via provider, then persist a JSON audit entry to the channel
// store log and a 30-day-TTL text artifact holding the delivered receipts
// (or the structured failure, when dispatch did not succeed).
func RunSend(ctx context.Context, d *Dispatcher, store AuditStore, runID string, ev Event, provider Provider, responseText string, nowUnixMs int64) (*SendResult, *Error) {
	receipts, derr := d.Send(ctx, ev, provider, responseText)

	payload := map[string]any{
		"provider":     provider,
		"event_key":    ev.EventKey,
		"recipient_id": ev.RecipientID,
	}
	artifactBody := responseText
	if derr != nil {
		payload["error"] = derr
		artifactBody = mustMarshal(derr)
	} else {
		payload["receipts"] = receipts
	}

	entry := tau.ChannelLogEntry{
		TimestampUnixMs: nowUnixMs,
		Direction:       tau.DirectionOutbound,
		EventKey:        ev.EventKey,
		Source:          string(provider),
		Payload:         payload,
	}
	if logErr := store.AppendLogEntry(entry); logErr != nil {
		if derr != nil {
			return nil, derr
		}
		return nil, &Error{ReasonCode: ReasonTransport, Endpoint: "channel_store_log"}
	}

	ttl := artifactTTLDays
	visibility := "internal"
	format := "txt"
	if derr != nil {
		format = "json"
		visibility = "error"
	}
	artifactPath, artErr := store.WriteTextArtifact(runID, "dispatch_response", visibility, &ttl, format, artifactBody)
	if artErr != nil {
		if derr != nil {
			return nil, derr
		}
		return nil, &Error{ReasonCode: ReasonTransport, Endpoint: "channel_store_artifact"}
	}

	if derr != nil {
		return nil, derr
	}
	return &SendResult{Receipts: receipts, ArtifactPath: artifactPath}, nil
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
