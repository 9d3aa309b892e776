package tau

import "strings"

// ChannelRef identifies a (transport, channel_id) pair. Both fields are
// non-empty after trimming.
type ChannelRef struct {
	Transport string
	ChannelID string
}

// sanitizeSegment maps any character outside [A-Za-z0-9_.-] to '_', trims
// surrounding '_', and substitutes the literal "channel" for an empty
// result.
func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "channel"
	}
	return out
}

// Dir returns the sanitized directory path segments for this channel ref,
// relative to a channel-store base directory: channels/<transport>/<channel_id>.
func (c ChannelRef) Dir() []string {
	return []string{"channels", sanitizeSegment(c.Transport), sanitizeSegment(c.ChannelID)}
}

// Direction of a ChannelLogEntry.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ChannelLogEntry is one append-only record in a channel's log.jsonl.
type ChannelLogEntry struct {
	TimestampUnixMs int64           `json:"timestamp_unix_ms"`
	Direction       Direction       `json:"direction"`
	EventKey        string          `json:"event_key,omitempty"`
	Source          string          `json:"source"`
	Payload         map[string]any  `json:"payload"`
}
