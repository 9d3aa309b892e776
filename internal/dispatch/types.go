// Package dispatch delivers a response to an inbound event's originating
// channel: chunking long text, building a provider-specific request body,
// redacting secrets from whatever gets handed back to a caller, and
// persisting an audit trail to the channel store.
package dispatch

import "github.com/tauhq/tau/pkg/tau"

// Mode selects how Send actually delivers a chunk.
type Mode string

const (
	// ModeChannelStore only appends to the channel store; no network call.
	ModeChannelStore Mode = "channel_store"
	// ModeDryRun builds provider bodies but performs no I/O at all.
	ModeDryRun Mode = "dry_run"
	// ModeProvider performs the live provider call.
	ModeProvider Mode = "provider"
)

// Provider identifies which outbound transport a receipt/error concerns.
type Provider string

const (
	ProviderTelegram Provider = "telegram"
	ProviderDiscord  Provider = "discord"
	ProviderWhatsApp Provider = "whatsapp"
)

// Event is the minimal inbound-event context Send needs to address a reply.
type Event struct {
	Channel tau.ChannelRef
	// RecipientID is the Telegram chat id / WhatsApp phone / Discord
	// channel id the reply targets, which may differ from Channel.ChannelID.
	RecipientID string
	// EventKey correlates this dispatch back to the inbound event it is
	// replying to, for the channel store's log entry.
	EventKey string
}

// DeliveryReceipt records one successfully delivered chunk, mirroring the
// teacher's flattened delivery-result shape (one receipt per transport hop,
// rather than a generic envelope).
type DeliveryReceipt struct {
	ChunkIndex int      `json:"chunk_index"`
	ChunkCount int      `json:"chunk_count"`
	Provider   Provider `json:"provider"`
	Endpoint   string   `json:"endpoint"`
	MessageID  string   `json:"message_id,omitempty"`
}

// Error is the structured dispatch failure shape.
type Error struct {
	ReasonCode  string `json:"reason_code"`
	Retryable   bool   `json:"retryable"`
	ChunkIndex  int    `json:"chunk_index"`
	ChunkCount  int    `json:"chunk_count"`
	Endpoint    string `json:"endpoint"`
	HTTPStatus  int    `json:"http_status,omitempty"`
	RequestBody string `json:"request_body,omitempty"`
}

func (e *Error) Error() string {
	return e.ReasonCode + ": " + e.Endpoint
}

const telegramTokenRedacted = "<redacted>"

// Reason codes closed vocabulary for dispatch failures.
const (
	ReasonUnsupportedProvider = "dispatch_unsupported_provider"
	ReasonTransport           = "dispatch_transport_error"
	ReasonHTTPStatus          = "dispatch_http_status"
	ReasonEmptyResponse       = "dispatch_empty_response"
)
