package dispatch

import (
	"context"
	"net/http"

	"github.com/tauhq/tau/internal/chunk"
	"github.com/tauhq/tau/pkg/tau"
)

const (
	telegramMaxChars = 4096
	discordMaxChars  = 2000
	whatsAppMaxChars = 4096
)

// Config wires a Dispatcher to its outbound transports. Zero-value fields
// are fine in ModeDryRun, which never touches them.
type Config struct {
	Mode Mode

	TelegramBotToken string

	DiscordSession discordSender

	WhatsAppBaseURL string
	WhatsAppToken   string

	HTTPClient *http.Client
}

// Dispatcher chunks a response, builds a provider body per chunk, delivers
// it (or simulates delivery in dry-run/channel-store modes), and reports
// receipts or a structured failure.
type Dispatcher struct {
	cfg Config
}

// New constructs a Dispatcher from cfg.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

func (d *Dispatcher) httpClient() *http.Client {
	if d.cfg.HTTPClient != nil {
		return d.cfg.HTTPClient
	}
	return http.DefaultClient
}

func maxCharsFor(provider Provider) int {
	switch provider {
	case ProviderTelegram:
		return telegramMaxChars
	case ProviderDiscord:
		return discordMaxChars
	case ProviderWhatsApp:
		return whatsAppMaxChars
	default:
		return telegramMaxChars
	}
}

// Send chunks responseText to the provider's transport limit and delivers
// each chunk in order, stopping at the first failure. It returns either a
// receipt per delivered chunk or the structured error describing where
// delivery stopped.
func (d *Dispatcher) Send(ctx context.Context, ev Event, provider Provider, responseText string) ([]DeliveryReceipt, *Error) {
	switch provider {
	case ProviderTelegram, ProviderDiscord, ProviderWhatsApp:
	default:
		return nil, &Error{ReasonCode: ReasonUnsupportedProvider, Endpoint: string(provider)}
	}

	chunks := chunk.Split(responseText, maxCharsFor(provider))
	if len(chunks) == 0 {
		return nil, &Error{ReasonCode: ReasonEmptyResponse, ChunkCount: 0}
	}

	receipts := make([]DeliveryReceipt, 0, len(chunks))
	for i, c := range chunks {
		messageID, endpoint, derr := d.sendChunk(ctx, ev, provider, c)
		if derr != nil {
			derr.ChunkIndex = i
			derr.ChunkCount = len(chunks)
			return nil, derr
		}
		receipts = append(receipts, DeliveryReceipt{
			ChunkIndex: i,
			ChunkCount: len(chunks),
			Provider:   provider,
			Endpoint:   endpoint,
			MessageID:  messageID,
		})
	}
	return receipts, nil
}

func (d *Dispatcher) sendChunk(ctx context.Context, ev Event, provider Provider, text string) (messageID, endpoint string, derr *Error) {
	recipient := ev.RecipientID
	if recipient == "" {
		recipient = ev.Channel.ChannelID
	}

	if d.cfg.Mode == ModeDryRun {
		return "", d.simulatedEndpoint(provider, recipient), nil
	}

	switch provider {
	case ProviderTelegram:
		return d.sendTelegram(ctx, recipient, text)
	case ProviderDiscord:
		return d.sendDiscord(recipient, text)
	case ProviderWhatsApp:
		return d.sendWhatsApp(ctx, recipient, text)
	default:
		return "", "", &Error{ReasonCode: ReasonUnsupportedProvider, Endpoint: string(provider)}
	}
}

func (d *Dispatcher) simulatedEndpoint(provider Provider, recipient string) string {
	switch provider {
	case ProviderTelegram:
		return redactTelegramEndpoint(telegramEndpoint(d.cfg.TelegramBotToken), d.cfg.TelegramBotToken)
	case ProviderDiscord:
		return "discord:channel/" + recipient
	case ProviderWhatsApp:
		return d.cfg.WhatsAppBaseURL + "/messages"
	default:
		return string(provider)
	}
}

// artifactTTLDays is the retention window for the "send" command's
// persisted response artifact.
const artifactTTLDays = 30

// AuditStore is the subset of channelstore.Store the send command needs,
// kept narrow so it can be faked in tests without an on-disk store.
type AuditStore interface {
	AppendLogEntry(entry tau.ChannelLogEntry) error
	WriteTextArtifact(runID, kind, visibility string, ttlDays *int, format, body string) (string, error)
}

// SendResult is what RunSend returns to its caller (a CLI command or an
// agent-loop turn) after a successful dispatch-and-audit round trip.
type SendResult struct {
	Receipts     []DeliveryReceipt
	ArtifactPath string
}
