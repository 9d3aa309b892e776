package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// discordSender is the narrow slice of the Discord session the dispatcher
// needs, so tests can inject a fake rather than a live *discordgo.Session.
type discordSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type telegramSendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

func telegramEndpoint(botToken string) string {
	return fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken)
}

// redactTelegramEndpoint replaces the bot token path segment with a fixed
// redaction marker so logs and audit records never carry a live token.
func redactTelegramEndpoint(endpoint, botToken string) string {
	if botToken == "" {
		return endpoint
	}
	return strings.Replace(endpoint, botToken, telegramTokenRedacted, 1)
}

func (d *Dispatcher) sendTelegram(ctx context.Context, chatID, text string) (messageID, endpoint string, derr *Error) {
	endpoint = telegramEndpoint(d.cfg.TelegramBotToken)
	redacted := redactTelegramEndpoint(endpoint, d.cfg.TelegramBotToken)

	body, err := json.Marshal(telegramSendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return "", redacted, &Error{ReasonCode: ReasonTransport, Endpoint: redacted}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", redacted, &Error{ReasonCode: ReasonTransport, Endpoint: redacted}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return "", redacted, &Error{ReasonCode: ReasonTransport, Retryable: true, Endpoint: redacted, RequestBody: string(body)}
	}
	defer resp.Body.Close()

	var parsed telegramResponse
	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	if resp.StatusCode != http.StatusOK || !parsed.OK {
		return "", redacted, &Error{
			ReasonCode:  ReasonHTTPStatus,
			Retryable:   resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Endpoint:    redacted,
			HTTPStatus:  resp.StatusCode,
			RequestBody: string(body),
		}
	}
	return fmt.Sprintf("%d", parsed.Result.MessageID), redacted, nil
}

func (d *Dispatcher) sendDiscord(channelID, text string) (messageID, endpoint string, derr *Error) {
	endpoint = fmt.Sprintf("discord:channel/%s", channelID)
	if d.cfg.DiscordSession == nil {
		return "", endpoint, &Error{ReasonCode: ReasonTransport, Endpoint: endpoint}
	}
	msg, err := d.cfg.DiscordSession.ChannelMessageSend(channelID, text)
	if err != nil {
		return "", endpoint, &Error{ReasonCode: ReasonTransport, Retryable: true, Endpoint: endpoint, RequestBody: text}
	}
	return msg.ID, endpoint, nil
}

type whatsAppSendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type whatsAppResponse struct {
	MessageID string `json:"message_id"`
}

func (d *Dispatcher) sendWhatsApp(ctx context.Context, recipient, text string) (messageID, endpoint string, derr *Error) {
	endpoint = d.cfg.WhatsAppBaseURL + "/messages"

	body, err := json.Marshal(whatsAppSendRequest{To: recipient, Body: text})
	if err != nil {
		return "", endpoint, &Error{ReasonCode: ReasonTransport, Endpoint: endpoint}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", endpoint, &Error{ReasonCode: ReasonTransport, Endpoint: endpoint}
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.WhatsAppToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.WhatsAppToken)
	}

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return "", endpoint, &Error{ReasonCode: ReasonTransport, Retryable: true, Endpoint: endpoint, RequestBody: string(body)}
	}
	defer resp.Body.Close()

	var parsed whatsAppResponse
	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	if resp.StatusCode != http.StatusOK {
		return "", endpoint, &Error{
			ReasonCode:  ReasonHTTPStatus,
			Retryable:   resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Endpoint:    endpoint,
			HTTPStatus:  resp.StatusCode,
			RequestBody: string(body),
		}
	}
	return parsed.MessageID, endpoint, nil
}
