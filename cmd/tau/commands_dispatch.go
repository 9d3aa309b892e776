package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tauhq/tau/internal/channelstore"
	"github.com/tauhq/tau/internal/dispatch"
	"github.com/tauhq/tau/pkg/tau"
)

// buildDispatchCmd groups outbound-delivery operations.
func buildDispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Outbound channel dispatch operations",
	}
	cmd.AddCommand(buildDispatchSendCmd())
	return cmd
}

func buildDispatchSendCmd() *cobra.Command {
	var (
		channelStoreRoot string
		transport        string
		channelID        string
		recipientID      string
		eventKey         string
		provider         string
		mode             string
		telegramBotToken string
		responseText     string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Deliver a response to an inbound event's originating channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if channelStoreRoot == "" || transport == "" || channelID == "" {
				return usageErrorf("dispatch send: --channel-store-root, --transport, and --channel-id are all required")
			}
			ref := tau.ChannelRef{Transport: transport, ChannelID: channelID}
			store, err := channelstore.Open(channelStoreRoot, ref)
			if err != nil {
				return fmt.Errorf("dispatch send: opening channel store: %w", err)
			}

			d := dispatch.New(dispatch.Config{
				Mode:             dispatch.Mode(mode),
				TelegramBotToken: telegramBotToken,
			})

			ev := dispatch.Event{Channel: ref, RecipientID: recipientID, EventKey: eventKey}
			runID := uuid.NewString()
			result, derr := dispatch.RunSend(context.Background(), d, store, runID, ev, dispatch.Provider(provider), responseText, time.Now().UnixMilli())
			if derr != nil {
				return fmt.Errorf("dispatch send: %s", derr.Error())
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&channelStoreRoot, "channel-store-root", "", "Channel store base directory")
	cmd.Flags().StringVar(&transport, "transport", "", "Transport name, e.g. telegram")
	cmd.Flags().StringVar(&channelID, "channel-id", "", "Channel ID within the transport")
	cmd.Flags().StringVar(&recipientID, "recipient-id", "", "Recipient ID for the reply (may differ from channel-id)")
	cmd.Flags().StringVar(&eventKey, "event-key", "", "Inbound event key this reply correlates to")
	cmd.Flags().StringVar(&provider, "provider", "", "Outbound provider: telegram, discord, or whatsapp")
	cmd.Flags().StringVar(&mode, "mode", string(dispatch.ModeDryRun), "Dispatch mode: channel_store, dry_run, or provider")
	cmd.Flags().StringVar(&telegramBotToken, "telegram-bot-token", "", "Telegram bot token (provider mode only)")
	cmd.Flags().StringVar(&responseText, "text", "", "Response text to deliver")
	return cmd
}
