package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tauhq/tau/internal/envelope"
	"github.com/tauhq/tau/pkg/tau"
)

// envelopeVerifyInput is the on-disk shape "tau envelope verify" reads: a
// signed envelope alongside the event context it is checked against.
type envelopeVerifyInput struct {
	Envelope *tau.SignedEnvelope `json:"envelope"`
	Event    envelope.EventContext `json:"event"`
}

func buildEnvelopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "envelope",
		Short: "Signed-envelope access gate operations",
	}
	cmd.AddCommand(buildEnvelopeVerifyCmd())
	return cmd
}

func buildEnvelopeVerifyCmd() *cobra.Command {
	var (
		inputPath      string
		trustRootPath  string
		replayGuardPath string
		skewSeconds    int64
		replayWindowMs int64
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Evaluate a signed envelope against the deny/allow pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" || trustRootPath == "" || replayGuardPath == "" {
				return usageErrorf("envelope verify: --input, --trust-roots, and --replay-guard are all required")
			}

			data, err := os.ReadFile(inputPath)
			if err != nil {
				return usageErrorf("envelope verify: %w", err)
			}
			var in envelopeVerifyInput
			if err := json.Unmarshal(data, &in); err != nil {
				return usageErrorf("envelope verify: %w", err)
			}

			trust, err := envelope.NewFileTrustStore(trustRootPath)
			if err != nil {
				return fmt.Errorf("envelope verify: opening trust roots: %w", err)
			}
			replay, err := envelope.NewFileReplayGuard(replayGuardPath, replayWindowMs)
			if err != nil {
				return fmt.Errorf("envelope verify: opening replay guard: %w", err)
			}

			cfg := envelope.Config{SkewSeconds: skewSeconds, ReplayWindowMs: replayWindowMs}
			result := envelope.Evaluate(cfg, in.Envelope, in.Event, time.Now().UnixMilli(), trust, replay)
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if !result.Allowed() && result.Reason != envelope.Missing {
				return fmt.Errorf("envelope verify: denied: %s", result.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "Path to JSON {envelope, event} file")
	cmd.Flags().StringVar(&trustRootPath, "trust-roots", "", "Path to the trust roots JSON file")
	cmd.Flags().StringVar(&replayGuardPath, "replay-guard", "", "Path to the replay guard JSON file")
	cmd.Flags().Int64Var(&skewSeconds, "skew-seconds", 300, "Allowed clock skew in seconds")
	cmd.Flags().Int64Var(&replayWindowMs, "replay-window-ms", 300000, "Replay nonce window in milliseconds")
	return cmd
}
