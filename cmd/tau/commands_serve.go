package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/tauhq/tau/internal/config"
	"github.com/tauhq/tau/internal/gatewaywire"
)

// buildServeCmd creates the "serve" command: it runs the gateway control
// plane's frame loop over stdin/stdout, validating each inbound line as a
// gatewaywire.Frame and emitting a heartbeat on the configured interval.
// The transport (a real WebSocket listener) is a connection-plumbing
// concern out of this core's scope; this command exercises the same
// frame-validation and response-shaping path a transport would call into.
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway control-plane frame loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return usageErrorf("serve: --config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return usageErrorf("serve: %w", err)
			}
			return runServe(cmd, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	in := bufio.NewScanner(cmd.InOrStdin())
	in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)

	interval := time.Duration(cfg.Gateway.HeartbeatIntervalMs) * time.Millisecond
	lastBeat := time.Now()

	for in.Scan() {
		line := in.Bytes()
		if len(line) == 0 {
			continue
		}
		frame, errPayload := gatewaywire.ValidateFrame(line)
		if errPayload != nil {
			if encErr := enc.Encode(gatewaywire.ErrorFrame(requestIDOf(frame), errPayload.Code, errPayload.Message)); encErr != nil {
				return fmt.Errorf("serve: write error frame: %w", encErr)
			}
			slog.Warn("rejected gateway frame", "code", errPayload.Code, "message", errPayload.Message)
		} else {
			resp, respErr := gatewaywire.ResponseFrame(frame.Kind, frame.RequestID, map[string]any{})
			if respErr != nil {
				return fmt.Errorf("serve: build response frame: %w", respErr)
			}
			if encErr := enc.Encode(resp); encErr != nil {
				return fmt.Errorf("serve: write response frame: %w", encErr)
			}
		}

		if time.Since(lastBeat) >= interval {
			hb, hbErr := gatewaywire.HeartbeatFrame(time.Now().UnixMilli())
			if hbErr != nil {
				return fmt.Errorf("serve: build heartbeat frame: %w", hbErr)
			}
			if encErr := enc.Encode(hb); encErr != nil {
				return fmt.Errorf("serve: write heartbeat frame: %w", encErr)
			}
			lastBeat = time.Now()
		}
	}
	if err := in.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("serve: read input: %w", err)
	}
	return nil
}

func requestIDOf(f *gatewaywire.Frame) string {
	if f == nil {
		return ""
	}
	return f.RequestID
}
