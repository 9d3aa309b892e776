// Package main is the CLI entry point for tau, the core agent-loop
// runtime: an LLM client layer with cross-provider fallback, a
// signed-envelope access gate, a WASM-sandboxed generated-tool builder,
// a multi-agent router, and a channel-store-backed outbound dispatcher.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError marks a failure that should exit 2 (flag/validation problems)
// rather than 1 (runtime failure), per the CLI surface's exit-code table.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		var u *usageError
		if errors.As(err, &u) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// buildRootCmd assembles the full command tree; separated from main for
// testability.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tau",
		Short:        "Tau - multi-provider coding-agent orchestrator core",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildSessionCmd(),
		buildEnvelopeCmd(),
		buildRouterCmd(),
		buildDispatchCmd(),
		buildFixturesCmd(),
	)

	return rootCmd
}
