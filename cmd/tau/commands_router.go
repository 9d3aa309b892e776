package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tauhq/tau/internal/router"
	"github.com/tauhq/tau/pkg/tau"
)

// routerSelectInput is the on-disk shape "tau router select" reads: a
// route table plus the trust signal for this selection.
type routerSelectInput struct {
	RouteTable tau.MultiAgentRouteTable `json:"route_table"`
	Trust      *router.TrustInput       `json:"trust,omitempty"`
}

func buildRouterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "router",
		Short: "Multi-agent route table operations",
	}
	cmd.AddCommand(buildRouterSelectCmd())
	return cmd
}

func buildRouterSelectCmd() *cobra.Command {
	var (
		inputPath string
		phase     string
		stepText  string
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Load a route table and run select_route for one phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return usageErrorf("router select: --input is required")
			}
			data, err := os.ReadFile(inputPath)
			if err != nil {
				return usageErrorf("router select: %w", err)
			}
			var in routerSelectInput
			if err := json.Unmarshal(data, &in); err != nil {
				return usageErrorf("router select: %w", err)
			}

			table, err := router.Load(in.RouteTable)
			if err != nil {
				return usageErrorf("router select: %w", err)
			}

			selection := table.SelectRoute(tau.Phase(phase), stepText, in.Trust, time.Now().UnixMilli())
			return printJSON(cmd, selection)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "Path to JSON {route_table, trust} file")
	cmd.Flags().StringVar(&phase, "phase", string(tau.PhasePlanner), "Phase to select a route for: planner, delegated_step, review")
	cmd.Flags().StringVar(&stepText, "step-text", "", "Step text used to resolve a delegated category target")
	return cmd
}
