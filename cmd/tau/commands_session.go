package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tauhq/tau/internal/atomicfile"
	"github.com/tauhq/tau/internal/sessionstore"
	"github.com/tauhq/tau/pkg/tau"
)

// buildSessionCmd groups the session-lineage maintenance commands: export,
// import, merge, and repair, each opening a sessionstore.Store at --path.
func buildSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and maintain session lineage stores",
	}
	cmd.AddCommand(
		buildSessionExportCmd(),
		buildSessionImportCmd(),
		buildSessionMergeCmd(),
		buildSessionRepairCmd(),
	)
	return cmd
}

func openStore(path string) (*sessionstore.Store, error) {
	if path == "" {
		return nil, usageErrorf("--path is required")
	}
	return sessionstore.Open(path, atomicfile.DefaultLockOptions())
}

func buildSessionExportCmd() *cobra.Command {
	var path, dest string
	var head uint64

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a session lineage to a standalone snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(path)
			if err != nil {
				return err
			}
			var headPtr *uint64
			if head != 0 {
				headPtr = &head
			}
			if err := store.ExportLineage(headPtr, dest); err != nil {
				return fmt.Errorf("session export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported lineage to %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Path to the session store file")
	cmd.Flags().StringVar(&dest, "dest", "", "Destination snapshot file path")
	cmd.Flags().Uint64Var(&head, "head", 0, "Branch head entry ID to export (0 = current head)")
	cobra.CheckErr(cmd.MarkFlagRequired("dest"))
	return cmd
}

func buildSessionImportCmd() *cobra.Command {
	var path, src, mode string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a standalone snapshot into a session store",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(path)
			if err != nil {
				return err
			}
			importMode := tau.ImportMode(mode)
			if importMode != tau.ImportMerge && importMode != tau.ImportReplace {
				return usageErrorf("--mode must be %q or %q", tau.ImportMerge, tau.ImportReplace)
			}
			report, err := store.ImportSnapshot(src, importMode)
			if err != nil {
				return fmt.Errorf("session import: %w", err)
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Path to the session store file")
	cmd.Flags().StringVar(&src, "src", "", "Source snapshot file path")
	cmd.Flags().StringVar(&mode, "mode", string(tau.ImportMerge), "Import mode: merge or replace")
	cobra.CheckErr(cmd.MarkFlagRequired("src"))
	return cmd
}

func buildSessionMergeCmd() *cobra.Command {
	var path, strategy string
	var sourceHead, targetHead uint64

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge one branch into another",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(path)
			if err != nil {
				return err
			}
			mergeStrategy := tau.MergeStrategy(strategy)
			newHead, err := store.MergeBranches(sourceHead, targetHead, mergeStrategy)
			if err != nil {
				return fmt.Errorf("session merge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged into new head %d\n", newHead)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Path to the session store file")
	cmd.Flags().Uint64Var(&sourceHead, "source", 0, "Source branch head entry ID")
	cmd.Flags().Uint64Var(&targetHead, "target", 0, "Target branch head entry ID")
	cmd.Flags().StringVar(&strategy, "strategy", string(tau.MergeFastForward), "Merge strategy: fast_forward, append, or squash")
	return cmd
}

func buildSessionRepairCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Validate and repair a session store's lineage integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(path)
			if err != nil {
				return err
			}
			report, err := store.Repair()
			if err != nil {
				return fmt.Errorf("session repair: %w", err)
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Path to the session store file")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
