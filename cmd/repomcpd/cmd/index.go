package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repomcp/repomcpd/internal/cliout"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Refresh the on-disk index",
		Long: `Run one incremental refresh pass: unchanged files are skipped, changed
files are re-chunked and re-indexed, vanished files are removed. Use
--force to re-chunk every file regardless of mtime/hash.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, force, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-chunk every file regardless of mtime/hash")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runIndex(cmd *cobra.Command, force, jsonOutput bool) error {
	repoRoot, err := resolveRepoRoot()
	if err != nil {
		return err
	}

	e, err := newEnv(repoRoot)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer e.Close()

	result, err := e.refresher.Refresh(cmd.Context(), e.cfg, force)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	w := cliout.New(cmd.OutOrStdout())
	w.Success(fmt.Sprintf("added=%d updated=%d removed=%d duration_ms=%d",
		result.Added, result.Updated, result.Removed, result.DurationMs))
	return nil
}
