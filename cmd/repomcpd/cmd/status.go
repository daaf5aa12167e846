package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repomcp/repomcpd/internal/handlers"
	"github.com/repomcp/repomcpd/internal/protocol"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatusCmd(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatusCmd(cmd *cobra.Command, jsonOutput bool) error {
	repoRoot, err := resolveRepoRoot()
	if err != nil {
		return err
	}

	e, err := newEnv(repoRoot)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer e.Close()

	resp := newDispatcher(e).Dispatch(cmd.Context(), protocol.Request{ID: "cli", Method: "repo.status"})
	if !resp.OK {
		return fmt.Errorf("status failed: %s", errMessage(resp))
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Result)
	}

	status := resp.Result.(handlers.StatusResult)
	fmt.Fprintf(cmd.OutOrStdout(), "repo_root:     %s\n", status.RepoRoot)
	fmt.Fprintf(cmd.OutOrStdout(), "index_status:  %s\n", status.IndexStatus)
	fmt.Fprintf(cmd.OutOrStdout(), "indexed_files: %d\n", status.IndexedFileCount)
	fmt.Fprintf(cmd.OutOrStdout(), "adapters:      %v\n", status.EnabledAdapters)
	fmt.Fprintf(cmd.OutOrStdout(), "last_refresh:  %d\n", status.LastRefreshTimestamp)
	return nil
}
