package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repomcp/repomcpd/internal/handlers"
	"github.com/repomcp/repomcpd/internal/protocol"
)

func newAuditCmd() *cobra.Command {
	var since int64
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit log entries",
		Long: `audit prints the append-only record of every request the server has
handled: tool name, whether it succeeded, whether a sandbox rule
blocked it, and its error code, if any.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuditCmd(cmd, since, limit, jsonOutput)
		},
	}

	cmd.Flags().Int64Var(&since, "since", 0, "Only show events at or after this unix timestamp")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAuditCmd(cmd *cobra.Command, since int64, limit int, jsonOutput bool) error {
	repoRoot, err := resolveRepoRoot()
	if err != nil {
		return err
	}

	e, err := newEnv(repoRoot)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer e.Close()

	params, err := json.Marshal(handlers.AuditLogParams{Since: since, Limit: limit})
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	resp := newDispatcher(e).Dispatch(cmd.Context(), protocol.Request{ID: "cli", Method: "repo.audit_log", Params: params})
	if !resp.OK {
		return fmt.Errorf("audit log failed: %s", errMessage(resp))
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Result)
	}

	result := resp.Result.(handlers.AuditLogResult)
	for _, ev := range result.Events {
		fmt.Fprintf(cmd.OutOrStdout(), "%d  %-28s  ok=%-5v blocked=%-5v %s\n", ev.Timestamp, ev.Tool, ev.OK, ev.Blocked, ev.ErrorCode)
	}
	return nil
}
