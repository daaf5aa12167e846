package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repomcp/repomcpd/internal/handlers"
	"github.com/repomcp/repomcpd/internal/protocol"
)

func newSearchCmd() *cobra.Command {
	var topK int
	var fileGlob string
	var pathPrefix string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a BM25 search against the index",
		Long: `search tokenizes the query, scores every indexed chunk sharing at
least one term, and prints the deterministically ordered hits. This
exercises the same repo.search handler the stdio server serves.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchCmd(cmd, strings.Join(args, " "), topK, fileGlob, pathPrefix, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&topK, "limit", "n", 10, "Maximum number of hits")
	cmd.Flags().StringVar(&fileGlob, "file-glob", "", "Restrict to paths matching this glob")
	cmd.Flags().StringVar(&pathPrefix, "path-prefix", "", "Restrict to paths under this prefix")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSearchCmd(cmd *cobra.Command, query string, topK int, fileGlob, pathPrefix string, jsonOutput bool) error {
	repoRoot, err := resolveRepoRoot()
	if err != nil {
		return err
	}

	e, err := newEnv(repoRoot)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer e.Close()

	params, err := json.Marshal(handlers.SearchParams{Query: query, TopK: topK, FileGlob: fileGlob, PathPrefix: pathPrefix})
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	resp := newDispatcher(e).Dispatch(cmd.Context(), protocol.Request{ID: "cli", Method: "repo.search", Params: params})
	if !resp.OK {
		return fmt.Errorf("search failed: %s", errMessage(resp))
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Result)
	}

	result := resp.Result.(handlers.SearchResult)
	for _, hit := range result.Hits {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%d-%d  score=%.3f  %s\n", hit.Path, hit.StartLine, hit.EndLine, hit.Score, hit.Snippet)
	}
	return nil
}

func errMessage(resp protocol.Response) string {
	if resp.Error == nil {
		return "unknown error"
	}
	return resp.Error.Code + ": " + resp.Error.Message
}
