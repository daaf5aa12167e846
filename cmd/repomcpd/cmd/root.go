// Package cmd provides the CLI commands for repomcpd.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/repomcp/repomcpd/pkg/version"
)

var repoRootFlag string

// NewRootCmd creates the root command for the repomcpd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repomcpd",
		Short: "Local repository introspection server for AI coding agents",
		Long: `repomcpd runs a single-process, local-only server that lets an AI
coding agent interrogate one repository over newline-delimited JSON on
stdin/stdout: file discovery, symbol outlines, BM25 search, reference
resolution, and budget-bounded context bundles.

Run 'repomcpd serve' in a repository to start the protocol loop, or use
the one-shot subcommands (index, search, status, audit, doctor) for
inspection from a shell.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("repomcpd version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&repoRootFlag, "repo-root", "", "Repository root (defaults to the current directory)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func resolveRepoRoot() (string, error) {
	if repoRootFlag != "" {
		return repoRootFlag, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return cwd, nil
}
