package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/repomcp/repomcpd/internal/logging"
	"github.com/repomcp/repomcpd/internal/rpcserver"
	"github.com/repomcp/repomcpd/internal/watchhook"
)

func newServeCmd() *cobra.Command {
	var refreshOnStart bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the newline-delimited JSON protocol loop on stdio",
		Long: `serve starts the repo_mcp stdio server: one request object per line on
stdin, one response envelope per line on stdout. Stdout is reserved
exclusively for the protocol stream — structured JSON logs go to a
rotated file under the index data directory, never to stdout or stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), refreshOnStart, watch)
		},
	}

	cmd.Flags().BoolVar(&refreshOnStart, "refresh", true, "Run an incremental index refresh before serving")
	cmd.Flags().BoolVar(&watch, "watch", false, "Refresh the index automatically on filesystem changes")

	return cmd
}

func runServe(ctx context.Context, refreshOnStart bool, watch bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repoRoot, err := resolveRepoRoot()
	if err != nil {
		return err
	}

	e, err := newEnv(repoRoot)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer e.Close()

	logCfg := logging.ServeConfig(e.cfg.DataDir)
	logCfg.Level = e.cfg.Server.LogLevel
	logger, closeLog, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer closeLog()

	if refreshOnStart {
		result, err := e.refresher.Refresh(ctx, e.cfg, false)
		if err != nil {
			logger.Error("initial refresh failed", "error", err)
			return fmt.Errorf("initial refresh: %w", err)
		}
		logger.Info("initial refresh complete",
			slog.Int("added", result.Added), slog.Int("updated", result.Updated), slog.Int("removed", result.Removed))
	}

	if watch {
		hook, hookErr := watchhook.New(e.cfg.RepoRoot, logger)
		if hookErr != nil {
			logger.Warn("watch mode unavailable", "error", hookErr)
		} else {
			go hook.Run(ctx, func() {
				result, refreshErr := e.refresher.Refresh(ctx, e.cfg, false)
				if refreshErr != nil {
					logger.Error("watch-triggered refresh failed", "error", refreshErr)
					return
				}
				logger.Info("watch-triggered refresh complete",
					slog.Int("added", result.Added), slog.Int("updated", result.Updated), slog.Int("removed", result.Removed))
			})
		}
	}

	dispatcher := newDispatcher(e)
	server := rpcserver.New(dispatcher, e.auditLog, logger, nil)

	logger.Info("repomcpd serving", slog.String("repo_root", e.cfg.RepoRoot))
	return server.Serve(ctx, os.Stdin, os.Stdout)
}
