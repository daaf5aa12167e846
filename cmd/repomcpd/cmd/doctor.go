package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/repomcp/repomcpd/internal/cliout"
	"github.com/repomcp/repomcpd/internal/repoconfig"
	"github.com/repomcp/repomcpd/internal/sandbox"
)

// diagnosticResult is one doctor check's outcome.
type diagnosticResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the server can operate on this repository",
		Long: `doctor verifies the repo root is readable, the data directory is
writable, the config loads without error, and the sandbox can resolve
the repo root itself — catching misconfiguration before serve fails
mid-session.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	repoRoot, err := resolveRepoRoot()
	if err != nil {
		return err
	}

	results := []diagnosticResult{checkRepoReadable(repoRoot)}

	cfg, cfgErr := repoconfig.Load(repoRoot)
	if cfgErr != nil {
		results = append(results, diagnosticResult{Name: "config_loads", OK: false, Detail: cfgErr.Error()})
	} else {
		results = append(results, diagnosticResult{Name: "config_loads", OK: true})
		results = append(results, checkDataDirWritable(cfg.DataDir))
		results = append(results, checkSandboxResolves(cfg))
	}

	allOK := true
	for _, r := range results {
		if !r.OK {
			allOK = false
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		w := cliout.New(cmd.OutOrStdout())
		for _, r := range results {
			line := r.Name
			if !r.OK && r.Detail != "" {
				line = fmt.Sprintf("%s: %s", r.Name, r.Detail)
			}
			if r.OK {
				w.Success(line)
			} else {
				w.Failure(line)
			}
		}
	}

	if !allOK {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func checkRepoReadable(repoRoot string) diagnosticResult {
	info, err := os.Stat(repoRoot)
	if err != nil {
		return diagnosticResult{Name: "repo_root_readable", OK: false, Detail: err.Error()}
	}
	if !info.IsDir() {
		return diagnosticResult{Name: "repo_root_readable", OK: false, Detail: "repo_root is not a directory"}
	}
	return diagnosticResult{Name: "repo_root_readable", OK: true}
}

func checkDataDirWritable(dataDir string) diagnosticResult {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return diagnosticResult{Name: "data_dir_writable", OK: false, Detail: err.Error()}
	}
	probe := filepath.Join(dataDir, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return diagnosticResult{Name: "data_dir_writable", OK: false, Detail: err.Error()}
	}
	_ = os.Remove(probe)
	return diagnosticResult{Name: "data_dir_writable", OK: true}
}

func checkSandboxResolves(cfg *repoconfig.Config) diagnosticResult {
	box, err := sandbox.New(cfg.RepoRoot, cfg.Paths.DenylistGlobs, cfg.SandboxLimits())
	if err != nil {
		return diagnosticResult{Name: "sandbox_initializes", OK: false, Detail: err.Error()}
	}
	if _, blocked := box.Resolve("."); blocked != nil {
		return diagnosticResult{Name: "sandbox_initializes", OK: false, Detail: blocked.Error()}
	}
	return diagnosticResult{Name: "sandbox_initializes", OK: true}
}
