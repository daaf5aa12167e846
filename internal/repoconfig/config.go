// Package repoconfig assembles the effective configuration — limits,
// include/exclude rules, and adapter toggles — from layered sources:
// hardcoded defaults, a user config file, a project config file, and
// environment variable overrides, in that order of increasing precedence.
package repoconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/repomcp/repomcpd/internal/sandbox"
)

// Config is the complete effective configuration for one repo_root.
type Config struct {
	Version int `yaml:"version" json:"version"`

	RepoRoot string `yaml:"-" json:"repo_root"`
	DataDir  string `yaml:"data_dir" json:"data_dir"`

	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Limits   LimitsConfig   `yaml:"limits" json:"limits"`
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Adapters AdaptersConfig `yaml:"adapters" json:"adapters"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// PathsConfig controls Discovery's inclusion rules.
type PathsConfig struct {
	IncludeExtensions []string `yaml:"include_extensions" json:"include_extensions"`
	ExcludeGlobs      []string `yaml:"exclude_globs" json:"exclude_globs"`
	DenylistGlobs     []string `yaml:"denylist_globs" json:"denylist_globs"`
	TestGlobs         []string `yaml:"test_globs" json:"test_globs"`
	IncludeHidden     bool     `yaml:"include_hidden" json:"include_hidden"`
}

// LimitsConfig holds the configurable hard caps enforced by the Sandbox.
type LimitsConfig struct {
	MaxFileBytes             int64 `yaml:"max_file_bytes" json:"max_file_bytes"`
	MaxOpenLines              int   `yaml:"max_open_lines" json:"max_open_lines"`
	MaxTotalBytesPerResponse int64 `yaml:"max_total_bytes_per_response" json:"max_total_bytes_per_response"`
	MaxSearchHits            int   `yaml:"max_search_hits" json:"max_search_hits"`
	MaxReferences            int   `yaml:"max_references" json:"max_references"`
}

// ChunkingConfig configures the fixed line-window chunker.
type ChunkingConfig struct {
	Window  int `yaml:"window" json:"window"`
	Overlap int `yaml:"overlap" json:"overlap"`
	// Version participates in chunk_id derivation; bump to force a full
	// re-chunk of every file on next refresh.
	Version int `yaml:"version" json:"version"`
}

// AdaptersConfig toggles which outline adapters are active.
type AdaptersConfig struct {
	Python   bool `yaml:"python" json:"python"`
	Lexical  bool `yaml:"lexical" json:"lexical"`
}

// ServerConfig configures the stdio transport and logging.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

var defaultIncludeExtensions = []string{
	".go", ".py", ".ts", ".tsx", ".js", ".jsx", ".java", ".rs", ".cpp", ".cc",
	".cxx", ".hpp", ".h", ".c", ".cs", ".md", ".txt", ".json", ".yaml", ".yml",
}

var defaultExcludeGlobs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
}

var defaultTestGlobs = []string{
	"**/*_test.go",
	"**/test_*.py",
	"**/*_test.py",
	"**/*.test.ts",
	"**/*.test.js",
	"**/*.spec.ts",
	"**/*.spec.js",
	"**/Test*.java",
	"**/*Test.java",
}

// Default returns the hardcoded default configuration for repoRoot.
func Default(repoRoot string) *Config {
	return &Config{
		Version:  1,
		RepoRoot: repoRoot,
		DataDir:  filepath.Join(repoRoot, ".repo_mcp"),
		Paths: PathsConfig{
			IncludeExtensions: append([]string{}, defaultIncludeExtensions...),
			ExcludeGlobs:      append([]string{}, defaultExcludeGlobs...),
			DenylistGlobs:     sandbox.DefaultDenylistGlobs(),
			TestGlobs:         append([]string{}, defaultTestGlobs...),
			IncludeHidden:     false,
		},
		Limits: LimitsConfig{
			MaxFileBytes:             4 * 1024 * 1024,
			MaxOpenLines:             2000,
			MaxTotalBytesPerResponse: 1024 * 1024,
			MaxSearchHits:            200,
			MaxReferences:            200,
		},
		Chunking: ChunkingConfig{
			Window:  200,
			Overlap: 30,
			Version: 1,
		},
		Adapters: AdaptersConfig{
			Python:  true,
			Lexical: true,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// SandboxLimits projects the effective limits into a sandbox.Limits value.
func (c *Config) SandboxLimits() sandbox.Limits {
	return sandbox.Limits{
		MaxFileBytes:             c.Limits.MaxFileBytes,
		MaxOpenLines:             c.Limits.MaxOpenLines,
		MaxTotalBytesPerResponse: c.Limits.MaxTotalBytesPerResponse,
	}
}

// Load assembles the effective config for repoRoot: defaults, then a user
// config (~/.config/repo_mcp/config.yaml), then a project config
// (<repo_root>/.repo_mcp.yaml), then REPO_MCP_* environment variables.
func Load(repoRoot string) (*Config, error) {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo_root: %w", err)
	}

	cfg := Default(abs)

	if userPath := userConfigPath(); fileExists(userPath) {
		if err := cfg.mergeYAMLFile(userPath); err != nil {
			return nil, fmt.Errorf("load user config: %w", err)
		}
	}

	projectPath := filepath.Join(abs, ".repo_mcp.yaml")
	if fileExists(projectPath) {
		if err := cfg.mergeYAMLFile(projectPath); err != nil {
			return nil, fmt.Errorf("load project config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func userConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "repo_mcp", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "repo_mcp", "config.yaml")
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// mergeYAMLFile parses path as a partial Config and merges its non-zero
// fields into c field by field: exclude and denylist globs are appended to
// the earlier layers' lists, other non-zero fields replace the earlier
// value. The version and adapters sections are not read from files.
func (c *Config) mergeYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	c.mergeWith(&partial)
	return nil
}

func (c *Config) mergeWith(o *Config) {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if len(o.Paths.IncludeExtensions) > 0 {
		c.Paths.IncludeExtensions = o.Paths.IncludeExtensions
	}
	if len(o.Paths.ExcludeGlobs) > 0 {
		c.Paths.ExcludeGlobs = append(c.Paths.ExcludeGlobs, o.Paths.ExcludeGlobs...)
	}
	if len(o.Paths.DenylistGlobs) > 0 {
		c.Paths.DenylistGlobs = append(c.Paths.DenylistGlobs, o.Paths.DenylistGlobs...)
	}
	if len(o.Paths.TestGlobs) > 0 {
		c.Paths.TestGlobs = o.Paths.TestGlobs
	}
	if o.Paths.IncludeHidden {
		c.Paths.IncludeHidden = true
	}
	if o.Limits.MaxFileBytes != 0 {
		c.Limits.MaxFileBytes = o.Limits.MaxFileBytes
	}
	if o.Limits.MaxOpenLines != 0 {
		c.Limits.MaxOpenLines = o.Limits.MaxOpenLines
	}
	if o.Limits.MaxTotalBytesPerResponse != 0 {
		c.Limits.MaxTotalBytesPerResponse = o.Limits.MaxTotalBytesPerResponse
	}
	if o.Limits.MaxSearchHits != 0 {
		c.Limits.MaxSearchHits = o.Limits.MaxSearchHits
	}
	if o.Limits.MaxReferences != 0 {
		c.Limits.MaxReferences = o.Limits.MaxReferences
	}
	if o.Chunking.Window != 0 {
		c.Chunking.Window = o.Chunking.Window
	}
	if o.Chunking.Overlap != 0 {
		c.Chunking.Overlap = o.Chunking.Overlap
	}
	if o.Chunking.Version != 0 {
		c.Chunking.Version = o.Chunking.Version
	}
	if o.Server.LogLevel != "" {
		c.Server.LogLevel = o.Server.LogLevel
	}
}

// envOverride pairs an environment variable name with the setter to apply
// when it is present, keeping applyEnvOverrides a flat, auditable list.
type envOverride struct {
	name  string
	apply func(c *Config, value string)
}

var envOverrides = []envOverride{
	{"REPO_MCP_DATA_DIR", func(c *Config, v string) { c.DataDir = v }},
	{"REPO_MCP_MAX_FILE_BYTES", func(c *Config, v string) { setInt64(&c.Limits.MaxFileBytes, v) }},
	{"REPO_MCP_MAX_OPEN_LINES", func(c *Config, v string) { setInt(&c.Limits.MaxOpenLines, v) }},
	{"REPO_MCP_MAX_TOTAL_BYTES_PER_RESPONSE", func(c *Config, v string) { setInt64(&c.Limits.MaxTotalBytesPerResponse, v) }},
	{"REPO_MCP_MAX_SEARCH_HITS", func(c *Config, v string) { setInt(&c.Limits.MaxSearchHits, v) }},
	{"REPO_MCP_MAX_REFERENCES", func(c *Config, v string) { setInt(&c.Limits.MaxReferences, v) }},
	{"REPO_MCP_CHUNK_WINDOW", func(c *Config, v string) { setInt(&c.Chunking.Window, v) }},
	{"REPO_MCP_CHUNK_OVERLAP", func(c *Config, v string) { setInt(&c.Chunking.Overlap, v) }},
	{"REPO_MCP_INCLUDE_HIDDEN", func(c *Config, v string) { c.Paths.IncludeHidden = isTruthy(v) }},
	{"REPO_MCP_LOG_LEVEL", func(c *Config, v string) { c.Server.LogLevel = v }},
	{"REPO_MCP_ADAPTERS_PYTHON", func(c *Config, v string) { c.Adapters.Python = isTruthy(v) }},
	{"REPO_MCP_ADAPTERS_LEXICAL", func(c *Config, v string) { c.Adapters.Lexical = isTruthy(v) }},
}

func (c *Config) applyEnvOverrides() {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			o.apply(c, v)
		}
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setInt64(dst *int64, v string) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = n
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
