// Package workspace manages the on-disk layout of a MixSeek workspace:
// configs/ for TOML files, logs/ for diagnostics, templates/ for
// scaffolding, and mixseek.db for the aggregation store.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ConfigsDir holds the TOML configuration files.
	ConfigsDir = "configs"
	// LogsDir holds diagnostic logs.
	LogsDir = "logs"
	// TemplatesDir holds scaffolding templates.
	TemplatesDir = "templates"
	// DBFile is the aggregation store.
	DBFile = "mixseek.db"
	// LogFile is the engine's diagnostic log.
	LogFile = "mixseek.log"
)

// Paths resolves the load-bearing locations under a workspace root.
type Paths struct {
	Root      string
	Configs   string
	Logs      string
	Templates string
	DB        string
	Log       string
}

// At returns the paths for a workspace root.
func At(root string) Paths {
	return Paths{
		Root:      root,
		Configs:   filepath.Join(root, ConfigsDir),
		Logs:      filepath.Join(root, LogsDir),
		Templates: filepath.Join(root, TemplatesDir),
		DB:        filepath.Join(root, DBFile),
		Log:       filepath.Join(root, LogsDir, LogFile),
	}
}

// Init creates the workspace directory tree and writes starter config
// files. Existing files are left untouched so re-running init is safe.
func Init(root string) (Paths, error) {
	p := At(root)
	for _, dir := range []string{p.Root, p.Configs, p.Logs, p.Templates} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return p, fmt.Errorf("workspace: create %s: %w", dir, err)
		}
	}

	for name, content := range starterConfigs {
		path := filepath.Join(p.Configs, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return p, fmt.Errorf("workspace: write %s: %w", path, err)
		}
	}
	return p, nil
}

// Check verifies the workspace exists and has a configs directory.
func Check(root string) (Paths, error) {
	p := At(root)
	info, err := os.Stat(p.Configs)
	if err != nil {
		return p, fmt.Errorf("workspace: %s is not initialized (run `mixseek init`): %w", root, err)
	}
	if !info.IsDir() {
		return p, fmt.Errorf("workspace: %s is not a directory", p.Configs)
	}
	return p, nil
}

// starterConfigs are the files `mixseek init` scaffolds.
var starterConfigs = map[string]string{
	"orchestrator.toml": `# MixSeek orchestrator configuration.
timeout_per_team_seconds = 600
max_rounds = 3
min_rounds = 1
submission_timeout_seconds = 300
judgment_timeout_seconds = 120
teams = [{ config = "team-example.toml" }]
evaluator_config = "evaluator.toml"
judgment_config = "judgment.toml"
`,

	"team-example.toml": `[team]
team_id = "example"
team_name = "Example Team"
max_concurrent_members = 2

[team.leader]
model = "claude-sonnet-4-5"
temperature = 0.7

[[team.members]]
agent_name = "analyst"
agent_type = "plain"
tool_description = "Analyzes the task and drafts a focused answer."
model = "claude-sonnet-4-5"

[[team.members]]
agent_name = "researcher"
agent_type = "web-search"
tool_description = "Searches the web for current facts and sources."
model = "gemini-2.0-flash"
`,

	"evaluator.toml": `default_model = "claude-sonnet-4-5"
temperature = 0.0
max_retries = 3
timeout_seconds = 120

[[metrics]]
name = "ClarityCoherence"
weight = 0.3

[[metrics]]
name = "Coverage"
weight = 0.3

[[metrics]]
name = "Relevance"
weight = 0.4
`,

	"judgment.toml": `model = "claude-sonnet-4-5"
temperature = 0.0
timeout_seconds = 60
`,
}
