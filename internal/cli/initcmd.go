package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/mixseek/mixseek/internal/config"
	"github.com/mixseek/mixseek/internal/workspace"
)

// runInit scaffolds a workspace.
func (a *App) runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var ws string
	fs.StringVar(&ws, "workspace", "", "workspace root to create")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if ws == "" && fs.NArg() > 0 {
		ws = fs.Arg(0)
	}
	if ws == "" {
		ws = os.Getenv(config.EnvWorkspace)
	}
	if ws == "" {
		fmt.Fprintf(a.stderr, "init: a workspace path is required (positional, --workspace, or %s)\n", config.EnvWorkspace)
		return exitUsage
	}

	p, err := workspace.Init(ws)
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return exitRuntime
	}

	fmt.Fprintf(a.stdout, "Initialized workspace at %s\n", p.Root)
	fmt.Fprintf(a.stdout, "  configs:   %s\n", p.Configs)
	fmt.Fprintf(a.stdout, "  logs:      %s\n", p.Logs)
	fmt.Fprintf(a.stdout, "  templates: %s\n", p.Templates)
	fmt.Fprintln(a.stdout, "\nEdit configs/orchestrator.toml and run `mixseek exec --prompt ...`.")
	return exitOK
}
