// Package cli implements the MixSeek command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/llm/factory"
)

// Exit codes: 0 success, 1 runtime failure, 2 invalid usage or
// configuration.
const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

// ProviderSource resolves model ids to authenticated providers.
type ProviderSource interface {
	ProviderFor(ctx context.Context, model string) (llm.Provider, error)
}

// App is the MixSeek CLI application.
type App struct {
	stdout    io.Writer
	stderr    io.Writer
	providers ProviderSource
}

// New creates a CLI application writing to the given writers.
func New(stdout, stderr io.Writer) *App {
	return &App{
		stdout:    stdout,
		stderr:    stderr,
		providers: factory.New(),
	}
}

// SetProviderSource overrides the default provider factory (for tests).
func (a *App) SetProviderSource(s ProviderSource) {
	a.providers = s
}

// Run dispatches to a subcommand and returns the process exit code.
func (a *App) Run(args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return exitOK
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "version":
		return a.runVersion()
	case "init":
		return a.runInit(cmdArgs)
	case "exec":
		return a.runExec(cmdArgs)
	case "team":
		return a.runTeam(cmdArgs)
	case "evaluate":
		return a.runEvaluate(cmdArgs)
	case "member":
		return a.runMember(cmdArgs)
	case "config":
		return a.runConfig(cmdArgs)
	case "ui":
		fmt.Fprintln(a.stderr, "mixseek: the terminal UI ships separately; install mixseek-ui to use this command")
		return exitRuntime
	case "help", "-h", "--help":
		a.printUsage()
		return exitOK
	default:
		fmt.Fprintf(a.stderr, "mixseek: unknown command %q\n\n", cmd)
		a.printUsage()
		return exitUsage
	}
}

func (a *App) printUsage() {
	fmt.Fprint(a.stdout, `mixseek — multi-agent LLM orchestration engine

Usage:
  mixseek <command> [flags]

Commands:
  init        Scaffold a workspace (configs/, logs/, templates/)
  exec        Run all configured teams against a prompt
  team        Run a single team once (persists only with --save-db)
  evaluate    Score a submission with the configured evaluator
  member      Run a single member agent on a task
  config      Inspect configuration (init | list | show)
  ui          Launch the terminal UI (separate install)
  version     Print the version

Common flags:
  --workspace <dir>   Workspace root (or set MIXSEEK_WORKSPACE)

Exit codes: 0 success, 1 runtime failure, 2 invalid usage or configuration.
`)
}
