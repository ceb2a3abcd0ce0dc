package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mixseek/mixseek/internal/workspace"
)

// runConfig dispatches the config subcommands: init, list, show.
func (a *App) runConfig(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "config: a subcommand is required (init | list | show)")
		return exitUsage
	}

	switch args[0] {
	case "init":
		return a.runInit(args[1:])
	case "list":
		return a.runConfigList(args[1:])
	case "show":
		return a.runConfigShow(args[1:])
	default:
		fmt.Fprintf(a.stderr, "config: unknown subcommand %q\n", args[0])
		return exitUsage
	}
}

// runConfigList lists the TOML files in the workspace configs dir.
func (a *App) runConfigList(args []string) int {
	fs := flag.NewFlagSet("config list", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var ef execFlags
	a.registerExecFlags(fs, &ef)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	settings, code := a.loadSettings(ef)
	if code != exitOK {
		return code
	}

	paths := workspace.At(settings.Workspace)
	var files []string
	err := filepath.WalkDir(paths.Configs, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".toml" {
			rel, _ := filepath.Rel(paths.Configs, path)
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return exitRuntime
	}

	sort.Strings(files)
	for _, f := range files {
		fmt.Fprintln(a.stdout, f)
	}
	return exitOK
}

// runConfigShow prints the resolved settings with per-field provenance.
func (a *App) runConfigShow(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var ef execFlags
	a.registerExecFlags(fs, &ef)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	settings, code := a.loadSettings(ef)
	if code != exitOK {
		return code
	}

	view := map[string]any{
		"workspace":                  settings.Workspace,
		"timeout_per_team_seconds":   int(settings.PerTeamDeadline.Seconds()),
		"min_rounds":                 settings.MinRounds,
		"max_rounds":                 settings.MaxRounds,
		"submission_timeout_seconds": int(settings.SubmissionTimeout.Seconds()),
		"judgment_timeout_seconds":   int(settings.JudgmentTimeout.Seconds()),
		"teams":                      settings.Teams,
		"evaluator":                  settings.Evaluator,
		"judgment":                   settings.Judgment,
		"provenance":                 settings.Provenance,
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return exitRuntime
	}
	return exitOK
}
