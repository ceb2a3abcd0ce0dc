package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mixseek/mixseek/pkg/orchestrator"
)

// runTeam runs a single configured team against a prompt. Results land
// in the workspace store only with --save-db; by default they go to a
// throwaway database.
func (a *App) runTeam(args []string) int {
	fs := flag.NewFlagSet("team", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var ef execFlags
	var teamID string
	var saveDB bool
	a.registerExecFlags(fs, &ef)
	fs.StringVar(&teamID, "team", "", "team_id to run")
	fs.BoolVar(&saveDB, "save-db", false, "persist results to the workspace store")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if ef.prompt == "" && fs.NArg() > 0 {
		ef.prompt = fs.Arg(0)
	}
	if ef.prompt == "" {
		fmt.Fprintln(a.stderr, "team: a prompt is required (--prompt or positional)")
		return exitUsage
	}
	if teamID == "" {
		fmt.Fprintln(a.stderr, "team: --team is required")
		return exitUsage
	}

	settings, code := a.loadSettings(ef)
	if code != exitOK {
		return code
	}

	var selected []orchestrator.TeamConfig
	for _, team := range settings.Teams {
		if team.TeamID == teamID {
			selected = append(selected, team)
		}
	}
	if len(selected) == 0 {
		fmt.Fprintf(a.stderr, "team: no team with team_id %q in the workspace\n", teamID)
		return exitUsage
	}

	task := settings.Task(ef.prompt)
	task.Teams = selected

	wsRoot := settings.Workspace
	if !saveDB {
		scratch, err := os.MkdirTemp("", "mixseek-team-*")
		if err != nil {
			fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
			return exitRuntime
		}
		defer os.RemoveAll(scratch)
		// Point the run at a scratch workspace so nothing persists; the
		// log file goes to the scratch logs directory and is removed
		// with it.
		if err := os.MkdirAll(filepath.Join(scratch, "logs"), 0o755); err != nil {
			fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
			return exitRuntime
		}
		wsRoot = scratch
	}

	return a.execute(settings, task, ef.output, wsRoot)
}
