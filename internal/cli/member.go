package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/member"
)

// runMember runs one member agent from a configured team directly on a
// task. Useful for checking a member's behavior outside a full
// execution.
func (a *App) runMember(args []string) int {
	fs := flag.NewFlagSet("member", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var ef execFlags
	var teamID, memberName, task string
	a.registerExecFlags(fs, &ef)
	fs.StringVar(&teamID, "team", "", "team_id the member belongs to")
	fs.StringVar(&memberName, "member", "", "agent_name of the member to run")
	fs.StringVar(&task, "task", "", "the task to hand the member")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if teamID == "" || memberName == "" || task == "" {
		fmt.Fprintln(a.stderr, "member: --team, --member, and --task are required")
		return exitUsage
	}

	settings, code := a.loadSettings(ef)
	if code != exitOK {
		return code
	}

	var spec *member.Spec
	for _, team := range settings.Teams {
		if team.TeamID != teamID {
			continue
		}
		for i := range team.Members {
			if team.Members[i].AgentName == memberName {
				spec = &team.Members[i]
			}
		}
	}
	if spec == nil {
		fmt.Fprintf(a.stderr, "member: no member %q in team %q\n", memberName, teamID)
		return exitUsage
	}

	var provider llm.Provider
	if spec.AgentType != member.TypeCustom {
		var err error
		provider, err = a.providers.ProviderFor(context.Background(), spec.Model)
		if err != nil {
			fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
			return exitRuntime
		}
	}

	m, err := member.New(*spec, provider, nil)
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return exitUsage
	}

	sub, err := m.Run(context.Background(), task)
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: member %s: %v\n", memberName, err)
		return exitRuntime
	}

	if ef.output == "json" {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sub); err != nil {
			fmt.Fprintf(a.stderr, "mixseek: encode submission: %v\n", err)
			return exitRuntime
		}
		return exitOK
	}

	fmt.Fprintln(a.stdout, sub.Content)
	return exitOK
}
