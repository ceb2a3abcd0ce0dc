package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mixseek/mixseek/internal/config"
	"github.com/mixseek/mixseek/internal/workspace"
	"github.com/mixseek/mixseek/pkg/orchestrator"
	"github.com/mixseek/mixseek/pkg/store"
	"github.com/mixseek/mixseek/pkg/trace"
	"github.com/mixseek/mixseek/pkg/trace/log"
	"github.com/mixseek/mixseek/pkg/trace/otel"
)

// execFlags are shared by exec and team.
type execFlags struct {
	workspace string
	prompt    string
	output    string
	maxRounds int
	minRounds int
}

func (a *App) registerExecFlags(fs *flag.FlagSet, ef *execFlags) {
	fs.StringVar(&ef.workspace, "workspace", "", "workspace root (overrides MIXSEEK_WORKSPACE)")
	fs.StringVar(&ef.prompt, "prompt", "", "the user prompt all teams compete on")
	fs.StringVar(&ef.output, "output", "text", "output format: text or json")
	fs.IntVar(&ef.maxRounds, "max-rounds", 0, "override max rounds")
	fs.IntVar(&ef.minRounds, "min-rounds", 0, "override min rounds")
}

// runExec runs every configured team against the prompt and always
// persists to the workspace store.
func (a *App) runExec(args []string) int {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var ef execFlags
	a.registerExecFlags(fs, &ef)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if ef.prompt == "" && fs.NArg() > 0 {
		ef.prompt = fs.Arg(0)
	}
	if ef.prompt == "" {
		fmt.Fprintln(a.stderr, "exec: a prompt is required (--prompt or positional)")
		return exitUsage
	}

	settings, code := a.loadSettings(ef)
	if code != exitOK {
		return code
	}

	return a.execute(settings, settings.Task(ef.prompt), ef.output, settings.Workspace)
}

// loadSettings resolves configuration with CLI overrides applied.
func (a *App) loadSettings(ef execFlags) (*config.Settings, int) {
	overrides := config.Overrides{Workspace: ef.workspace}
	if ef.maxRounds > 0 {
		overrides.MaxRounds = &ef.maxRounds
	}
	if ef.minRounds > 0 {
		overrides.MinRounds = &ef.minRounds
	}

	settings, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return nil, exitUsage
	}
	if _, err := workspace.Check(settings.Workspace); err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return nil, exitUsage
	}
	return settings, exitOK
}

// execute runs the orchestrator against an already-resolved task and
// renders the summary. The exit code reflects whether any team
// succeeded.
func (a *App) execute(settings *config.Settings, task orchestrator.ExecutionTask, output, wsRoot string) int {
	paths := workspace.At(wsRoot)

	st, err := store.Open(paths.DB)
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return exitRuntime
	}
	defer st.Close()

	logger, err := log.NewFile(paths.Log, log.ParseLevel(os.Getenv("MIXSEEK_LOG_LEVEL")))
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return exitRuntime
	}
	defer logger.Close()

	var tracer trace.Tracer = trace.Noop{}
	if endpoint := os.Getenv("MIXSEEK_OTLP_ENDPOINT"); endpoint != "" {
		exporter := otel.NewExporter(
			otel.WithEndpoint(endpoint),
			otel.WithServiceName("mixseek"),
		)
		defer exporter.Shutdown()
		tracer = exporter
	}

	o := orchestrator.New(st, a.providers, settings.Evaluator, settings.Judgment,
		orchestrator.WithPromptBuilder(settings.PromptBuilder),
		orchestrator.WithTracer(tracer),
		orchestrator.WithLogger(logger),
	)

	summary, err := o.Execute(context.Background(), task)
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return exitUsage
	}

	if output == "json" {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(a.stderr, "mixseek: encode summary: %v\n", err)
			return exitRuntime
		}
	} else {
		a.printSummary(summary)
	}

	if summary.CompletedTeams == 0 {
		return exitRuntime
	}
	return exitOK
}

// printSummary renders the human-readable execution report.
func (a *App) printSummary(summary *orchestrator.ExecutionSummary) {
	fmt.Fprintf(a.stdout, "Execution %s\n", summary.ExecutionID)
	fmt.Fprintf(a.stdout, "Teams: %d total, %d completed, %d failed (%.1fs)\n\n",
		summary.TotalTeams, summary.CompletedTeams, summary.FailedTeams,
		summary.TotalExecutionTime.Seconds())

	ids := make([]string, 0, len(summary.TeamStatuses))
	for id := range summary.TeamStatuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		status := summary.TeamStatuses[id]
		fmt.Fprintf(a.stdout, "  %-16s %-10s", status.TeamName, status.Status)
		if best, ok := summary.TeamResults[id]; ok {
			fmt.Fprintf(a.stdout, " best round %d, score %.2f", best.RoundNumber, best.EvaluationScore)
		}
		if status.ErrorMessage != "" {
			fmt.Fprintf(a.stdout, " (%s: %s)", status.ErrorKind, status.ErrorMessage)
		}
		fmt.Fprintln(a.stdout)
	}

	if summary.BestTeamID != "" {
		best := summary.TeamResults[summary.BestTeamID]
		fmt.Fprintf(a.stdout, "\nWinner: %s (score %.2f, round %d, %s)\n\n",
			best.TeamName, best.EvaluationScore, best.RoundNumber,
			best.ExecutionTime.Round(time.Millisecond))
		fmt.Fprintln(a.stdout, best.SubmissionContent)
	} else {
		fmt.Fprintln(a.stdout, "\nNo team completed a round.")
	}
}
