package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/mixseek/mixseek/pkg/eval"
)

// runEvaluate scores a single submission with the workspace's evaluator
// configuration. Nothing is persisted.
func (a *App) runEvaluate(args []string) int {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var ef execFlags
	var submission string
	a.registerExecFlags(fs, &ef)
	fs.StringVar(&submission, "submission", "", "the submission text to score")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if ef.prompt == "" || submission == "" {
		fmt.Fprintln(a.stderr, "evaluate: --prompt and --submission are required")
		return exitUsage
	}

	settings, code := a.loadSettings(ef)
	if code != exitOK {
		return code
	}

	evaluator, err := eval.New(settings.Evaluator, a.providers)
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return exitUsage
	}

	result, err := evaluator.Evaluate(context.Background(), ef.prompt, submission, "adhoc")
	if err != nil {
		fmt.Fprintf(a.stderr, "mixseek: %v\n", err)
		return exitRuntime
	}

	if ef.output == "json" {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(a.stderr, "mixseek: encode result: %v\n", err)
			return exitRuntime
		}
		return exitOK
	}

	fmt.Fprintf(a.stdout, "Overall score: %.2f\n", result.OverallScore)
	for _, m := range result.Metrics {
		fmt.Fprintf(a.stdout, "  %-20s %6.2f  %s\n", m.Name, m.Score, m.Comment)
	}
	return exitOK
}
