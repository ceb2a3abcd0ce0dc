// Package config loads the MixSeek workspace configuration: layered
// TOML files with environment substitution, CLI > env > TOML > default
// precedence, and per-field provenance. The kernel consumes only the
// fully-resolved Settings record this package produces.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/eval"
	"github.com/mixseek/mixseek/pkg/judge"
	"github.com/mixseek/mixseek/pkg/leader"
	"github.com/mixseek/mixseek/pkg/member"
	"github.com/mixseek/mixseek/pkg/orchestrator"
	"github.com/mixseek/mixseek/pkg/promptbuilder"
)

// EnvWorkspace is the canonical workspace environment variable; the
// --workspace CLI flag overrides it. There is no working-directory
// fallback.
const EnvWorkspace = "MIXSEEK_WORKSPACE"

// Source records where a resolved field value came from.
type Source string

const (
	SourceCLI     Source = "cli"
	SourceEnv     Source = "env"
	SourceTOML    Source = "toml"
	SourceDefault Source = "default"
)

// Settings is the fully-resolved configuration the kernel runs on.
type Settings struct {
	Workspace         string
	PerTeamDeadline   time.Duration
	MinRounds         int
	MaxRounds         int
	SubmissionTimeout time.Duration
	JudgmentTimeout   time.Duration
	Teams             []orchestrator.TeamConfig
	Evaluator         eval.Config
	Judgment          judge.Config
	PromptBuilder     promptbuilder.Config
	// Provenance maps field names (e.g. "max_rounds",
	// "evaluator.default_model") to where their values came from.
	Provenance map[string]Source
}

// Task converts the settings into an ExecutionTask for one prompt.
func (s *Settings) Task(userPrompt string) orchestrator.ExecutionTask {
	return orchestrator.ExecutionTask{
		UserPrompt:        userPrompt,
		Teams:             s.Teams,
		PerTeamDeadline:   s.PerTeamDeadline,
		MinRounds:         s.MinRounds,
		MaxRounds:         s.MaxRounds,
		SubmissionTimeout: s.SubmissionTimeout,
		JudgmentTimeout:   s.JudgmentTimeout,
	}
}

// Overrides carries CLI-provided values; nil fields mean "not set".
type Overrides struct {
	Workspace         string
	MinRounds         *int
	MaxRounds         *int
	PerTeamSeconds    *int
	SubmissionSeconds *int
	JudgmentSeconds   *int
}

// TOML shapes. Durations are expressed in seconds across all files.

type orchestratorFile struct {
	WorkspacePath           string    `toml:"workspace_path"`
	TimeoutPerTeamSeconds   *int      `toml:"timeout_per_team_seconds"`
	MaxRounds               *int      `toml:"max_rounds"`
	MinRounds               *int      `toml:"min_rounds"`
	SubmissionTimeoutSecond *int      `toml:"submission_timeout_seconds"`
	JudgmentTimeoutSeconds  *int      `toml:"judgment_timeout_seconds"`
	Teams                   []fileRef `toml:"teams"`
	EvaluatorConfig         string    `toml:"evaluator_config"`
	JudgmentConfig          string    `toml:"judgment_config"`
}

type fileRef struct {
	Config string `toml:"config"`
}

type teamFile struct {
	Team teamSection `toml:"team"`
}

type teamSection struct {
	TeamID               string        `toml:"team_id"`
	TeamName             string        `toml:"team_name"`
	MaxConcurrentMembers int           `toml:"max_concurrent_members"`
	Leader               agentSection  `toml:"leader"`
	Members              []memberEntry `toml:"members"`
}

type agentSection struct {
	Model             string   `toml:"model"`
	SystemInstruction string   `toml:"system_instruction"`
	Temperature       *float64 `toml:"temperature"`
	MaxTokens         int      `toml:"max_tokens"`
	MaxTurns          int      `toml:"max_turns"`
}

// memberEntry is either an inline member table or a {config="..."}
// reference to one.
type memberEntry struct {
	Config            string   `toml:"config"`
	AgentName         string   `toml:"agent_name"`
	AgentType         string   `toml:"agent_type"`
	ToolName          string   `toml:"tool_name"`
	ToolDescription   string   `toml:"tool_description"`
	Model             string   `toml:"model"`
	SystemInstruction string   `toml:"system_instruction"`
	Temperature       *float64 `toml:"temperature"`
	MaxTokens         int      `toml:"max_tokens"`
	MaxTurns          int      `toml:"max_turns"`
	PluginPath        string   `toml:"plugin_path"`
}

type evaluatorFile struct {
	DefaultModel   string       `toml:"default_model"`
	Temperature    float64      `toml:"temperature"`
	MaxTokens      int          `toml:"max_tokens"`
	MaxRetries     int          `toml:"max_retries"`
	TimeoutSeconds int          `toml:"timeout_seconds"`
	Metrics        []metricFile `toml:"metrics"`
}

type metricFile struct {
	Name              string   `toml:"name"`
	Weight            *float64 `toml:"weight"`
	Model             string   `toml:"model"`
	SystemInstruction string   `toml:"system_instruction"`
	Temperature       *float64 `toml:"temperature"`
	MaxTokens         int      `toml:"max_tokens"`
}

type judgmentFile struct {
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	SystemInstruction string  `toml:"system_instruction"`
}

type promptBuilderFile struct {
	Template             string `toml:"template"`
	ImprovementDirective string `toml:"improvement_directive"`
}

// Load resolves the full configuration for a workspace. Precedence per
// field is CLI > env > TOML > default; required fields with no value at
// any layer are configuration errors.
func Load(overrides Overrides) (*Settings, error) {
	workspace, wsSource, err := resolveWorkspace(overrides)
	if err != nil {
		return nil, err
	}

	configsDir := filepath.Join(workspace, "configs")
	var file orchestratorFile
	if err := decodeTOML(filepath.Join(configsDir, "orchestrator.toml"), &file); err != nil {
		return nil, err
	}

	s := &Settings{
		Workspace:  workspace,
		Provenance: map[string]Source{"workspace": wsSource},
	}

	// Scalar fields: CLI > env > TOML > default.
	s.MaxRounds = resolveInt(s.Provenance, "max_rounds",
		overrides.MaxRounds, envInt("", "MAX_ROUNDS"), file.MaxRounds, 3)
	s.MinRounds = resolveInt(s.Provenance, "min_rounds",
		overrides.MinRounds, envInt("", "MIN_ROUNDS"), file.MinRounds, 1)
	s.PerTeamDeadline = time.Duration(resolveInt(s.Provenance, "timeout_per_team_seconds",
		overrides.PerTeamSeconds, envInt("", "TIMEOUT_PER_TEAM_SECONDS"), file.TimeoutPerTeamSeconds, 600)) * time.Second
	s.SubmissionTimeout = time.Duration(resolveInt(s.Provenance, "submission_timeout_seconds",
		overrides.SubmissionSeconds, envInt("", "SUBMISSION_TIMEOUT_SECONDS"), file.SubmissionTimeoutSecond, 300)) * time.Second
	s.JudgmentTimeout = time.Duration(resolveInt(s.Provenance, "judgment_timeout_seconds",
		overrides.JudgmentSeconds, envInt("", "JUDGMENT_TIMEOUT_SECONDS"), file.JudgmentTimeoutSeconds, 120)) * time.Second

	if len(file.Teams) == 0 {
		return nil, errkind.New(errkind.Configuration,
			"orchestrator.toml: at least one team reference is required")
	}
	for _, ref := range file.Teams {
		if ref.Config == "" {
			return nil, errkind.New(errkind.Configuration,
				"orchestrator.toml: team entry missing config path")
		}
		team, err := loadTeam(resolveRef(configsDir, ref.Config))
		if err != nil {
			return nil, err
		}
		s.Teams = append(s.Teams, *team)
	}

	if err := loadEvaluator(s, configsDir, file.EvaluatorConfig); err != nil {
		return nil, err
	}
	if err := loadJudgment(s, configsDir, file.JudgmentConfig); err != nil {
		return nil, err
	}
	if err := loadPromptBuilder(s, configsDir); err != nil {
		return nil, err
	}

	return s, nil
}

// resolveWorkspace applies CLI > env for the workspace root. A missing
// workspace is an error; the engine never falls back to the current
// directory.
func resolveWorkspace(overrides Overrides) (string, Source, error) {
	if overrides.Workspace != "" {
		return overrides.Workspace, SourceCLI, nil
	}
	if ws := os.Getenv(EnvWorkspace); ws != "" {
		return ws, SourceEnv, nil
	}
	return "", "", errkind.New(errkind.Configuration,
		"workspace is not set: pass --workspace or set %s", EnvWorkspace)
}

// resolveInt applies the four-layer precedence to one integer field and
// records its provenance.
func resolveInt(prov map[string]Source, name string, cli *int, env *int, toml *int, def int) int {
	switch {
	case cli != nil:
		prov[name] = SourceCLI
		return *cli
	case env != nil:
		prov[name] = SourceEnv
		return *env
	case toml != nil:
		prov[name] = SourceTOML
		return *toml
	default:
		prov[name] = SourceDefault
		return def
	}
}

// envInt reads MIXSEEK_<FIELD> or MIXSEEK_<SECTION>__<FIELD>.
func envInt(section, field string) *int {
	raw := envValue(section, field)
	if raw == "" {
		return nil
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return nil
	}
	return &v
}

// envValue returns the raw environment override for a settings field.
func envValue(section, field string) string {
	if section == "" {
		return os.Getenv("MIXSEEK_" + field)
	}
	return os.Getenv("MIXSEEK_" + section + "__" + field)
}

// resolveRef resolves a config reference relative to the directory of
// the file that contains it.
func resolveRef(baseDir, ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(baseDir, ref)
}

// decodeTOML reads path, substitutes ${VAR} patterns, and decodes into v.
func decodeTOML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errkind.Wrap(errkind.Configuration, err, "config: read "+path)
	}
	if _, err := toml.Decode(Substitute(string(data)), v); err != nil {
		return errkind.Wrap(errkind.Configuration, err, "config: parse "+path)
	}
	return nil
}

// loadTeam reads a team file and materializes its member references.
func loadTeam(path string) (*orchestrator.TeamConfig, error) {
	var file teamFile
	if err := decodeTOML(path, &file); err != nil {
		return nil, err
	}

	t := file.Team
	cfg := &orchestrator.TeamConfig{
		TeamID:               t.TeamID,
		TeamName:             t.TeamName,
		MaxConcurrentMembers: t.MaxConcurrentMembers,
		Leader: leader.Config{
			Model:             t.Leader.Model,
			SystemInstruction: t.Leader.SystemInstruction,
			Temperature:       t.Leader.Temperature,
			MaxTokens:         t.Leader.MaxTokens,
			MaxTurns:          t.Leader.MaxTurns,
		},
	}
	if cfg.MaxConcurrentMembers == 0 {
		cfg.MaxConcurrentMembers = 1
	}

	baseDir := filepath.Dir(path)
	for i, entry := range t.Members {
		spec, err := resolveMember(entry, baseDir, map[string]bool{path: true})
		if err != nil {
			return nil, fmt.Errorf("%s member %d: %w", path, i+1, err)
		}
		cfg.Members = append(cfg.Members, spec)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveMember materializes a member entry, following {config="..."}
// references eagerly. visited guards against reference cycles.
func resolveMember(entry memberEntry, baseDir string, visited map[string]bool) (member.Spec, error) {
	for entry.Config != "" {
		path := resolveRef(baseDir, entry.Config)
		if visited[path] {
			return member.Spec{}, errkind.New(errkind.Configuration,
				"config reference cycle through %s", path)
		}
		visited[path] = true

		var next memberEntry
		if err := decodeTOML(path, &next); err != nil {
			return member.Spec{}, err
		}
		baseDir = filepath.Dir(path)
		entry = next
	}

	return member.Spec{
		AgentName:         entry.AgentName,
		AgentType:         member.AgentType(entry.AgentType),
		ToolName:          entry.ToolName,
		ToolDescription:   entry.ToolDescription,
		Model:             entry.Model,
		SystemInstruction: entry.SystemInstruction,
		Temperature:       entry.Temperature,
		MaxTokens:         entry.MaxTokens,
		MaxTurns:          entry.MaxTurns,
		PluginPath:        entry.PluginPath,
	}, nil
}

func loadEvaluator(s *Settings, configsDir, ref string) error {
	if ref == "" {
		ref = "evaluator.toml"
	}
	var file evaluatorFile
	if err := decodeTOML(resolveRef(configsDir, ref), &file); err != nil {
		return err
	}

	if model := envValue("EVALUATOR", "DEFAULT_MODEL"); model != "" {
		file.DefaultModel = model
		s.Provenance["evaluator.default_model"] = SourceEnv
	} else {
		s.Provenance["evaluator.default_model"] = SourceTOML
	}
	if file.DefaultModel == "" {
		return errkind.New(errkind.Configuration, "evaluator: default_model is required")
	}

	s.Evaluator = eval.Config{
		DefaultModel: file.DefaultModel,
		Temperature:  file.Temperature,
		MaxTokens:    file.MaxTokens,
		MaxRetries:   file.MaxRetries,
		Timeout:      time.Duration(file.TimeoutSeconds) * time.Second,
	}
	for _, m := range file.Metrics {
		s.Evaluator.Metrics = append(s.Evaluator.Metrics, eval.MetricSpec{
			Name:              m.Name,
			Weight:            m.Weight,
			Model:             m.Model,
			SystemInstruction: m.SystemInstruction,
			Temperature:       m.Temperature,
			MaxTokens:         m.MaxTokens,
		})
	}
	return nil
}

func loadJudgment(s *Settings, configsDir, ref string) error {
	if ref == "" {
		ref = "judgment.toml"
	}
	var file judgmentFile
	if err := decodeTOML(resolveRef(configsDir, ref), &file); err != nil {
		return err
	}

	if model := envValue("JUDGMENT", "MODEL"); model != "" {
		file.Model = model
		s.Provenance["judgment.model"] = SourceEnv
	} else {
		s.Provenance["judgment.model"] = SourceTOML
	}
	if file.Model == "" {
		return errkind.New(errkind.Configuration, "judgment: model is required")
	}

	s.Judgment = judge.Config{
		Model:             file.Model,
		Temperature:       file.Temperature,
		MaxTokens:         file.MaxTokens,
		Timeout:           time.Duration(file.TimeoutSeconds) * time.Second,
		SystemInstruction: file.SystemInstruction,
	}
	return nil
}

// loadPromptBuilder reads the optional template file; a missing file
// means the built-in default template.
func loadPromptBuilder(s *Settings, configsDir string) error {
	path := filepath.Join(configsDir, "prompt_builder.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.Provenance["prompt_builder.template"] = SourceDefault
		return nil
	}

	var file promptBuilderFile
	if err := decodeTOML(path, &file); err != nil {
		return err
	}
	s.PromptBuilder = promptbuilder.Config{
		Template:             file.Template,
		ImprovementDirective: file.ImprovementDirective,
	}
	s.Provenance["prompt_builder.template"] = SourceTOML
	return nil
}
