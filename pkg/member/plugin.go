package member

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
)

// pluginMember runs a user-supplied executable as an out-of-process
// member. The protocol is one line-delimited JSON request on stdin and
// one line-delimited JSON response on stdout per invocation. Running
// out of process keeps a crashing plugin from taking the engine down.
type pluginMember struct {
	spec Spec
}

// pluginRequest is the single line written to the plugin's stdin.
type pluginRequest struct {
	AgentName string `json:"agent_name"`
	Task      string `json:"task"`
}

// pluginResponse is the single line expected on the plugin's stdout.
type pluginResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
	// Usage is optional; plugins that call LLMs themselves may report it.
	Usage llm.Usage `json:"usage"`
}

func newPluginMember(spec Spec) (Member, error) {
	return &pluginMember{spec: spec}, nil
}

// Name implements Member.
func (m *pluginMember) Name() string { return m.spec.AgentName }

// Type implements Member.
func (m *pluginMember) Type() AgentType { return TypeCustom }

// Run implements Member. The plugin process is started fresh per
// invocation and killed when ctx is cancelled.
func (m *pluginMember) Run(ctx context.Context, task string) (Submission, error) {
	cmd := exec.CommandContext(ctx, m.spec.PluginPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		e := errkind.Wrap(errkind.ProviderPermanent, err, "plugin: stdin pipe")
		return Failure(m.spec.AgentName, TypeCustom, e), e
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		e := errkind.Wrap(errkind.ProviderPermanent, err, "plugin: stdout pipe")
		return Failure(m.spec.AgentName, TypeCustom, e), e
	}

	if err := cmd.Start(); err != nil {
		e := errkind.Wrap(errkind.ProviderPermanent, err,
			fmt.Sprintf("plugin: start %s", m.spec.PluginPath))
		return Failure(m.spec.AgentName, TypeCustom, e), e
	}

	req, err := json.Marshal(pluginRequest{AgentName: m.spec.AgentName, Task: task})
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		e := errkind.Wrap(errkind.ProviderPermanent, err, "plugin: marshal request")
		return Failure(m.spec.AgentName, TypeCustom, e), e
	}
	if _, err := stdin.Write(append(req, '\n')); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		e := errkind.Wrap(errkind.ProviderPermanent, err, "plugin: write request")
		return Failure(m.spec.AgentName, TypeCustom, e), e
	}
	_ = stdin.Close()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		_ = cmd.Wait()
		if ctx.Err() != nil {
			return Failure(m.spec.AgentName, TypeCustom, ctx.Err()), ctx.Err()
		}
		e := errkind.New(errkind.ProviderPermanent,
			"plugin %s: no response line on stdout", m.spec.PluginPath)
		return Failure(m.spec.AgentName, TypeCustom, e), e
	}
	line := scanner.Bytes()

	var resp pluginResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		e := errkind.Wrap(errkind.ProviderPermanent, err, "plugin: decode response")
		return Failure(m.spec.AgentName, TypeCustom, e), e
	}

	if err := cmd.Wait(); err != nil && ctx.Err() != nil {
		return Failure(m.spec.AgentName, TypeCustom, ctx.Err()), ctx.Err()
	}

	if resp.Error != "" {
		e := errkind.New(errkind.ProviderPermanent, "plugin %s: %s", m.spec.AgentName, resp.Error)
		return Failure(m.spec.AgentName, TypeCustom, e), e
	}

	return Submission{
		AgentName: m.spec.AgentName,
		AgentType: TypeCustom,
		Content:   resp.Content,
		Status:    StatusSuccess,
		Usage:     resp.Usage,
		Timestamp: time.Now().UTC(),
	}, nil
}
