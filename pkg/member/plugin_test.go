package member

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// writePlugin writes an executable shell script and returns its path.
func writePlugin(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell plugins not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "plugin.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	return path
}

func customSpec(path string) Spec {
	return Spec{
		AgentName:       "customizer",
		AgentType:       TypeCustom,
		ToolDescription: "runs user code",
		PluginPath:      path,
	}
}

func TestPluginRoundTrip(t *testing.T) {
	// Ignores the request and answers with a fixed JSON line.
	path := writePlugin(t, `read line; echo '{"content":"plugin says hi","usage":{"input_tokens":0,"output_tokens":0,"requests":0}}'`)

	m, err := New(customSpec(path), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sub, err := m.Run(context.Background(), "do something")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sub.Status != StatusSuccess || sub.Content != "plugin says hi" {
		t.Errorf("submission = %+v", sub)
	}
	if sub.AgentType != TypeCustom {
		t.Errorf("agent type = %s", sub.AgentType)
	}
}

func TestPluginReportedError(t *testing.T) {
	path := writePlugin(t, `read line; echo '{"error":"unsupported task"}'`)

	m, err := New(customSpec(path), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sub, err := m.Run(context.Background(), "task")
	if err == nil {
		t.Fatal("expected error")
	}
	if sub.Status != StatusFailure {
		t.Errorf("status = %s", sub.Status)
	}
}

func TestPluginNoOutput(t *testing.T) {
	path := writePlugin(t, `read line; exit 0`)

	m, err := New(customSpec(path), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := m.Run(context.Background(), "task"); err == nil {
		t.Fatal("expected error for plugin with no response line")
	}
}

func TestPluginMissingExecutable(t *testing.T) {
	m, err := New(customSpec("/nonexistent/plugin"), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sub, err := m.Run(context.Background(), "task")
	if err == nil {
		t.Fatal("expected start error")
	}
	if sub.Status != StatusFailure {
		t.Errorf("status = %s", sub.Status)
	}
}
