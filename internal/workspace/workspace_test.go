package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")

	p, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, dir := range []string{p.Configs, p.Logs, p.Templates} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("missing directory %s", dir)
		}
	}
	for _, name := range []string{"orchestrator.toml", "team-example.toml", "evaluator.toml", "judgment.toml"} {
		if _, err := os.Stat(filepath.Join(p.Configs, name)); err != nil {
			t.Errorf("missing starter config %s", name)
		}
	}
	if p.DB != filepath.Join(root, "mixseek.db") {
		t.Errorf("db path = %s", p.DB)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	p, err := Init(root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	custom := []byte("max_rounds = 9\nteams = []\n")
	path := filepath.Join(p.Configs, "orchestrator.toml")
	if err := os.WriteFile(path, custom, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Init(root); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != string(custom) {
		t.Error("init must not overwrite existing configs")
	}
}

func TestCheck(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if _, err := Check(root); err == nil {
		t.Error("Check should fail on an uninitialized workspace")
	}
	if _, err := Init(root); err != nil {
		t.Fatal(err)
	}
	if _, err := Check(root); err != nil {
		t.Errorf("Check after Init: %v", err)
	}
}
