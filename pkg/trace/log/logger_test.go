package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mixseek/mixseek/pkg/trace"
)

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON line %q: %v", line, err)
	}
	return m
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Info)

	l.Info("round complete", "team_id", "alpha", "round", "2")

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["level"] != "info" || m["msg"] != "round complete" {
		t.Errorf("entry = %v", m)
	}
	fields := m["fields"].(map[string]any)
	if fields["team_id"] != "alpha" || fields["round"] != "2" {
		t.Errorf("fields = %v", fields)
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Warn)

	l.Debug("noise")
	l.Info("noise")
	l.Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if m := decodeLine(t, lines[0]); m["msg"] != "kept" {
		t.Errorf("msg = %v, want kept", m["msg"])
	}
}

func TestLoggerSpanCorrelation(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Debug)

	tracer := trace.Noop{}
	ctx, span := tracer.StartSpan(context.Background(), "round.run")
	defer tracer.EndSpan(span)

	l.InfoCtx(ctx, "persisting round")

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["span_id"] != span.ID {
		t.Errorf("span_id = %v, want %s", m["span_id"], span.ID)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != Debug || ParseLevel("error") != Error {
		t.Error("ParseLevel mismatch")
	}
	if ParseLevel("bogus") != Info {
		t.Error("unknown level should default to Info")
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic or write anywhere.
	Discard().Error("dropped")
}
