package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func decodeLines(t *testing.T, b *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %q is not JSON: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestZeroLoggerIsSilent(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger must report IsZero")
	}
	l.Info("dropped", String("k", "v"))
	if Nop().IsZero() {
		t.Fatal("Nop must not report IsZero")
	}
}

func TestServiceJSONFieldsAndCaller(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	_, log := New(Config{Level: "debug", Console: true, JSON: true, Out: &buf})
	log = log.With(String("comp", "test"), String("k", "first"))
	log.Debug("hello", String("k", "second"), Int("n", 3), Err(errors.New("boom")), Err(nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	m := lines[0]
	if m["message"] != "hello" || m["comp"] != "test" || m["n"] != float64(3) || m["err"] != "boom" {
		t.Fatalf("unexpected event: %v", m)
	}
	if m["k"] != "second" {
		t.Fatalf("call-site field should win, got %v", m["k"])
	}
	if c, _ := m[zerolog.CallerFieldName].(string); !strings.HasPrefix(c, "logx_test.go:") {
		t.Fatalf("caller = %q", c)
	}
}

func TestServiceApplyChangesLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	svc, log := New(Config{Level: "warning", JSON: true, Out: &buf})
	log.Info("hidden")
	log.Warn("shown")
	svc.Apply(Config{Level: "debug", JSON: true, Out: &buf})
	log.Debug("now shown")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 || lines[0]["message"] != "shown" || lines[1]["message"] != "now shown" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestServiceFileSink(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ytc.log")
	var console bytes.Buffer
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}, Out: &console})
	log.Info("to file")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"message":"to file"`) {
		t.Fatalf("file content = %s", b)
	}
	if console.Len() != 0 {
		t.Fatalf("console disabled but got %q", console.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"TRACE":   zerolog.TraceLevel,
		" debug ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"loud":    zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
