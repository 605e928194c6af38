package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"", LevelInfo, true},
		{"loud", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf, Prefix: "test"})
	l.Info("hidden")
	l.Warn("shown %d", 42)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, "[WARN] test: shown 42") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf})
	child := l.WithComponent("history").WithField("doc", "a")
	child.Debug("undo")
	if !strings.Contains(buf.String(), "undo {component=history, doc=a}") {
		t.Errorf("fields missing or unordered: %q", buf.String())
	}

	// Derived loggers share level changes with their parent.
	buf.Reset()
	l.SetLevel(LevelError)
	child.Warn("dropped")
	if buf.Len() != 0 {
		t.Errorf("child ignored parent level: %q", buf.String())
	}
}

func TestNullAndDefault(t *testing.T) {
	Null().Error("nothing")
	var buf bytes.Buffer
	prev := Default()
	defer SetDefault(prev)
	SetDefault(New(Config{Output: &buf}))
	Default().Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Error("default logger not replaced")
	}
}
