package logging

import (
	"bytes"
	"strings"
	"testing"
)

func testLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := &Logger{level: level, output: &buf, mu: defaultLogger.mu, fields: map[string]any{}}
	return l, &buf
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := testLogger(WARN)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")
	l.Error("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level leaked:\n%s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "also shown") {
		t.Errorf("messages at or above the level missing:\n%s", out)
	}
}

func TestLogger_Formatting(t *testing.T) {
	l, buf := testLogger(DEBUG)

	l.Info("delivered %d items to %s", 3, "u1")

	if !strings.Contains(buf.String(), "delivered 3 items to u1") {
		t.Errorf("format args not applied:\n%s", buf.String())
	}
}

func TestLogger_FieldsSortedAndInherited(t *testing.T) {
	l, buf := testLogger(DEBUG)

	l.WithField("zebra", 1).WithFields(map[string]any{"alpha": 2}).Info("hello")

	out := buf.String()
	alphaAt := strings.Index(out, "alpha=2")
	zebraAt := strings.Index(out, "zebra=1")
	if alphaAt == -1 || zebraAt == -1 {
		t.Fatalf("fields missing:\n%s", out)
	}
	if alphaAt > zebraAt {
		t.Errorf("fields not sorted:\n%s", out)
	}

	// The parent logger is untouched
	buf.Reset()
	l.Info("plain")
	if strings.Contains(buf.String(), "zebra") {
		t.Errorf("WithField mutated the parent logger:\n%s", buf.String())
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestComponent(t *testing.T) {
	l := Component("scheduler")
	if l.fields["component"] != "scheduler" {
		t.Errorf("Component() fields = %v", l.fields)
	}
}
