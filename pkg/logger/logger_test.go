package logx

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Debug: false})
	logger.Debug().Msg("hidden")
	logger.Info().Str("run_id", "r1").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry must be filtered: %s", out)
	}
	if !strings.Contains(out, `"run_id":"r1"`) {
		t.Fatalf("expected structured field in output: %s", out)
	}
}

func TestNewDebugEnabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Debug: true})
	logger.Debug().Msg("shown")

	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug entry, got %q", buf.String())
	}
}
