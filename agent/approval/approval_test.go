package approval

import (
	"bytes"
	"context"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

func TestConsoleApprove(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"y\n":     true,
		"YES\n":   true,
		" y ":     true,
		"n\n":     false,
		"maybe\n": false,
		"":        false,
	}
	step := contractx.Step{ID: 3, Role: contractx.RoleReviewer}

	for input, want := range cases {
		var out bytes.Buffer
		got, err := NewConsole(strings.NewReader(input), &out).Approve(context.Background(), step, "APPROVED")
		if err != nil {
			t.Fatalf("input %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("input %q: got %v want %v", input, got, want)
		}
		if !strings.Contains(out.String(), "Proceed? (y/n)") {
			t.Fatalf("prompt not written: %q", out.String())
		}
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := &Recorder{Next: Static(false)}
	ok, err := r.Approve(context.Background(), contractx.Step{ID: 7}, "")
	if err != nil || ok {
		t.Fatalf("unexpected approval: %v %v", ok, err)
	}
	if steps := r.Steps(); len(steps) != 1 || steps[0].ID != 7 {
		t.Fatalf("unexpected steps: %+v", steps)
	}
}
