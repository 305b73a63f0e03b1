package coder

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

const correctAverage = `func CalculateAverage(numbers []float64) float64 {
	total := 0.0
	for _, n := range numbers {
		total += n
	}
	return total / float64(len(numbers))
}`

func verify(t *testing.T, source string) contractx.VerificationOutcome {
	t.Helper()
	return NewVerifier().Verify(context.Background(), source, DefaultTask())
}

func TestVerifyPasses(t *testing.T) {
	t.Parallel()

	out := verify(t, "```go\n"+correctAverage+"\n```")
	if !out.Passed {
		t.Fatalf("expected pass, got %s", out.Diagnostic)
	}
}

func TestVerifyAcceptsOwnPackageClause(t *testing.T) {
	t.Parallel()

	out := verify(t, "package main\n\nimport \"math\"\n\n"+
		"func CalculateAverage(numbers []int) float64 {\n\ts := 0\n\tfor _, n := range numbers {\n\t\ts += n\n\t}\n\treturn math.Round(float64(s) / float64(len(numbers)))\n}\n")
	if !out.Passed {
		t.Fatalf("expected pass, got %s", out.Diagnostic)
	}
}

func TestVerifyDiagnostics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		source string
		kind   contractx.DiagnosticKind
	}{
		{
			name:   "syntax",
			source: "func CalculateAverage(numbers []float64 float64 {",
			kind:   contractx.DiagnosticSyntax,
		},
		{
			name:   "missing entry point",
			source: "func Mean(numbers []float64) float64 { return 0 }",
			kind:   contractx.DiagnosticEntryPoint,
		},
		{
			name:   "runtime panic",
			source: "func CalculateAverage(numbers []float64) float64 {\n\tvar idx []int\n\treturn numbers[idx[3]]\n}",
			kind:   contractx.DiagnosticRuntime,
		},
		{
			name:   "string result",
			source: "func CalculateAverage(numbers []float64) string { return \"twenty\" }",
			kind:   contractx.DiagnosticType,
		},
		{
			name:   "wrong value",
			source: "func CalculateAverage(numbers []float64) float64 { return numbers[0] }",
			kind:   contractx.DiagnosticLogic,
		},
		{
			name:   "prints instead of returning",
			source: "import \"fmt\"\n\nfunc CalculateAverage(numbers []float64) {\n\tfmt.Println(20.0)\n}",
			kind:   contractx.DiagnosticLint,
		},
		{
			name:   "disallowed import",
			source: "import \"os\"\n\nfunc CalculateAverage(numbers []float64) float64 { os.Exit(1); return 0 }",
			kind:   contractx.DiagnosticSecurity,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := verify(t, tc.source)
			if out.Passed || out.Kind != tc.kind {
				t.Fatalf("expected %s, got passed=%v %s", tc.kind, out.Passed, out.Diagnostic)
			}
			if !strings.HasPrefix(out.Diagnostic, string(tc.kind)+": ") {
				t.Fatalf("diagnostic must name its kind: %q", out.Diagnostic)
			}
		})
	}
}

func TestVerifySecurityIsAbsolute(t *testing.T) {
	t.Parallel()

	// Correct in every other respect; only the forbidden primitive differs.
	sources := []string{
		correctAverage + "\n// eval(numbers) was considered\n",
		"import \"os/exec\"\n\n" + correctAverage + "\n\nvar _ = exec.Command",
		"import \"reflect\"\n\n" + correctAverage + "\n\nvar _ = reflect.TypeOf",
		correctAverage + "\n\nfunc helper() { exec(\"ls\") }",
	}
	for _, src := range sources {
		out := verify(t, src)
		if out.Passed || out.Kind != contractx.DiagnosticSecurity {
			t.Fatalf("expected SecurityError for %q, got %s", src, out.Diagnostic)
		}
	}
}

func TestVerifyAcceptsErrorReturningEntryPoint(t *testing.T) {
	t.Parallel()

	out := verify(t, "import \"errors\"\n\n"+
		"func CalculateAverage(numbers []float64) (float64, error) {\n\tif len(numbers) == 0 {\n\t\treturn 0, errors.New(\"empty\")\n\t}\n\ttotal := 0.0\n\tfor _, n := range numbers {\n\t\ttotal += n\n\t}\n\treturn total / float64(len(numbers)), nil\n}\n")
	if !out.Passed {
		t.Fatalf("expected pass, got %s", out.Diagnostic)
	}
}

func TestVerifyPassesUnfencedSource(t *testing.T) {
	t.Parallel()

	out := verify(t, correctAverage)
	if !out.Passed || out.Diagnostic != "Tests passed!" {
		t.Fatalf("correct artifact must pass end to end, got %+v", out)
	}
}

// Not parallel: it counts goroutines.
func TestVerifyTimeoutStopsArtifact(t *testing.T) {
	before := runtime.NumGoroutine()

	v := &Verifier{Timeout: 100 * time.Millisecond}
	for i := 0; i < 3; i++ {
		out := v.Verify(context.Background(), "func CalculateAverage(numbers []float64) float64 {\n\tx := 0.0\n\tfor {\n\t\tx++\n\t}\n\treturn x\n}", DefaultTask())
		if out.Passed || out.Kind != contractx.DiagnosticRuntime || !strings.Contains(out.Diagnostic, "did not finish") {
			t.Fatalf("expected runtime timeout, got %s", out.Diagnostic)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if after := runtime.NumGoroutine(); after > before {
		t.Fatalf("timed out artifacts still running: goroutines before=%d after=%d", before, after)
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	got := StripFences("Here you go:\n```go\nfunc A() {}\n```\nThanks")
	if got != "func A() {}" {
		t.Fatalf("unexpected stripped source: %q", got)
	}
	if got := StripFences("  func B() {}  "); got != "func B() {}" {
		t.Fatalf("unexpected unfenced source: %q", got)
	}
}
