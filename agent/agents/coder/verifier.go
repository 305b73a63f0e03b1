package coder

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

const (
	artifactPackage      = "artifact"
	defaultVerifyTimeout = 2 * time.Second
	floatTolerance       = 1e-9
)

var (
	fencePattern   = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n(.*?)```")
	packagePattern = regexp.MustCompile(`(?m)^\s*package\s+\w+`)

	// Free-form evaluation primitives and escape hatches, matched textually
	// anywhere in the source including comments and string literals.
	securityPatterns = []struct {
		re   *regexp.Regexp
		what string
	}{
		{regexp.MustCompile(`\beval\s*\(`), "eval("},
		{regexp.MustCompile(`\bexec\s*\(`), "exec("},
		{regexp.MustCompile(`"os/exec"`), "import of os/exec"},
		{regexp.MustCompile(`"syscall"`), "import of syscall"},
		{regexp.MustCompile(`"unsafe"`), "import of unsafe"},
		{regexp.MustCompile(`"plugin"`), "import of plugin"},
		{regexp.MustCompile(`"reflect"`), "import of reflect"},
		{regexp.MustCompile(`"github\.com/traefik/yaegi[^"]*"`), "import of an interpreter"},
	}

	printFuncs = map[string]bool{
		"print": true, "println": true,
		"fmt.Print": true, "fmt.Println": true, "fmt.Printf": true,
		"log.Print": true, "log.Println": true, "log.Printf": true,
	}

	// Packages an artifact may import.
	allowedPackages = map[string]bool{
		"errors": true, "fmt": true, "math": true, "sort": true,
		"strconv": true, "strings": true, "unicode": true, "unicode/utf8": true,
	}
)

// Task describes what a generated artifact must do: EntryPoint applied to
// Input must return a number equal to Expected.
type Task struct {
	Description string
	EntryPoint  string
	Input       []float64
	Expected    float64
}

func DefaultTask() Task {
	return Task{
		Description: "Write a Go function `CalculateAverage(numbers []float64) float64` that returns the average of a list of numbers.",
		EntryPoint:  "CalculateAverage",
		Input:       []float64{10, 20, 30},
		Expected:    20.0,
	}
}

// Verifier runs the static and dynamic checks against one artifact.
type Verifier struct {
	Timeout time.Duration
}

func NewVerifier() *Verifier {
	return &Verifier{Timeout: defaultVerifyTimeout}
}

// Verify checks source against task. Checks run in order and the first
// failure is returned: security, syntax, lint, then execution.
func (v *Verifier) Verify(ctx context.Context, source string, task Task) contractx.VerificationOutcome {
	code := StripFences(source)

	for _, p := range securityPatterns {
		if p.re.MatchString(code) {
			return contractx.Fail(contractx.DiagnosticSecurity, "use of %s is forbidden", p.what)
		}
	}

	code = withPackageClause(code)
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "artifact.go", code, 0)
	if err != nil {
		return contractx.Fail(contractx.DiagnosticSyntax, "%v", err)
	}
	code = renamePackage(fset, file, code)

	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, "`\"")
		if !allowedPackages[path] {
			return contractx.Fail(contractx.DiagnosticSecurity, "import of %s is not allowed", path)
		}
	}

	if fn := findFunc(file, task.EntryPoint); fn != nil && printsWithoutReturning(fn) {
		return contractx.Fail(contractx.DiagnosticLint, "function %s prints but does not return a value", task.EntryPoint)
	}

	return v.run(ctx, code, task)
}

func (v *Verifier) run(ctx context.Context, code string, task Task) contractx.VerificationOutcome {
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := execute(ctx, code, task)
	if ctx.Err() != nil && !out.Passed && out.Kind == contractx.DiagnosticRuntime {
		return contractx.Fail(contractx.DiagnosticRuntime, "execution did not finish within %s", timeout)
	}
	return out
}

func execute(ctx context.Context, code string, task Task) (out contractx.VerificationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = contractx.Fail(contractx.DiagnosticRuntime, "%v", r)
		}
	}()

	i := interp.New(interp.Options{Stdout: io.Discard, Stderr: io.Discard})
	// yaegi compiles its generic stdlib sources against the full symbol
	// table. Artifact imports are restricted by the import allowlist.
	if err := i.Use(stdlib.Symbols); err != nil {
		return contractx.Fail(contractx.DiagnosticRuntime, "load symbols: %v", err)
	}
	if _, err := i.Eval(code); err != nil {
		return contractx.Fail(contractx.DiagnosticSyntax, "%v", err)
	}

	entry := artifactPackage + "." + task.EntryPoint
	fn, err := i.Eval(entry)
	if err != nil || fn.Kind() != reflect.Func {
		return contractx.Fail(contractx.DiagnosticEntryPoint, "function %s is not defined", task.EntryPoint)
	}

	ft := fn.Type()
	if ft.NumIn() != 1 || ft.NumOut() == 0 {
		return contractx.Fail(contractx.DiagnosticEntryPoint, "function %s must take one argument and return a value, has signature %s", task.EntryPoint, ft)
	}
	arg, ok := inputLiteral(task.Input, ft.In(0))
	if !ok {
		return contractx.Fail(contractx.DiagnosticType, "cannot pass %v to parameter of type %s", task.Input, ft.In(0))
	}

	// The call runs inside the interpreter so cancellation stops it at the
	// next branch point.
	call := fmt.Sprintf("%s(%s)", entry, arg)
	if n := ft.NumOut(); n > 1 {
		call = fmt.Sprintf("func() %s { r0%s := %s; return r0 }()", ft.Out(0), strings.Repeat(", _", n-1), call)
	}
	result, err := i.EvalWithContext(ctx, call)
	if err != nil {
		var p interp.Panic
		switch {
		case ctx.Err() != nil:
			return contractx.Fail(contractx.DiagnosticRuntime, "%v", ctx.Err())
		case errors.As(err, &p):
			return contractx.Fail(contractx.DiagnosticRuntime, "%v", p.Value)
		default:
			return contractx.Fail(contractx.DiagnosticType, "call %s: %v", task.EntryPoint, err)
		}
	}

	got, ok := toNumber(result)
	if !ok {
		return contractx.Fail(contractx.DiagnosticType, "expected a number, got %s (%q)", describe(result), fmt.Sprint(valueOf(result)))
	}
	if math.IsNaN(got) || math.Abs(got-task.Expected) > floatTolerance {
		return contractx.Fail(contractx.DiagnosticLogic, "expected %v, got %v", task.Expected, got)
	}
	return contractx.Pass("Tests passed!")
}

// StripFences returns the body of the first fenced code block, or the trimmed
// text when there is none.
func StripFences(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

func withPackageClause(code string) string {
	if packagePattern.MatchString(code) {
		return code
	}
	return "package " + artifactPackage + "\n\n" + code
}

func renamePackage(fset *token.FileSet, file *ast.File, code string) string {
	if file.Name.Name == artifactPackage {
		return code
	}
	start := fset.Position(file.Name.Pos()).Offset
	end := start + len(file.Name.Name)
	return code[:start] + artifactPackage + code[end:]
}

func findFunc(file *ast.File, name string) *ast.FuncDecl {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if ok && fn.Recv == nil && fn.Name.Name == name {
			return fn
		}
	}
	return nil
}

func printsWithoutReturning(fn *ast.FuncDecl) bool {
	if fn.Body == nil {
		return false
	}
	prints, returns := false, false
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.ReturnStmt:
			if len(node.Results) > 0 {
				returns = true
			}
		case *ast.CallExpr:
			if printFuncs[callName(node.Fun)] {
				prints = true
			}
		}
		return true
	})
	hasResults := fn.Type.Results != nil && len(fn.Type.Results.List) > 0
	return prints && (!returns || !hasResults)
}

func callName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		if pkg, ok := e.X.(*ast.Ident); ok {
			return pkg.Name + "." + e.Sel.Name
		}
	}
	return ""
}

// inputLiteral renders in as a Go composite literal of type t.
func inputLiteral(in []float64, t reflect.Type) (string, bool) {
	if t.Kind() != reflect.Slice {
		return "", false
	}
	elems := make([]string, 0, len(in))
	for _, f := range in {
		switch t.Elem().Kind() {
		case reflect.Float32, reflect.Float64:
			elems = append(elems, strconv.FormatFloat(f, 'g', -1, 64))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			elems = append(elems, strconv.FormatInt(int64(f), 10))
		case reflect.Interface:
			elems = append(elems, "float64("+strconv.FormatFloat(f, 'g', -1, 64)+")")
		default:
			return "", false
		}
	}
	return fmt.Sprintf("%s{%s}", t, strings.Join(elems, ", ")), true
}

func valueOf(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

func describe(v reflect.Value) string {
	if !v.IsValid() {
		return "no value"
	}
	return v.Type().String()
}

func toNumber(v reflect.Value) (float64, bool) {
	if !v.IsValid() {
		return 0, false
	}
	if v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	}
	return 0, false
}
