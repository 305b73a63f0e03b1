package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

// Console asks for a y/n answer on a line-oriented stream. Anything other
// than "y" or "yes", including EOF, is a refusal.
type Console struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

var _ contractx.Approver = (*Console)(nil)

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

func (c *Console) Approve(ctx context.Context, step contractx.Step, result string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(c.out, "\n[%s] step %d finished:\n%s\nProceed? (y/n): ", step.Role, step.ID, result)

	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read approval: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// Static always returns the same answer.
type Static bool

func (s Static) Approve(context.Context, contractx.Step, string) (bool, error) {
	return bool(s), nil
}

// Recorder wraps an Approver and remembers the steps it was asked about.
type Recorder struct {
	Next  contractx.Approver
	mu    sync.Mutex
	steps []contractx.Step
}

func (r *Recorder) Approve(ctx context.Context, step contractx.Step, result string) (bool, error) {
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
	return r.Next.Approve(ctx, step, result)
}

func (r *Recorder) Steps() []contractx.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]contractx.Step(nil), r.steps...)
}
