package contract

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider is the reasoning oracle contract shared by every loop.
// Implementations must be safe to call sequentially from a single loop; the
// loops never call a provider concurrently.
type Provider interface {
	// Decide returns either a FinalAnswer or ToolInvocations for the conversation.
	// An empty catalog means the caller expects a textual answer.
	Decide(ctx context.Context, conv []Message, catalog []ToolSpec) (Decision, error)

	// Extract returns a JSON object conforming to schema.
	Extract(ctx context.Context, conv []Message, schema OutputSchema) (json.RawMessage, error)
}

// Worker performs one unit of role-specialised work.
// For router dispatch the context argument is empty.
type Worker interface {
	Work(ctx context.Context, task string, priorContext string) (string, error)
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, task string, priorContext string) (string, error)

func (f WorkerFunc) Work(ctx context.Context, task string, priorContext string) (string, error) {
	return f(ctx, task, priorContext)
}

// Approver supplies the human yes/no signal at a checkpoint step.
type Approver interface {
	Approve(ctx context.Context, step Step, result string) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, step Step, result string) (bool, error)

func (f ApproverFunc) Approve(ctx context.Context, step Step, result string) (bool, error) {
	return f(ctx, step, result)
}

// Extract runs p.Extract and decodes the structured value into T.
// Decode failures are reported as ErrSchemaViolation.
func Extract[T any](ctx context.Context, p Provider, conv []Message, schema OutputSchema) (T, error) {
	var out T
	raw, err := p.Extract(ctx, conv, schema)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: decode %s: %v", ErrSchemaViolation, schema.Name, err)
	}
	return out, nil
}
