package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

// Step configures one scripted oracle reply. Exactly one of Decision, Value
// or Err is normally set.
type Step struct {
	Decision contractx.Decision
	Value    any
	Err      error
}

// Call records what the scripted provider was asked.
type Call struct {
	Op      string
	Conv    []contractx.Message
	Catalog []contractx.ToolSpec
	Schema  string
}

// Scripted replays a fixed sequence of replies for deterministic tests.
// Decide and Extract consume the same queue.
type Scripted struct {
	mu    sync.Mutex
	steps []Step
	index int
	calls []Call
}

var _ contractx.Provider = (*Scripted)(nil)

func NewScripted(steps ...Step) *Scripted {
	cloned := make([]Step, len(steps))
	copy(cloned, steps)
	return &Scripted{steps: cloned}
}

// Answer scripts a FinalAnswer.
func Answer(text string) Step {
	return Step{Decision: contractx.FinalAnswer{Text: text}}
}

// Invoke scripts a ToolInvocations decision.
func Invoke(calls ...contractx.ToolCallRequest) Step {
	return Step{Decision: contractx.ToolInvocations{Calls: calls}}
}

// Value scripts a structured extraction result; v is JSON-encoded.
func Value(v any) Step {
	return Step{Value: v}
}

func Fail(err error) Step {
	return Step{Err: err}
}

func (s *Scripted) Decide(_ context.Context, conv []contractx.Message, catalog []contractx.ToolSpec) (contractx.Decision, error) {
	step, err := s.next(Call{Op: "decide", Conv: contractx.CloneMessages(conv), Catalog: append([]contractx.ToolSpec(nil), catalog...)})
	if err != nil {
		return nil, err
	}
	if step.Decision == nil {
		return nil, fmt.Errorf("%w: scripted step %d has no decision", contractx.ErrProvider, s.Calls())
	}
	return step.Decision, nil
}

func (s *Scripted) Extract(_ context.Context, conv []contractx.Message, out contractx.OutputSchema) (json.RawMessage, error) {
	step, err := s.next(Call{Op: "extract", Conv: contractx.CloneMessages(conv), Schema: out.Name})
	if err != nil {
		return nil, err
	}
	if raw, ok := step.Value.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(step.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: encode scripted value: %v", contractx.ErrProvider, err)
	}
	return raw, nil
}

func (s *Scripted) next(call Call) (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, call)
	if s.index >= len(s.steps) {
		return Step{}, fmt.Errorf("%w: script exhausted at step %d", contractx.ErrProvider, s.index+1)
	}
	current := s.steps[s.index]
	s.index++
	if current.Err != nil {
		return Step{}, current.Err
	}
	return current, nil
}

// Calls returns how many times the provider was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Recorded returns a copy of every recorded call.
func (s *Scripted) Recorded() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Remaining returns the number of unused steps.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps) - s.index
}
