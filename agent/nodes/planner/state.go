package plannernode

import (
	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeHalted           Outcome = "halted"
	OutcomeNothingToExecute Outcome = "nothing_to_execute"
	OutcomeFailed           Outcome = "failed"
)

type GraphInput struct {
	Goal string
}

// GraphState is threaded through every node of one goal execution.
type GraphState struct {
	RunID   string
	Goal    string
	Plan    contractx.Plan
	PlanErr error
	Order   []contractx.Step
	Results *contractx.ContextStore

	Outcome  Outcome
	Halted   *contractx.Step
	Rejected string
	Failed   *contractx.Step
	StepErr  error
}

// Report is the reportable outcome of one goal execution. Halted is the
// checkpoint step whose result was refused and Rejected holds that result.
// Failed is the step that stopped the run with StepErr. Results keeps every
// step committed before either happened.
type Report struct {
	RunID    string
	Goal     string
	Plan     contractx.Plan
	Order    []contractx.Step
	Results  *contractx.ContextStore
	Outcome  Outcome
	Halted   *contractx.Step
	Rejected string
	Failed   *contractx.Step
	StepErr  error
	PlanErr  error
}

// Executed returns the ids of steps that produced a result, in execution order.
func (r Report) Executed() []int {
	return r.Results.IDs()
}
