package plannernode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

// WorkerLookup resolves the worker registered for a role.
type WorkerLookup interface {
	Lookup(role contractx.WorkerRole) (contractx.Worker, error)
}

// ExecuteSteps runs in.Order one step at a time. A step only runs once every
// dependency has a stored result, and it sees only those results. The result
// of a checkpoint step is committed only after the approver accepts it; a
// refusal or approver error halts with that step and all later steps absent
// from the store. A failing step ends the run with OutcomeFailed; the state is
// still returned so the results committed so far can be reported.
func ExecuteSteps(
	ctx context.Context,
	in *GraphState,
	workers WorkerLookup,
	approver contractx.Approver,
	checkpoint func(contractx.WorkerRole) bool,
	logger zerolog.Logger,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Results == nil {
		in.Results = contractx.NewContextStore()
	}

	for _, step := range in.Order {
		for _, dep := range step.Dependencies {
			if !in.Results.Has(dep) {
				return fail(in, step, fmt.Errorf("%w: step %d needs step %d", contractx.ErrDependencyUnmet, step.ID, dep), logger), nil
			}
		}

		worker, err := workers.Lookup(step.Role)
		if err != nil {
			return fail(in, step, err, logger), nil
		}

		stepLogger := logger.With().Str("run_id", in.RunID).Int("step_id", step.ID).Logger()
		prior := in.Results.Gather(step.Dependencies)
		result, err := worker.Work(stepLogger.WithContext(ctx), step.Description, prior)
		if err != nil {
			return fail(in, step, fmt.Errorf("step %d (%s): %w", step.ID, step.Role, err), logger), nil
		}
		logger.Info().
			Str("run_id", in.RunID).
			Int("step_id", step.ID).
			Str("role", string(step.Role)).
			Msg("step completed")

		if checkpoint != nil && checkpoint(step.Role) {
			approved, err := approver.Approve(ctx, step, result)
			if err != nil {
				logger.Warn().Err(err).Str("run_id", in.RunID).Int("step_id", step.ID).Msg("approval failed; halting")
			}
			if err != nil || !approved {
				logger.Info().Str("run_id", in.RunID).Int("step_id", step.ID).Msg("execution halted at checkpoint")
				in.Outcome = OutcomeHalted
				halted := step
				in.Halted = &halted
				in.Rejected = result
				return in, nil
			}
		}

		if err := in.Results.Put(step.ID, result); err != nil {
			return fail(in, step, err, logger), nil
		}
	}

	in.Outcome = OutcomeCompleted
	return in, nil
}

func fail(in *GraphState, step contractx.Step, err error, logger zerolog.Logger) *GraphState {
	logger.Warn().Err(err).Str("run_id", in.RunID).Int("step_id", step.ID).Msg("step failed; halting")
	in.Outcome = OutcomeFailed
	in.Failed = &step
	in.StepErr = err
	return in
}
