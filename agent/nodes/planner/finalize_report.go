package plannernode

import (
	"fmt"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

func FinalizeReport(in *GraphState) (Report, error) {
	if in == nil {
		return Report{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	outcome := in.Outcome
	if in.Plan.Empty() {
		outcome = OutcomeNothingToExecute
	}
	return Report{
		RunID:    in.RunID,
		Goal:     in.Goal,
		Plan:     in.Plan,
		Order:    in.Order,
		Results:  in.Results,
		Outcome:  outcome,
		Halted:   in.Halted,
		Rejected: in.Rejected,
		Failed:   in.Failed,
		StepErr:  in.StepErr,
		PlanErr:  in.PlanErr,
	}, nil
}
