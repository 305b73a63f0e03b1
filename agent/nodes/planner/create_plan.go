package plannernode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

var planSchema = contractx.SchemaFor[contractx.Plan](contractx.SchemaPlan, "A dependency-annotated plan of role-assigned steps")

// CreatePlan asks the provider to decompose the goal. A failed extraction
// leaves an empty plan and records the cause in PlanErr.
func CreatePlan(
	ctx context.Context,
	in *GraphState,
	p contractx.Provider,
	conv []contractx.Message,
	logger zerolog.Logger,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	plan, err := contractx.Extract[contractx.Plan](ctx, p, conv, planSchema)
	if err != nil {
		logger.Warn().Err(err).Str("run_id", in.RunID).Msg("planning failed; nothing to execute")
		in.Plan = contractx.Plan{}
		in.PlanErr = err
		return in, nil
	}

	in.Plan = plan
	logger.Info().Str("run_id", in.RunID).Int("steps", len(plan.Steps)).Msg("plan created")
	return in, nil
}
