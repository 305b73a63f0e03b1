package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	plannernode "github.com/tanpawarit/agentloops/agent/nodes/planner"
)

func (o *Orchestrator) compileExecuteGoalGraph(
	ctx context.Context,
) (compose.Runnable[plannernode.GraphInput, plannernode.Report], error) {
	graph := compose.NewGraph[plannernode.GraphInput, plannernode.Report]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in plannernode.GraphInput) (*plannernode.GraphState, error) {
			return plannernode.ValidateRequest(in, o.newID)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("create_plan",
		compose.InvokableLambda(func(ctx context.Context, in *plannernode.GraphState) (*plannernode.GraphState, error) {
			conv, err := o.planConversation(ctx, in.Goal)
			if err != nil {
				return nil, err
			}
			return plannernode.CreatePlan(ctx, in, o.provider, conv, o.logger)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node create_plan: %w", err)
	}

	if err := graph.AddLambdaNode("order_steps",
		compose.InvokableLambda(func(ctx context.Context, in *plannernode.GraphState) (*plannernode.GraphState, error) {
			return plannernode.OrderSteps(in, o.workers.Has)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node order_steps: %w", err)
	}

	if err := graph.AddLambdaNode("execute_steps",
		compose.InvokableLambda(func(ctx context.Context, in *plannernode.GraphState) (*plannernode.GraphState, error) {
			return plannernode.ExecuteSteps(ctx, in, o.workers, o.approver, o.isCheckpoint, o.logger)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute_steps: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_report",
		compose.InvokableLambda(func(ctx context.Context, in *plannernode.GraphState) (plannernode.Report, error) {
			return plannernode.FinalizeReport(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_report: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *plannernode.GraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
			}
			if in.Plan.Empty() {
				return "finalize_report", nil
			}
			return "order_steps", nil
		},
		map[string]bool{
			"order_steps":     true,
			"finalize_report": true,
		},
	)
	if err := graph.AddBranch("create_plan", branch); err != nil {
		return nil, fmt.Errorf("add branch create_plan: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "create_plan"},
		{"order_steps", "execute_steps"},
		{"execute_steps", "finalize_report"},
		{"finalize_report", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.execute_goal"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
