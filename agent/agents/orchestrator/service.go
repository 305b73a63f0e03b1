package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	plannernode "github.com/tanpawarit/agentloops/agent/nodes/planner"
	promptx "github.com/tanpawarit/agentloops/agent/prompt"
)

type (
	Report  = plannernode.Report
	Outcome = plannernode.Outcome
)

const (
	OutcomeCompleted        = plannernode.OutcomeCompleted
	OutcomeHalted           = plannernode.OutcomeHalted
	OutcomeNothingToExecute = plannernode.OutcomeNothingToExecute
	OutcomeFailed           = plannernode.OutcomeFailed
)

// Workers resolves role workers and reports which roles exist.
type Workers interface {
	plannernode.WorkerLookup
	Has(role contractx.WorkerRole) bool
}

// Orchestrator plans a goal into role-assigned steps and executes them in
// dependency order, pausing for approval after checkpoint roles.
type Orchestrator struct {
	provider contractx.Provider
	workers  Workers
	approver contractx.Approver

	systemPrompt string
	roles        []promptx.RoleInfo
	checkpoints  map[contractx.WorkerRole]bool

	graphRunner compose.Runnable[plannernode.GraphInput, plannernode.Report]

	newID  func() string
	logger zerolog.Logger
}

type Option func(*Orchestrator)

// WithCheckpointRoles replaces the roles that require approval.
func WithCheckpointRoles(roles ...contractx.WorkerRole) Option {
	return func(o *Orchestrator) {
		o.checkpoints = make(map[contractx.WorkerRole]bool, len(roles))
		for _, r := range roles {
			o.checkpoints[r] = true
		}
	}
}

// WithPlannerPrompt overrides the planner system prompt and the roles it lists.
func WithPlannerPrompt(prompt string, roles []promptx.RoleInfo) Option {
	return func(o *Orchestrator) {
		o.systemPrompt = strings.TrimSpace(prompt)
		o.roles = roles
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func New(p contractx.Provider, workers Workers, approver contractx.Approver, opts ...Option) (*Orchestrator, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is required", contractx.ErrValidation)
	}
	if workers == nil {
		return nil, fmt.Errorf("%w: workers are required", contractx.ErrValidation)
	}
	if approver == nil {
		return nil, fmt.Errorf("%w: approver is required", contractx.ErrValidation)
	}

	catalog, err := promptx.LoadRoleCatalog()
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		provider:     p,
		workers:      workers,
		approver:     approver,
		systemPrompt: promptx.LoadPromptSet().Planner,
		roles:        catalog.Planner,
		newID:        uuid.NewString,
		logger:       log.Logger,
	}
	WithCheckpointRoles(catalog.Checkpoints()...)(o)
	for _, opt := range opts {
		opt(o)
	}

	graphRunner, err := o.compileExecuteGoalGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Execute plans and runs one goal. A refused checkpoint is reported through
// Report.Outcome, not as an error. An empty plan yields
// OutcomeNothingToExecute. Invalid plans fail with ErrInvalidPlan. When a step
// fails the report is returned alongside the step error.
func (o *Orchestrator) Execute(ctx context.Context, goal string) (Report, error) {
	report, err := o.graphRunner.Invoke(ctx, plannernode.GraphInput{Goal: goal})
	if err != nil {
		return Report{}, err
	}
	if report.StepErr != nil {
		return report, report.StepErr
	}
	return report, nil
}

func (o *Orchestrator) isCheckpoint(role contractx.WorkerRole) bool {
	return o.checkpoints[role]
}

func (o *Orchestrator) planConversation(ctx context.Context, goal string) ([]contractx.Message, error) {
	return promptx.Render(ctx, o.systemPrompt, goal, map[string]any{
		"roles": promptx.DescribeRoles(o.roles),
	})
}
