package plannernode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

func OrderSteps(in *GraphState, known func(contractx.WorkerRole) bool) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	order, err := ResolveOrder(in.Plan, known)
	if err != nil {
		return nil, err
	}
	in.Order = order
	return in, nil
}

// ResolveOrder validates the plan and returns its steps in an order where
// every step follows its dependencies. Among ready steps the declaration order
// is kept, so an already well-ordered plan is returned unchanged.
func ResolveOrder(plan contractx.Plan, known func(contractx.WorkerRole) bool) ([]contractx.Step, error) {
	byID := make(map[int]int, len(plan.Steps))
	for i, s := range plan.Steps {
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate step id %d", contractx.ErrInvalidPlan, s.ID)
		}
		byID[s.ID] = i
	}

	for _, s := range plan.Steps {
		if strings.TrimSpace(s.Description) == "" {
			return nil, fmt.Errorf("%w: step %d has no description", contractx.ErrInvalidPlan, s.ID)
		}
		if known != nil && !known(s.Role) {
			return nil, fmt.Errorf("%w: step %d has unknown role %q", contractx.ErrInvalidPlan, s.ID, s.Role)
		}
		for _, dep := range s.Dependencies {
			if dep == s.ID {
				return nil, fmt.Errorf("%w: step %d depends on itself", contractx.ErrInvalidPlan, s.ID)
			}
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("%w: step %d depends on missing step %d", contractx.ErrInvalidPlan, s.ID, dep)
			}
		}
	}

	scheduled := make(map[int]bool, len(plan.Steps))
	order := make([]contractx.Step, 0, len(plan.Steps))
	for len(order) < len(plan.Steps) {
		progressed := false
		for _, s := range plan.Steps {
			if scheduled[s.ID] || !depsScheduled(s, scheduled) {
				continue
			}
			scheduled[s.ID] = true
			order = append(order, s)
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("%w: dependency cycle among steps %v", contractx.ErrInvalidPlan, pendingIDs(plan, scheduled))
		}
	}
	return order, nil
}

func depsScheduled(s contractx.Step, scheduled map[int]bool) bool {
	for _, dep := range s.Dependencies {
		if !scheduled[dep] {
			return false
		}
	}
	return true
}

func pendingIDs(plan contractx.Plan, scheduled map[int]bool) []int {
	var ids []int
	for _, s := range plan.Steps {
		if !scheduled[s.ID] {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
