package plannernode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

func ValidateRequest(in GraphInput, newID func() string) (*GraphState, error) {
	goal := strings.TrimSpace(in.Goal)
	if goal == "" {
		return nil, fmt.Errorf("%w: goal is empty", contractx.ErrValidation)
	}
	return &GraphState{
		RunID:   newID(),
		Goal:    goal,
		Results: contractx.NewContextStore(),
	}, nil
}
