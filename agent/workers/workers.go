package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

const contextPreview = 30

func Researcher(ctx context.Context, task string, _ string) (string, error) {
	log.Ctx(ctx).Debug().Str("role", string(contractx.RoleResearcher)).Str("task", task).Msg("researching")
	return fmt.Sprintf("Found 3 articles about '%s'. Key facts: 1. AI is growing. 2. Go is popular. 3. Agents are the future.", task), nil
}

func Writer(ctx context.Context, task string, prior string) (string, error) {
	log.Ctx(ctx).Debug().Str("role", string(contractx.RoleWriter)).Str("task", task).Msg("drafting")
	if strings.TrimSpace(prior) == "" {
		return fmt.Sprintf("DRAFT: %s (no research available).", task), nil
	}
	return fmt.Sprintf("DRAFT: Based on the research (%s...), here is a summary article about the topic.", preview(prior)), nil
}

func Reviewer(ctx context.Context, task string, prior string) (string, error) {
	log.Ctx(ctx).Debug().Str("role", string(contractx.RoleReviewer)).Str("task", task).Msg("reviewing")
	if !strings.Contains(prior, "DRAFT") {
		return "REJECTED: There is no draft to review.", nil
	}
	return "APPROVED: The draft looks good. No hallucinations found.", nil
}

func Coding(_ context.Context, task string, _ string) (string, error) {
	return fmt.Sprintf("Here is the Go code for: %s\n```go\nfmt.Println(\"Hello World\")\n```", task), nil
}

func Weather(_ context.Context, _ string, _ string) (string, error) {
	return "It is currently 22°C and sunny.", nil
}

// General answers free-form queries by asking p for a textual answer.
func General(p contractx.Provider) contractx.Worker {
	return contractx.WorkerFunc(func(ctx context.Context, task string, prior string) (string, error) {
		conv := []contractx.Message{
			contractx.SystemMessage("You are a helpful general-purpose assistant. Answer briefly."),
		}
		if strings.TrimSpace(prior) != "" {
			conv = append(conv, contractx.UserMessage("Context:\n"+prior))
		}
		conv = append(conv, contractx.UserMessage(task))

		d, err := p.Decide(ctx, conv, nil)
		if err != nil {
			return "", err
		}
		switch v := d.(type) {
		case contractx.FinalAnswer:
			return v.Text, nil
		case contractx.ToolInvocations:
			return "", fmt.Errorf("%w: general worker cannot call tools", contractx.ErrProvider)
		default:
			return "", fmt.Errorf("%w: unexpected decision %T", contractx.ErrProvider, d)
		}
	})
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= contextPreview {
		return s
	}
	return string(r[:contextPreview])
}
