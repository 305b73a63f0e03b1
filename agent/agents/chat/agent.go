package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	memoryx "github.com/tanpawarit/agentloops/agent/memory"
	toolx "github.com/tanpawarit/agentloops/agent/tool"
)

const (
	DefaultMaxTurns = 5
	loopWindow      = 4
)

// Result is the outcome of one user turn.
type Result struct {
	Answer    string
	Turns     int
	ToolCalls int
}

// Agent runs the tool-calling loop over a session conversation. An Agent is
// not safe for concurrent use.
type Agent struct {
	provider contractx.Provider
	tools    *toolx.Registry
	memory   memoryx.Manager
	system   string
	maxTurns int
	logger   zerolog.Logger

	conv []contractx.Message
}

type Option func(*Agent)

func WithMaxTurns(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

func WithMaxRecent(n int) Option {
	return func(a *Agent) { a.memory = memoryx.NewManager(n) }
}

func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.system = strings.TrimSpace(prompt) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

func New(p contractx.Provider, tools *toolx.Registry, opts ...Option) (*Agent, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is required", contractx.ErrValidation)
	}
	if tools == nil {
		return nil, fmt.Errorf("%w: tool registry is required", contractx.ErrValidation)
	}

	a := &Agent{
		provider: p,
		tools:    tools,
		memory:   memoryx.NewManager(memoryx.DefaultMaxRecent),
		maxTurns: DefaultMaxTurns,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Reset()
	return a, nil
}

// Run answers one user input. Reaching the turn budget without a final
// answer returns ErrBudgetExhausted; the partial conversation is kept.
func (a *Agent) Run(ctx context.Context, input string) (Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Result{}, fmt.Errorf("%w: input is empty", contractx.ErrValidation)
	}

	a.conv = append(a.conv, contractx.UserMessage(input))
	a.conv = a.memory.Trim(a.conv)

	runID := uuid.NewString()
	logger := a.logger.With().Str("run_id", runID).Logger()
	catalog := a.tools.Specs()

	var (
		res     Result
		sigs    []string
		lastErr error
	)
	for turn := 1; turn <= a.maxTurns; turn++ {
		res.Turns = turn

		decision, err := a.provider.Decide(ctx, contractx.CloneMessages(a.conv), catalog)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			lastErr = err
			logger.Warn().Err(err).Int("turn", turn).Msg("decide failed; turn consumed")
			continue
		}

		switch d := decision.(type) {
		case contractx.FinalAnswer:
			a.conv = append(a.conv, contractx.AssistantMessage(d.Text))
			res.Answer = d.Text
			logger.Info().Int("turn", turn).Int("tool_calls", res.ToolCalls).Msg("final answer")
			return res, nil

		case contractx.ToolInvocations:
			if len(d.Calls) == 0 {
				lastErr = fmt.Errorf("%w: tool invocation without calls", contractx.ErrProvider)
				logger.Warn().Int("turn", turn).Msg("empty tool invocation; turn consumed")
				continue
			}
			calls := withIDs(d.Calls)
			a.conv = append(a.conv, contractx.Message{Role: contractx.RoleAssistant, ToolCalls: calls})

			for _, call := range calls {
				result := a.tools.Invoke(ctx, call)
				a.conv = append(a.conv, contractx.ToolMessage(result))
				res.ToolCalls++

				logger.Debug().
					Int("turn", turn).
					Str("tool", call.ToolName).
					Bool("is_error", result.IsError).
					Msg("tool executed")

				sigs = append(sigs, toolCallSignature(call))
			}
			if detectLoop(sigs, loopWindow) {
				logger.Warn().Int("turn", turn).Msg("repeating tool call pattern detected")
			}

		default:
			lastErr = fmt.Errorf("%w: unexpected decision %T", contractx.ErrProvider, decision)
			logger.Warn().Int("turn", turn).Msg("unexpected decision; turn consumed")
		}
	}

	logger.Warn().Int("turns", a.maxTurns).Msg("turn budget exhausted")
	if lastErr != nil {
		return res, fmt.Errorf("%w: no final answer after %d turns (last error: %v)", contractx.ErrBudgetExhausted, a.maxTurns, lastErr)
	}
	return res, fmt.Errorf("%w: no final answer after %d turns", contractx.ErrBudgetExhausted, a.maxTurns)
}

// Messages returns a copy of the session conversation.
func (a *Agent) Messages() []contractx.Message {
	return contractx.CloneMessages(a.conv)
}

// Reset clears the conversation, keeping only the system prompt.
func (a *Agent) Reset() {
	a.conv = a.conv[:0]
	if a.system != "" {
		a.conv = append(a.conv, contractx.SystemMessage(a.system))
	}
}

func withIDs(calls []contractx.ToolCallRequest) []contractx.ToolCallRequest {
	out := make([]contractx.ToolCallRequest, len(calls))
	for i, c := range calls {
		out[i] = c.Clone()
		if strings.TrimSpace(out[i].ID) == "" {
			out[i].ID = "call_" + uuid.NewString()
		}
	}
	return out
}
