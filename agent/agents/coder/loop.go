package coder

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	promptx "github.com/tanpawarit/agentloops/agent/prompt"
)

const DefaultMaxAttempts = 5

// Result of a converged loop. Outcomes holds one entry per verified attempt.
type Result struct {
	Artifact contractx.CodeArtifact
	Attempts int
	Outcomes []contractx.VerificationOutcome
}

// Loop generates artifacts, verifies them and feeds failures back until one
// passes or the attempt budget is spent.
type Loop struct {
	provider    contractx.Provider
	verifier    *Verifier
	system      string
	maxAttempts int
	logger      zerolog.Logger
}

type Option func(*Loop)

func WithMaxAttempts(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithVerifier(v *Verifier) Option {
	return func(l *Loop) { l.verifier = v }
}

func WithSystemPrompt(prompt string) Option {
	return func(l *Loop) { l.system = strings.TrimSpace(prompt) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

func New(p contractx.Provider, opts ...Option) (*Loop, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is required", contractx.ErrValidation)
	}
	l := &Loop{
		provider:    p,
		verifier:    NewVerifier(),
		system:      promptx.LoadPromptSet().Coder,
		maxAttempts: DefaultMaxAttempts,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run iterates generate, verify and repair. A provider failure consumes an
// attempt. Exhausting the budget returns ErrBudgetExhausted along with the
// outcomes collected so far.
func (l *Loop) Run(ctx context.Context, task Task) (Result, error) {
	if strings.TrimSpace(task.Description) == "" || strings.TrimSpace(task.EntryPoint) == "" {
		return Result{}, fmt.Errorf("%w: task needs a description and an entry point", contractx.ErrValidation)
	}

	logger := l.logger.With().Str("run_id", uuid.NewString()).Logger()
	conv := []contractx.Message{
		contractx.SystemMessage(l.system),
		contractx.UserMessage(task.Description),
	}

	var res Result
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		res.Attempts = attempt

		source, err := l.generate(ctx, conv)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			logger.Warn().Err(err).Int("attempt", attempt).Msg("generation failed; attempt consumed")
			continue
		}

		artifact := contractx.CodeArtifact{Source: source, Iteration: attempt}
		outcome := l.verifier.Verify(ctx, artifact.Source, task)
		res.Outcomes = append(res.Outcomes, outcome)

		if outcome.Passed {
			res.Artifact = artifact
			logger.Info().Int("attempt", attempt).Msg("artifact accepted")
			return res, nil
		}

		logger.Debug().
			Int("attempt", attempt).
			Str("kind", string(outcome.Kind)).
			Str("diagnostic", outcome.Diagnostic).
			Msg("artifact rejected")

		conv = append(conv,
			contractx.AssistantMessage(artifact.Source),
			contractx.UserMessage(fmt.Sprintf("The code failed with this error:\n%s\nPlease fix it.", outcome.Diagnostic)),
		)
	}

	logger.Warn().Int("attempts", l.maxAttempts).Msg("retry budget exhausted")
	return res, fmt.Errorf("%w: no passing artifact after %d attempts", contractx.ErrBudgetExhausted, l.maxAttempts)
}

func (l *Loop) generate(ctx context.Context, conv []contractx.Message) (string, error) {
	d, err := l.provider.Decide(ctx, contractx.CloneMessages(conv), nil)
	if err != nil {
		return "", err
	}
	switch v := d.(type) {
	case contractx.FinalAnswer:
		if strings.TrimSpace(v.Text) == "" {
			return "", fmt.Errorf("%w: empty artifact", contractx.ErrProvider)
		}
		return v.Text, nil
	case contractx.ToolInvocations:
		return "", fmt.Errorf("%w: coder requested tools", contractx.ErrProvider)
	default:
		return "", fmt.Errorf("%w: unexpected decision %T", contractx.ErrProvider, d)
	}
}
