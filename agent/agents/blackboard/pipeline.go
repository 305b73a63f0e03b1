package blackboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

const (
	feedbackApproved = "Approved"
	feedbackRejected = "Rejected: Missing key keywords."
	generalNote      = "General knowledge about the topic."
)

var topicNotes = []struct {
	keywords []string
	note     string
}{
	{[]string{"golang", " go "}, "Go is a statically typed, compiled programming language."},
	{[]string{"python"}, "Python is a high-level programming language."},
	{[]string{"rust"}, "Rust is a systems programming language focused on safety."},
}

// Pipeline runs research, write and review over a Board.
type Pipeline struct {
	now    func() time.Time
	logger zerolog.Logger
	runner compose.Runnable[Board, Board]
}

type Option func(*Pipeline)

// WithClock sets the time source used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{now: time.Now, logger: log.Logger}
	for _, opt := range opts {
		opt(p)
	}
	runner, err := p.compile(context.Background())
	if err != nil {
		return nil, err
	}
	p.runner = runner
	return p, nil
}

// Run seeds a board with goal and passes it through every stage.
func (p *Pipeline) Run(ctx context.Context, goal string) (Board, error) {
	if strings.TrimSpace(goal) == "" {
		return Board{}, fmt.Errorf("%w: goal is empty", contractx.ErrValidation)
	}
	b, err := p.runner.Invoke(ctx, NewBoard(goal))
	if err != nil {
		return Board{}, err
	}
	p.logger.Info().
		Bool("approved", b.Approved()).
		Int("log_entries", len(b.Log)).
		Msg("blackboard run finished")
	return b, nil
}

func (p *Pipeline) compile(ctx context.Context) (compose.Runnable[Board, Board], error) {
	graph := compose.NewGraph[Board, Board]()

	stages := []struct {
		name  string
		stage func(context.Context, Board) (Board, error)
	}{
		{"research", p.Research},
		{"write", p.Write},
		{"review", p.Review},
	}
	for _, s := range stages {
		if err := graph.AddLambdaNode(s.name, compose.InvokableLambda(s.stage)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", s.name, err)
		}
	}

	edges := [][2]string{
		{compose.START, "research"},
		{"research", "write"},
		{"write", "review"},
		{"review", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("blackboard.pipeline"))
	if err != nil {
		return nil, fmt.Errorf("compile blackboard graph: %w", err)
	}
	return runner, nil
}

func (p *Pipeline) Research(_ context.Context, b Board) (Board, error) {
	b = b.withLog(p.now(), "Researcher: Starting research...")

	note := generalNote
	goal := " " + strings.ToLower(b.Goal) + " "
	for _, t := range topicNotes {
		if containsAny(goal, t.keywords...) {
			note = t.note
			break
		}
	}

	b = b.withNote(note)
	return b.withLog(p.now(), "Researcher: Added note -> '%s'", note), nil
}

func (p *Pipeline) Write(_ context.Context, b Board) (Board, error) {
	b = b.withLog(p.now(), "Writer: Drafting content...")
	if len(b.ResearchNotes) == 0 {
		return b.withLog(p.now(), "Writer: No research found! Cannot write."), nil
	}

	b = b.clone()
	b.Draft = fmt.Sprintf("Title: %s\nBody: %s\n(Drafted by AI)", b.Goal, strings.Join(b.ResearchNotes, " "))
	return b.withLog(p.now(), "Writer: Draft created."), nil
}

func (p *Pipeline) Review(_ context.Context, b Board) (Board, error) {
	b = b.withLog(p.now(), "Reviewer: Reviewing draft...")
	if b.Draft == "" {
		return b.withLog(p.now(), "Reviewer: No draft to review!"), nil
	}

	b = b.clone()
	if strings.Contains(b.Draft, "programming language") {
		b.ReviewFeedback = feedbackApproved
		b.FinalOutput = b.Draft + "\n[VERIFIED]"
	} else {
		b.ReviewFeedback = feedbackRejected
	}
	return b.withLog(p.now(), "Reviewer: Feedback -> %s", b.ReviewFeedback), nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
