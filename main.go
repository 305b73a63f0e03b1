package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	blackboardx "github.com/tanpawarit/agentloops/agent/agents/blackboard"
	chatx "github.com/tanpawarit/agentloops/agent/agents/chat"
	coderx "github.com/tanpawarit/agentloops/agent/agents/coder"
	extractorx "github.com/tanpawarit/agentloops/agent/agents/extractor"
	orchestratorx "github.com/tanpawarit/agentloops/agent/agents/orchestrator"
	routerx "github.com/tanpawarit/agentloops/agent/agents/router"
	approvalx "github.com/tanpawarit/agentloops/agent/approval"
	contractx "github.com/tanpawarit/agentloops/agent/contract"
	"github.com/tanpawarit/agentloops/agent/llm"
	providerx "github.com/tanpawarit/agentloops/agent/provider"
	toolx "github.com/tanpawarit/agentloops/agent/tool"
	workersx "github.com/tanpawarit/agentloops/agent/workers"
	configx "github.com/tanpawarit/agentloops/pkg/config"
	_ "github.com/tanpawarit/agentloops/pkg/logger/autoload"
)

type AppConfig struct {
	MaxTurns        int     `envconfig:"MAX_TURNS" default:"5"`
	MaxRetries      int     `envconfig:"MAX_RETRIES" default:"5"`
	MaxRecent       int     `envconfig:"MAX_RECENT" default:"10"`
	RouterThreshold float64 `envconfig:"ROUTER_THRESHOLD" default:"0.5"`
	Offline         bool    `envconfig:"OFFLINE" default:"false"`
}

const usage = `usage: agentloops [-env file] [-offline] [-yes] <command> [text...]

commands:
  chat     tool-calling assistant (interactive when no text is given)
  plan     plan a goal and execute it with approval checkpoints
  route    route a query to a specialist
  code     generate and verify CalculateAverage
  board    run the research/write/review blackboard pipeline
  extract  extract a calendar event from text
`

type app struct {
	cfg         AppConfig
	llmCfg      llm.Config
	offline     bool
	autoApprove bool
	in          *bufio.Reader
	out         io.Writer
}

func main() {
	offline := flag.Bool("offline", false, "use the deterministic offline provider")
	autoApprove := flag.Bool("yes", false, "approve every plan checkpoint without asking")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.String("env", "", "path to .env file")
	flag.Parse()

	a := &app{
		cfg:    *configx.MustNew[AppConfig](""),
		llmCfg: *configx.MustNew[llm.Config]("LLM"),
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
	a.offline = *offline || a.cfg.Offline || !a.llmCfg.Live()
	a.autoApprove = *autoApprove

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, flag.Args()); err != nil {
		log.Error().Err(err).Msg("agentloops failed")
		stop()
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}
	cmd, text := args[0], strings.TrimSpace(strings.Join(args[1:], " "))

	if a.offline {
		log.Info().Str("command", cmd).Msg("running with the offline provider")
	}

	switch cmd {
	case "chat":
		return a.chat(ctx, text)
	case "plan":
		return a.plan(ctx, orDefault(text, "Write a blog post about AI Agents"))
	case "route":
		return a.route(ctx, orDefault(text, "Is it going to rain in Tokyo?"))
	case "code":
		return a.code(ctx)
	case "board":
		return a.board(ctx, orDefault(text, "Write a short post about Python"))
	case "extract":
		return a.extract(ctx, orDefault(text, "Hey team, the Q4 Marketing Strategy review is next Tuesday, October 24th, 2025. Alice, Bob, and Charlie need to be there. This is super critical."))
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) provider(ctx context.Context, loop llm.Loop) (contractx.Provider, error) {
	if a.offline {
		return providerx.NewOffline(), nil
	}
	if err := a.llmCfg.Validate(); err != nil {
		return nil, err
	}
	policy := providerx.DefaultRetryPolicy()
	policy.MaxRetries = a.llmCfg.MaxRetries
	live, err := providerx.NewLive(ctx, a.llmCfg.OpenRouterFor(loop), providerx.WithRetryPolicy(policy))
	if err != nil {
		return nil, err
	}
	return live, nil
}

func (a *app) chat(ctx context.Context, text string) error {
	p, err := a.provider(ctx, llm.LoopChat)
	if err != nil {
		return err
	}
	agent, err := chatx.New(p, toolx.NewDefaultRegistry(),
		chatx.WithMaxTurns(a.cfg.MaxTurns),
		chatx.WithMaxRecent(a.cfg.MaxRecent),
	)
	if err != nil {
		return err
	}

	ask := func(q string) error {
		res, err := agent.Run(ctx, q)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Agent: %s\n", res.Answer)
		return nil
	}
	if text != "" {
		return ask(text)
	}

	fmt.Fprintln(a.out, "Type 'exit' or 'quit' to leave.")
	for {
		fmt.Fprint(a.out, "You: ")
		line, err := a.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return nil
		}
		if line != "" {
			if askErr := ask(line); askErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(a.out, "Agent error: %v\n", askErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (a *app) plan(ctx context.Context, goal string) error {
	p, err := a.provider(ctx, llm.LoopPlanner)
	if err != nil {
		return err
	}
	var approver contractx.Approver = approvalx.NewConsole(a.in, a.out)
	if a.autoApprove {
		approver = approvalx.Static(true)
	}
	o, err := orchestratorx.New(p, workersx.NewPlanTeam(), approver)
	if err != nil {
		return err
	}
	report, err := o.Execute(ctx, goal)
	if err != nil && report.Failed == nil {
		return err
	}

	fmt.Fprintf(a.out, "Goal: %s\nOutcome: %s\n", report.Goal, report.Outcome)
	if report.PlanErr != nil {
		fmt.Fprintf(a.out, "Planning failed: %v\n", report.PlanErr)
	}
	for _, id := range report.Executed() {
		r, _ := report.Results.Get(id)
		fmt.Fprintf(a.out, "Step %d: %s\n", id, r)
	}
	if report.Halted != nil {
		fmt.Fprintf(a.out, "Halted at step %d. Rejected result: %s\n", report.Halted.ID, report.Rejected)
	}
	return err
}

func (a *app) route(ctx context.Context, query string) error {
	p, err := a.provider(ctx, llm.LoopRouter)
	if err != nil {
		return err
	}
	r, err := routerx.New(p, workersx.NewRouterTeam(p), routerx.WithThreshold(a.cfg.RouterThreshold))
	if err != nil {
		return err
	}
	resp, err := r.Handle(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Route: %s (confidence %.2f)\n%s\n", resp.Route.Role, resp.Route.Confidence, resp.Answer)
	return nil
}

func (a *app) code(ctx context.Context) error {
	p, err := a.provider(ctx, llm.LoopCoder)
	if err != nil {
		return err
	}
	loop, err := coderx.New(p, coderx.WithMaxAttempts(a.cfg.MaxRetries))
	if err != nil {
		return err
	}
	res, err := loop.Run(ctx, coderx.DefaultTask())
	for i, o := range res.Outcomes {
		fmt.Fprintf(a.out, "Attempt %d: %s\n", i+1, o.Diagnostic)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Accepted after %d attempt(s):\n%s\n", res.Attempts, coderx.StripFences(res.Artifact.Source))
	return nil
}

func (a *app) board(ctx context.Context, goal string) error {
	pipeline, err := blackboardx.New()
	if err != nil {
		return err
	}
	b, err := pipeline.Run(ctx, goal)
	if err != nil {
		return err
	}
	for _, line := range b.Lines() {
		fmt.Fprintln(a.out, line)
	}
	fmt.Fprintf(a.out, "Feedback: %s\nFinal output:\n%s\n", b.ReviewFeedback, b.FinalOutput)
	return nil
}

func (a *app) extract(ctx context.Context, text string) error {
	p, err := a.provider(ctx, llm.LoopRouter)
	if err != nil {
		return err
	}
	e, err := extractorx.New(p)
	if err != nil {
		return err
	}
	ev, err := e.ExtractEvent(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Event: %s\nDate:  %s\nWho:   %s\nLevel: %s\nSummary: %s\n",
		ev.EventName, ev.Date, strings.Join(ev.Participants, ", "), ev.Priority, ev.Summary)
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
