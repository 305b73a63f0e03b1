package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	providerx "github.com/tanpawarit/agentloops/agent/provider"
	workersx "github.com/tanpawarit/agentloops/agent/workers"
)

type countingWorker struct {
	calls []string
	reply string
}

func (w *countingWorker) Work(_ context.Context, task string, _ string) (string, error) {
	w.calls = append(w.calls, task)
	return w.reply, nil
}

func newTestRouter(t *testing.T, p contractx.Provider, team Workers) *Router {
	t.Helper()
	r, err := New(p, team, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return r
}

func routeStep(role contractx.WorkerRole, confidence float64) providerx.Step {
	return providerx.Value(contractx.Route{Role: role, Reasoning: "test", Confidence: confidence})
}

func TestHandleThresholdBoundary(t *testing.T) {
	t.Parallel()

	weather := &countingWorker{reply: "sunny"}
	team := workersx.NewRegistry().
		MustRegister(contractx.RoleWeather, weather).
		MustRegister(contractx.RoleGeneral, &countingWorker{})

	r := newTestRouter(t, providerx.NewScripted(
		routeStep(contractx.RoleWeather, 0.5),
		routeStep(contractx.RoleWeather, 0.49),
	), team)

	resp, err := r.Handle(context.Background(), "Is it raining?")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Abstained || resp.Answer != "sunny" || len(weather.calls) != 1 {
		t.Fatalf("confidence 0.5 must dispatch: %+v", resp)
	}

	resp, err = r.Handle(context.Background(), "maybe")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !resp.Abstained || resp.Answer != "I'm not sure if I should use weather_agent. Could you clarify?" {
		t.Fatalf("confidence 0.49 must abstain: %+v", resp)
	}
	if len(weather.calls) != 1 {
		t.Fatalf("abstention must not dispatch")
	}
}

func TestRouteFallbacks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		step providerx.Step
	}{
		{"provider error", providerx.Fail(fmt.Errorf("%w: down", contractx.ErrProvider))},
		{"unknown role", routeStep("astrologer", 0.9)},
		{"confidence out of range", routeStep(contractx.RoleWeather, 1.7)},
		{"malformed output", providerx.Value(map[string]any{"confidence": "very"})},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := newTestRouter(t, providerx.NewScripted(tc.step), workersx.NewRouterTeam(providerx.NewOffline()))
			route := r.Route(context.Background(), "hello there")
			if route.Role != FallbackRole || route.Confidence != 0 {
				t.Fatalf("expected fallback, got %+v", route)
			}
		})
	}
}

func TestFallbackAbstains(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, providerx.NewScripted(providerx.Fail(errors.New("boom"))), workersx.NewRouterTeam(providerx.NewOffline()))
	resp, err := r.Handle(context.Background(), "hi")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !resp.Abstained || !strings.Contains(resp.Answer, "general_agent") {
		t.Fatalf("fallback route must abstain: %+v", resp)
	}
}

func TestOfflineRouting(t *testing.T) {
	t.Parallel()

	p := providerx.NewOffline()
	r := newTestRouter(t, p, workersx.NewRouterTeam(p))

	route := r.Route(context.Background(), "Is it raining?")
	if route.Role != contractx.RoleWeather || route.Confidence != 0.98 {
		t.Fatalf("unexpected route: %+v", route)
	}

	resp, err := r.Handle(context.Background(), "Write some code to sort a list")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Route.Role != contractx.RoleCoding || !strings.Contains(resp.Answer, "```go") {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRoutePromptListsRoles(t *testing.T) {
	t.Parallel()

	p := providerx.NewScripted(routeStep(contractx.RoleGeneral, 0.8))
	r := newTestRouter(t, p, workersx.NewRouterTeam(p))
	r.Route(context.Background(), "Tell me a joke")

	calls := p.Recorded()
	if len(calls) != 1 || calls[0].Schema != contractx.SchemaRoute {
		t.Fatalf("expected one route extraction, got %+v", calls)
	}
	system := calls[0].Conv[0].Content
	for _, role := range []string{"coding_agent", "weather_agent", "general_agent"} {
		if !strings.Contains(system, role) {
			t.Fatalf("router prompt missing %s: %s", role, system)
		}
	}
}

func TestNewRejectsBadThreshold(t *testing.T) {
	t.Parallel()

	_, err := New(providerx.NewOffline(), workersx.NewRegistry(), WithThreshold(1.5))
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
