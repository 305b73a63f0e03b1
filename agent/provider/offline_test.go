package provider

import (
	"context"
	"testing"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	toolx "github.com/tanpawarit/agentloops/agent/tool"
)

func TestOfflineWeatherToolCalls(t *testing.T) {
	t.Parallel()

	p := NewOffline()
	catalog := toolx.NewDefaultRegistry().Specs()
	d, err := p.Decide(context.Background(), []contractx.Message{
		contractx.UserMessage("What's the weather like in San Francisco and Tokyo?"),
	}, catalog)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}

	inv, ok := d.(contractx.ToolInvocations)
	if !ok || len(inv.Calls) != 2 {
		t.Fatalf("unexpected decision: %#v", d)
	}
	if inv.Calls[0].Arguments["location"] != "San Francisco, CA" || inv.Calls[1].Arguments["location"] != "Tokyo, Japan" {
		t.Fatalf("unexpected calls: %+v", inv.Calls)
	}
}

func TestOfflineSummarizesToolResults(t *testing.T) {
	t.Parallel()

	conv := []contractx.Message{
		contractx.UserMessage("weather in Tokyo?"),
		{Role: contractx.RoleAssistant, ToolCalls: []contractx.ToolCallRequest{{ID: "call_1", ToolName: "get_weather"}}},
		contractx.ToolMessage(contractx.ToolResult{ToolCallID: "call_1", ToolName: "get_weather", Content: `{"location":"Tokyo","temperature":"10","unit":"celsius"}`}),
	}
	d, err := NewOffline().Decide(context.Background(), conv, toolx.NewDefaultRegistry().Specs())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	fa, ok := d.(contractx.FinalAnswer)
	if !ok || fa.Text != "The current weather in Tokyo is 10°C." {
		t.Fatalf("unexpected answer: %#v", d)
	}
}

func TestOfflineRouteRain(t *testing.T) {
	t.Parallel()

	route, err := contractx.Extract[contractx.Route](context.Background(), NewOffline(),
		[]contractx.Message{contractx.UserMessage("Is it raining?")},
		contractx.OutputSchema{Name: contractx.SchemaRoute})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if route.Role != contractx.RoleWeather || route.Confidence != 0.98 {
		t.Fatalf("unexpected route: %+v", route)
	}
}

func TestOfflinePlan(t *testing.T) {
	t.Parallel()

	plan, err := contractx.Extract[contractx.Plan](context.Background(), NewOffline(),
		[]contractx.Message{contractx.UserMessage("multi-agent systems")},
		contractx.OutputSchema{Name: contractx.SchemaPlan})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(plan.Steps) != 3 || plan.Steps[2].Role != contractx.RoleReviewer || plan.Steps[2].Dependencies[0] != 2 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestOfflineCalendarEvent(t *testing.T) {
	t.Parallel()

	text := `Hey team, just a reminder that we have the Q4 Marketing Strategy review
	coming up next Tuesday, October 24th, 2025.
	Alice, Bob, and Charlie need to be there.
	This is super critical, we can't miss our targets.`

	ev, err := contractx.Extract[calendarEventValue](context.Background(), NewOffline(),
		[]contractx.Message{contractx.UserMessage(text)},
		contractx.OutputSchema{Name: contractx.SchemaCalendarEvent})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ev.Date != "2025-10-24" || ev.Priority != "High" || ev.EventName != "Q4 Marketing Strategy review" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(ev.Participants) != 3 || ev.Participants[0] != "Alice" || ev.Participants[2] != "Charlie" {
		t.Fatalf("unexpected participants: %v", ev.Participants)
	}
}

func TestOfflineCoderAttemptsProgress(t *testing.T) {
	t.Parallel()

	conv := []contractx.Message{contractx.UserMessage("Write CalculateAverage that returns the average")}
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		d, err := NewOffline().Decide(context.Background(), conv, nil)
		if err != nil {
			t.Fatalf("decide: %v", err)
		}
		text := d.(contractx.FinalAnswer).Text
		if seen[text] {
			t.Fatalf("attempt %d repeated a previous artifact", i+1)
		}
		seen[text] = true
		conv = append(conv, contractx.AssistantMessage(text), contractx.UserMessage("fix it"))
	}
}
