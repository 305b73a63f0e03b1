package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	providerx "github.com/tanpawarit/agentloops/agent/provider"
)

const reminder = `
    Hey team, just a reminder that we have the Q4 Marketing Strategy review
    coming up next Tuesday, October 24th, 2025.
    Alice, Bob, and Charlie need to be there.
    This is super critical, we can't miss our targets.
`

func newTestExtractor(t *testing.T, p contractx.Provider) *Extractor {
	t.Helper()
	e, err := New(p, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return e
}

func TestExtractEventOffline(t *testing.T) {
	t.Parallel()

	ev, err := newTestExtractor(t, providerx.NewOffline()).ExtractEvent(context.Background(), reminder)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ev.Date != "2025-10-24" || ev.Priority != PriorityHigh {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if strings.Join(ev.Participants, ",") != "Alice,Bob,Charlie" {
		t.Fatalf("unexpected participants: %v", ev.Participants)
	}
	if !strings.Contains(ev.EventName, "Marketing Strategy") {
		t.Fatalf("unexpected event name: %q", ev.EventName)
	}
}

func TestExtractEventValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ev   CalendarEvent
	}{
		{"bad priority", CalendarEvent{EventName: "Sync", Date: "2025-01-02", Priority: "Urgent"}},
		{"bad date", CalendarEvent{EventName: "Sync", Date: "next Tuesday", Priority: PriorityLow}},
		{"missing name", CalendarEvent{Date: "2025-01-02", Priority: PriorityLow}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newTestExtractor(t, providerx.NewScripted(providerx.Value(tc.ev)))
			_, err := e.ExtractEvent(context.Background(), "something")
			if !errors.Is(err, contractx.ErrSchemaViolation) {
				t.Fatalf("expected schema violation, got %v", err)
			}
		})
	}
}

func TestExtractEventUsesSchemaAndPrompt(t *testing.T) {
	t.Parallel()

	p := providerx.NewScripted(providerx.Value(CalendarEvent{
		EventName: "Launch", Date: "2025-03-01", Priority: PriorityMedium,
	}))
	ev, err := newTestExtractor(t, p).ExtractEvent(context.Background(), "Launch on March 1st")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ev.Participants == nil {
		t.Fatalf("participants must never be nil")
	}

	call := p.Recorded()[0]
	if call.Schema != contractx.SchemaCalendarEvent {
		t.Fatalf("unexpected schema %q", call.Schema)
	}
	if call.Conv[0].Role != contractx.RoleSystem || !strings.Contains(call.Conv[0].Content, "calendar event") {
		t.Fatalf("unexpected system prompt: %+v", call.Conv[0])
	}
	if call.Conv[1].Content != "Launch on March 1st" {
		t.Fatalf("unexpected user message: %+v", call.Conv[1])
	}
}

func TestExtractEventProviderFailure(t *testing.T) {
	t.Parallel()

	e := newTestExtractor(t, providerx.NewScripted(providerx.Fail(contractx.ErrProvider)))
	if _, err := e.ExtractEvent(context.Background(), "hi"); !errors.Is(err, contractx.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if _, err := e.ExtractEvent(context.Background(), " "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
