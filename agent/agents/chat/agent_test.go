package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	providerx "github.com/tanpawarit/agentloops/agent/provider"
	toolx "github.com/tanpawarit/agentloops/agent/tool"
)

func newTestAgent(t *testing.T, p contractx.Provider, opts ...Option) *Agent {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop()), WithSystemPrompt("you are helpful")}, opts...)
	a, err := New(p, toolx.NewDefaultRegistry(), opts...)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func weatherCall(id, location string) contractx.ToolCallRequest {
	return contractx.ToolCallRequest{ID: id, ToolName: toolx.ToolGetWeather, Arguments: map[string]any{"location": location}}
}

func TestRunToolThenAnswer(t *testing.T) {
	t.Parallel()

	p := providerx.NewScripted(
		providerx.Invoke(weatherCall("call_1", "San Francisco, CA"), weatherCall("call_2", "Tokyo, Japan")),
		providerx.Answer("SF is 72F, Tokyo is 10C."),
	)
	a := newTestAgent(t, p)

	res, err := a.Run(context.Background(), "What's the weather like in San Francisco and Tokyo?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Answer != "SF is 72F, Tokyo is 10C." || res.Turns != 2 || res.ToolCalls != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	msgs := a.Messages()
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, string(m.Role))
	}
	if got := strings.Join(roles, ","); got != "system,user,assistant,tool,tool,assistant" {
		t.Fatalf("unexpected conversation shape: %s", got)
	}
	if msgs[3].ToolCallID != "call_1" || msgs[4].ToolCallID != "call_2" {
		t.Fatalf("tool results out of request order: %+v", msgs[3:5])
	}

	second := p.Recorded()[1].Conv
	if last := second[len(second)-1]; last.Role != contractx.RoleTool || !strings.Contains(last.Content, "Tokyo") {
		t.Fatalf("tool result not fed back: %+v", last)
	}
}

func TestRunToolErrorsFedBack(t *testing.T) {
	t.Parallel()

	p := providerx.NewScripted(
		providerx.Invoke(contractx.ToolCallRequest{ID: "c1", ToolName: "launch_rocket"}),
		providerx.Invoke(contractx.ToolCallRequest{ID: "c2", ToolName: toolx.ToolGetWeather, Arguments: map[string]any{}}),
		providerx.Answer("sorry"),
	)
	a := newTestAgent(t, p)

	if _, err := a.Run(context.Background(), "do it"); err != nil {
		t.Fatalf("run: %v", err)
	}
	rec := p.Recorded()
	if c := lastContent(rec[1].Conv); !strings.HasPrefix(c, "ToolNotFound:") {
		t.Fatalf("expected ToolNotFound fed back, got %q", c)
	}
	if c := lastContent(rec[2].Conv); !strings.HasPrefix(c, "ToolArgumentError:") {
		t.Fatalf("expected ToolArgumentError fed back, got %q", c)
	}
}

func TestRunBudgetExhausted(t *testing.T) {
	t.Parallel()

	steps := make([]providerx.Step, 0, 10)
	for i := 0; i < 10; i++ {
		steps = append(steps, providerx.Invoke(weatherCall(fmt.Sprintf("c%d", i), "Paris")))
	}
	p := providerx.NewScripted(steps...)
	a := newTestAgent(t, p)

	res, err := a.Run(context.Background(), "loop forever")
	if !errors.Is(err, contractx.ErrBudgetExhausted) {
		t.Fatalf("expected budget exhausted, got %v", err)
	}
	if res.Answer != "" {
		t.Fatalf("partial answer must not be returned: %q", res.Answer)
	}
	if p.Calls() != DefaultMaxTurns || res.Turns != DefaultMaxTurns {
		t.Fatalf("expected %d decide calls, got %d (turns=%d)", DefaultMaxTurns, p.Calls(), res.Turns)
	}
}

func TestRunProviderFailureConsumesTurn(t *testing.T) {
	t.Parallel()

	p := providerx.NewScripted(
		providerx.Fail(fmt.Errorf("%w: timeout", contractx.ErrProvider)),
		providerx.Answer("recovered"),
	)
	a := newTestAgent(t, p, WithMaxTurns(2))

	res, err := a.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Answer != "recovered" || res.Turns != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunProviderAlwaysFailing(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, providerx.NewScripted(), WithMaxTurns(3))
	_, err := a.Run(context.Background(), "hi")
	if !errors.Is(err, contractx.ErrBudgetExhausted) {
		t.Fatalf("expected budget exhausted, got %v", err)
	}
}

func TestRunTrimsSessionMemory(t *testing.T) {
	t.Parallel()

	steps := make([]providerx.Step, 0, 8)
	for i := 0; i < 8; i++ {
		steps = append(steps, providerx.Answer(fmt.Sprintf("answer %d", i)))
	}
	p := providerx.NewScripted(steps...)
	a := newTestAgent(t, p, WithMaxRecent(3))

	for i := 0; i < 8; i++ {
		if _, err := a.Run(context.Background(), fmt.Sprintf("question %d", i)); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	last := p.Recorded()[7].Conv
	if len(last) != 4 {
		t.Fatalf("expected trimmed conversation of 4 messages, got %d", len(last))
	}
	if last[0].Role != contractx.RoleSystem || last[0].Content != "you are helpful" {
		t.Fatalf("system prompt evicted: %+v", last[0])
	}
	if last[3].Content != "question 7" {
		t.Fatalf("latest input missing: %+v", last[3])
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, providerx.NewScripted())
	if _, err := a.Run(context.Background(), "   "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResetKeepsSystemPrompt(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, providerx.NewScripted(providerx.Answer("ok")))
	if _, err := a.Run(context.Background(), "hi"); err != nil {
		t.Fatalf("run: %v", err)
	}
	a.Reset()
	msgs := a.Messages()
	if len(msgs) != 1 || msgs[0].Role != contractx.RoleSystem {
		t.Fatalf("unexpected conversation after reset: %+v", msgs)
	}
}

func TestDetectLoop(t *testing.T) {
	t.Parallel()

	a := toolCallSignature(weatherCall("1", "Paris"))
	b := toolCallSignature(weatherCall("2", "Tokyo"))
	if a == b {
		t.Fatalf("different arguments must differ in signature")
	}
	if !detectLoop([]string{a, a, a, a}, 4) {
		t.Fatalf("expected repeat of one call detected")
	}
	if !detectLoop([]string{b, a, b, a, b}, 4) {
		t.Fatalf("expected alternating pattern detected")
	}
	if detectLoop([]string{a, b, b, a}, 4) {
		t.Fatalf("unexpected loop detection")
	}
	if detectLoop([]string{a, a}, 4) {
		t.Fatalf("window not filled yet")
	}
}

func lastContent(conv []contractx.Message) string {
	if len(conv) == 0 {
		return ""
	}
	return conv[len(conv)-1].Content
}
