package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

func TestRegistryInvokeSuccess(t *testing.T) {
	t.Parallel()

	r := NewDefaultRegistry()
	res := r.Invoke(context.Background(), contractx.ToolCallRequest{
		ID:        "call_1",
		ToolName:  ToolGetWeather,
		Arguments: map[string]any{"location": "Tokyo, Japan"},
	})

	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if res.ToolCallID != "call_1" || res.ToolName != ToolGetWeather {
		t.Fatalf("result not correlated: %+v", res)
	}
	if !strings.Contains(res.Content, `"temperature":"10"`) {
		t.Fatalf("unexpected weather content: %s", res.Content)
	}
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	t.Parallel()

	r := NewDefaultRegistry()
	res := r.Invoke(context.Background(), contractx.ToolCallRequest{ID: "c", ToolName: "launch_rocket"})

	if !res.IsError {
		t.Fatalf("expected error result")
	}
	if !strings.HasPrefix(res.Content, "ToolNotFound:") {
		t.Fatalf("unexpected content: %s", res.Content)
	}
}

func TestRegistryInvokeArgumentErrors(t *testing.T) {
	t.Parallel()

	r := NewDefaultRegistry()
	cases := []struct {
		name string
		args map[string]any
	}{
		{name: "missing required", args: map[string]any{}},
		{name: "wrong type", args: map[string]any{"location": 42.0}},
		{name: "bad enum", args: map[string]any{"location": "Paris", "unit": "kelvin"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := r.Invoke(context.Background(), contractx.ToolCallRequest{ID: "c", ToolName: ToolGetWeather, Arguments: tc.args})
			if !res.IsError || !strings.HasPrefix(res.Content, "ToolArgumentError:") {
				t.Fatalf("unexpected result: %+v", res)
			}
		})
	}
}

func TestRegistryInvokeHandlerError(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(contractx.ToolSpec{Name: "boom"}, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("exploded")
	})

	res := r.Invoke(context.Background(), contractx.ToolCallRequest{ID: "c", ToolName: "boom"})
	if !res.IsError || res.Content != "ToolError: exploded" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRegistryRegisterRejectsInvalid(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	noop := func(context.Context, map[string]any) (any, error) { return "ok", nil }

	if err := r.Register(contractx.ToolSpec{Name: " "}, noop); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if err := r.Register(contractx.ToolSpec{Name: "x"}, nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected validation error for nil handler, got %v", err)
	}
	bad := contractx.ToolSpec{Name: "x", Params: map[string]contractx.Param{"a": {Type: "date"}}}
	if err := r.Register(bad, noop); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected validation error for param type, got %v", err)
	}
	if err := r.Register(contractx.ToolSpec{Name: "x"}, noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(contractx.ToolSpec{Name: "x"}, noop); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestRegistryCatalog(t *testing.T) {
	t.Parallel()

	infos := NewDefaultRegistry().Catalog()
	if len(infos) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(infos))
	}
	if infos[0].Name != ToolCalculate || infos[1].Name != ToolGetWeather {
		t.Fatalf("catalog not sorted: %s, %s", infos[0].Name, infos[1].Name)
	}
	if infos[1].ParamsOneOf == nil {
		t.Fatalf("expected params on %s", infos[1].Name)
	}
	if got := GetWeatherSpec.RequiredParams(); len(got) != 1 || got[0] != "location" {
		t.Fatalf("unexpected required list: %v", got)
	}
}
