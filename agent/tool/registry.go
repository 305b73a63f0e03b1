package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

// Handler executes one tool call with validated arguments. Non-string results
// are JSON-encoded before they reach the conversation.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type entry struct {
	spec    contractx.ToolSpec
	handler Handler
}

// Registry maps tool names to handlers. It keeps no state across calls.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry, 4)}
}

func (r *Registry) Register(spec contractx.ToolSpec, handler Handler) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}
	if handler == nil {
		return fmt.Errorf("%w: tool=%s has nil handler", contractx.ErrValidation, name)
	}
	for pname, p := range spec.Params {
		if !knownParamType(p.Type) {
			return fmt.Errorf("%w: tool=%s param=%s has unsupported type %q", contractx.ErrValidation, name, pname, p.Type)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: tool=%s already registered", contractx.ErrValidation, name)
	}
	spec.Name = name
	r.tools[name] = entry{spec: spec, handler: handler}
	return nil
}

func (r *Registry) MustRegister(spec contractx.ToolSpec, handler Handler) {
	if err := r.Register(spec, handler); err != nil {
		panic(err)
	}
}

// Specs returns the registered tool specs sorted by name.
func (r *Registry) Specs() []contractx.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contractx.ToolSpec, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Catalog renders the registered specs as eino tool infos.
func (r *Registry) Catalog() []*schema.ToolInfo {
	return ToolInfos(r.Specs())
}

// Invoke validates and executes one request. Failures are reported in the
// result content so the oracle can correct itself; Invoke never returns an error.
func (r *Registry) Invoke(ctx context.Context, req contractx.ToolCallRequest) contractx.ToolResult {
	r.mu.RLock()
	e, ok := r.tools[req.ToolName]
	r.mu.RUnlock()

	if !ok {
		return errorResult(req, "ToolNotFound", fmt.Errorf("%w: %q", contractx.ErrToolNotFound, req.ToolName))
	}
	if err := ValidateArguments(e.spec, req.Arguments); err != nil {
		return errorResult(req, "ToolArgumentError", err)
	}

	out, err := e.handler(ctx, req.Arguments)
	if err != nil {
		return errorResult(req, "ToolError", err)
	}

	content, err := stringify(out)
	if err != nil {
		return errorResult(req, "ToolError", err)
	}
	return contractx.ToolResult{
		ToolCallID: req.ID,
		ToolName:   req.ToolName,
		Content:    content,
	}
}

// ValidateArguments checks required arguments, declared types and enums.
// Unknown arguments are ignored.
func ValidateArguments(spec contractx.ToolSpec, args map[string]any) error {
	for _, name := range spec.RequiredParams() {
		v, ok := args[name]
		if !ok || v == nil {
			return fmt.Errorf("%w: missing required argument %q", contractx.ErrToolArgument, name)
		}
	}

	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		p, declared := spec.Params[name]
		if !declared {
			continue
		}
		v := args[name]
		if v == nil && !p.Required {
			continue
		}
		if !matchesType(p.Type, v) {
			return fmt.Errorf("%w: argument %q must be %s", contractx.ErrToolArgument, name, p.Type)
		}
		if len(p.Enum) > 0 {
			s, _ := v.(string)
			if !contains(p.Enum, s) {
				return fmt.Errorf("%w: argument %q must be one of %v", contractx.ErrToolArgument, name, p.Enum)
			}
		}
	}
	return nil
}

// ToolInfos converts specs into the eino tool catalog shape.
func ToolInfos(specs []contractx.ToolSpec) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(specs))
	for _, s := range specs {
		params := make(map[string]*schema.ParameterInfo, len(s.Params))
		for name, p := range s.Params {
			params[name] = &schema.ParameterInfo{
				Type:     schema.DataType(p.Type),
				Desc:     p.Desc,
				Required: p.Required,
				Enum:     append([]string(nil), p.Enum...),
			}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        s.Name,
			Desc:        s.Desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos
}

func errorResult(req contractx.ToolCallRequest, kind string, err error) contractx.ToolResult {
	return contractx.ToolResult{
		ToolCallID: req.ID,
		ToolName:   req.ToolName,
		Content:    fmt.Sprintf("%s: %v", kind, err),
		IsError:    true,
	}
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	case nil:
		return "", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(raw), nil
}

func knownParamType(t contractx.ParamType) bool {
	switch t {
	case contractx.ParamString, contractx.ParamNumber, contractx.ParamInteger,
		contractx.ParamBoolean, contractx.ParamArray, contractx.ParamObject:
		return true
	}
	return false
}

func matchesType(expected contractx.ParamType, v any) bool {
	switch expected {
	case contractx.ParamString:
		_, ok := v.(string)
		return ok
	case contractx.ParamBoolean:
		_, ok := v.(bool)
		return ok
	case contractx.ParamNumber:
		_, ok := toFloat(v)
		return ok
	case contractx.ParamInteger:
		f, ok := toFloat(v)
		return ok && f == float64(int64(f))
	case contractx.ParamArray:
		if v == nil {
			return false
		}
		k := reflect.TypeOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	case contractx.ParamObject:
		if v == nil {
			return false
		}
		return reflect.TypeOf(v).Kind() == reflect.Map
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
