package contract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation. Assistant messages that requested
// tools carry the requests in ToolCalls; tool messages reference them through
// ToolCallID.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage folds a tool result back into the conversation.
func ToolMessage(res ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    res.Content,
		ToolCallID: res.ToolCallID,
		Name:       res.ToolName,
	}
}

// CloneMessages returns a deep copy of conv.
func CloneMessages(conv []Message) []Message {
	if conv == nil {
		return nil
	}
	out := make([]Message, len(conv))
	for i, m := range conv {
		out[i] = m
		if len(m.ToolCalls) > 0 {
			out[i].ToolCalls = make([]ToolCallRequest, len(m.ToolCalls))
			for j, c := range m.ToolCalls {
				out[i].ToolCalls[j] = c.Clone()
			}
		}
	}
	return out
}

type ToolCallRequest struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func (c ToolCallRequest) Clone() ToolCallRequest {
	if c.Arguments != nil {
		args := make(map[string]any, len(c.Arguments))
		for k, v := range c.Arguments {
			args[k] = v
		}
		c.Arguments = args
	}
	return c
}

type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

/* ------------------------------- Decision ------------------------------- */

// Decision is the polymorphic output of Provider.Decide. The only
// implementations are FinalAnswer and ToolInvocations.
type Decision interface {
	isDecision()
}

type FinalAnswer struct {
	Text string
}

type ToolInvocations struct {
	Calls []ToolCallRequest
}

func (FinalAnswer) isDecision()     {}
func (ToolInvocations) isDecision() {}

/* ----------------------------- Tool catalog ----------------------------- */

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

type Param struct {
	Type     ParamType `json:"type"`
	Desc     string    `json:"description,omitempty"`
	Required bool      `json:"required,omitempty"`
	Enum     []string  `json:"enum,omitempty"`
}

// ToolSpec describes a tool to the provider.
type ToolSpec struct {
	Name   string           `json:"name"`
	Desc   string           `json:"description"`
	Params map[string]Param `json:"params,omitempty"`
}

// RequiredParams returns the required argument names in sorted order.
func (s ToolSpec) RequiredParams() []string {
	var out []string
	for name, p := range s.Params {
		if p.Required {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

/* --------------------------- Structured output --------------------------- */

// OutputSchema names the structured value requested from Provider.Extract.
// Schema holds a JSON schema document (typically *jsonschema.Schema).
type OutputSchema struct {
	Name        string
	Description string
	Schema      any
}

// SchemaFor reflects a strict JSON schema for T.
func SchemaFor[T any](name, description string) OutputSchema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return OutputSchema{
		Name:        name,
		Description: description,
		Schema:      reflector.Reflect(v),
	}
}

/* --------------------------------- Plan --------------------------------- */

type WorkerRole string

const (
	RoleResearcher WorkerRole = "researcher"
	RoleWriter     WorkerRole = "writer"
	RoleReviewer   WorkerRole = "reviewer"

	RoleCoding  WorkerRole = "coding_agent"
	RoleWeather WorkerRole = "weather_agent"
	RoleGeneral WorkerRole = "general_agent"
)

type Step struct {
	ID           int        `json:"id" jsonschema:"description=Step number unique within the plan"`
	Description  string     `json:"description" jsonschema:"description=What needs to be done in this step"`
	Role         WorkerRole `json:"assigned_role" jsonschema:"description=Which worker role performs this step"`
	Dependencies []int      `json:"dependencies" jsonschema:"description=IDs of steps that must complete before this one"`
}

type Plan struct {
	Steps []Step `json:"steps" jsonschema:"description=The steps needed to achieve the goal"`
}

func (p Plan) Empty() bool {
	return len(p.Steps) == 0
}

// ContextStore maps step ids to their results. Entries are append-only and
// remember insertion order.
type ContextStore struct {
	order   []int
	results map[int]string
}

func NewContextStore() *ContextStore {
	return &ContextStore{results: make(map[int]string, 4)}
}

// Put records the result of a step. A step id can only be written once.
func (c *ContextStore) Put(stepID int, result string) error {
	if c.results == nil {
		c.results = make(map[int]string, 4)
	}
	if _, exists := c.results[stepID]; exists {
		return fmt.Errorf("%w: result for step %d already stored", ErrValidation, stepID)
	}
	c.results[stepID] = result
	c.order = append(c.order, stepID)
	return nil
}

func (c *ContextStore) Get(stepID int) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.results[stepID]
	return v, ok
}

func (c *ContextStore) Has(stepID int) bool {
	_, ok := c.Get(stepID)
	return ok
}

func (c *ContextStore) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// IDs returns step ids in insertion order.
func (c *ContextStore) IDs() []int {
	if c == nil {
		return nil
	}
	return append([]int(nil), c.order...)
}

// Gather concatenates the results of ids as "Step N: result" lines, in the
// order given. Missing ids are skipped.
func (c *ContextStore) Gather(ids []int) string {
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.Get(id); ok {
			lines = append(lines, fmt.Sprintf("Step %d: %s", id, v))
		}
	}
	return strings.Join(lines, "\n")
}

/* ---------------------------- Self-correction ---------------------------- */

// CodeArtifact is one immutable candidate produced by the coder.
type CodeArtifact struct {
	Source    string
	Iteration int
}

type DiagnosticKind string

const (
	DiagnosticSecurity   DiagnosticKind = "SecurityError"
	DiagnosticLint       DiagnosticKind = "LintError"
	DiagnosticSyntax     DiagnosticKind = "SyntaxError"
	DiagnosticEntryPoint DiagnosticKind = "EntryPointError"
	DiagnosticRuntime    DiagnosticKind = "RuntimeError"
	DiagnosticType       DiagnosticKind = "TypeError"
	DiagnosticLogic      DiagnosticKind = "LogicError"
)

type VerificationOutcome struct {
	Passed     bool
	Kind       DiagnosticKind
	Diagnostic string
}

func Pass(diagnostic string) VerificationOutcome {
	return VerificationOutcome{Passed: true, Diagnostic: diagnostic}
}

func Fail(kind DiagnosticKind, format string, args ...any) VerificationOutcome {
	return VerificationOutcome{
		Kind:       kind,
		Diagnostic: fmt.Sprintf("%s: %s", kind, fmt.Sprintf(format, args...)),
	}
}

/* -------------------------------- Router -------------------------------- */

type Route struct {
	Role       WorkerRole `json:"role" jsonschema:"description=The best agent to handle the request"`
	Reasoning  string     `json:"reasoning" jsonschema:"description=A short explanation of why this agent was chosen"`
	Confidence float64    `json:"confidence" jsonschema:"description=Confidence score between 0.0 and 1.0"`
}

// Schema names used for structured extraction.
const (
	SchemaPlan          = "plan"
	SchemaRoute         = "route"
	SchemaCalendarEvent = "calendar_event"
)
