package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	toolx "github.com/tanpawarit/agentloops/agent/tool"
	openrouterx "github.com/tanpawarit/agentloops/pkg/openrouter"
)

// Live talks to an OpenAI-compatible endpoint. Decide goes through the eino
// chat model; Extract uses the SDK's JSON-schema response format.
type Live struct {
	chat        model.ToolCallingChatModel
	client      *openaisdk.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	policy      RetryPolicy
	logger      zerolog.Logger
}

var _ contractx.Provider = (*Live)(nil)

type LiveOption func(*Live)

func WithRetryPolicy(p RetryPolicy) LiveOption {
	return func(l *Live) { l.policy = p }
}

func WithLogger(logger zerolog.Logger) LiveOption {
	return func(l *Live) { l.logger = logger }
}

// WithChatModel replaces the eino model used by Decide.
func WithChatModel(m model.ToolCallingChatModel) LiveOption {
	return func(l *Live) { l.chat = m }
}

func NewLive(ctx context.Context, cfg openrouterx.Config, opts ...LiveOption) (*Live, error) {
	client := openrouterx.NewClient(cfg)
	if client == nil {
		return nil, fmt.Errorf("%w: api key is required for the live provider", contractx.ErrValidation)
	}

	l := &Live{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		policy:      DefaultRetryPolicy(),
		logger:      log.Logger,
	}
	if cfg.MaxCompletionToken != nil {
		l.maxTokens = *cfg.MaxCompletionToken
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.chat == nil {
		m, err := cfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrProvider, err)
		}
		l.chat = m
	}

	if l.policy.OnRetry == nil {
		logger := l.logger
		l.policy.OnRetry = func(err error, attempt int, delay time.Duration) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("provider call failed; retrying")
		}
	}
	return l, nil
}

func (l *Live) Decide(ctx context.Context, conv []contractx.Message, catalog []contractx.ToolSpec) (contractx.Decision, error) {
	chat := l.chat
	if len(catalog) > 0 {
		bound, err := l.chat.WithTools(toolx.ToolInfos(catalog))
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrProvider, err)
		}
		chat = bound
	}
	input := toEinoMessages(DropOrphanToolMessages(conv))

	out, err := retry(ctx, l.policy, func(ctx context.Context) (*schema.Message, error) {
		callCtx, cancel := l.withTimeout(ctx)
		defer cancel()
		return chat.Generate(callCtx, input)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %v", contractx.ErrProvider, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty response", contractx.ErrProvider)
	}
	return decisionFromEino(out, l.logger), nil
}

func (l *Live) Extract(ctx context.Context, conv []contractx.Message, out contractx.OutputSchema) (json.RawMessage, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(l.model),
		Messages: toSDKMessages(DropOrphanToolMessages(conv)),
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openaisdk.ResponseFormatJSONSchemaParam{
				JSONSchema: openaisdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        out.Name,
					Description: openaisdk.String(out.Description),
					Schema:      out.Schema,
					Strict:      openaisdk.Bool(true),
				},
			},
		},
		Temperature: openaisdk.Float(float64(l.temperature)),
	}
	if l.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(l.maxTokens))
	}

	resp, err := retry(ctx, l.policy, func(ctx context.Context) (*openaisdk.ChatCompletion, error) {
		callCtx, cancel := l.withTimeout(ctx)
		defer cancel()
		return l.client.Chat.Completions.New(callCtx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: extract %s: %v", contractx.ErrProvider, out.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: extract %s: no choices", contractx.ErrProvider, out.Name)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" || !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("%w: extract %s: response is not JSON", contractx.ErrSchemaViolation, out.Name)
	}
	return json.RawMessage(content), nil
}

func (l *Live) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

// DropOrphanToolMessages removes tool messages whose originating assistant
// request is no longer in the conversation, as happens after trimming.
func DropOrphanToolMessages(conv []contractx.Message) []contractx.Message {
	requested := make(map[string]bool)
	out := make([]contractx.Message, 0, len(conv))
	for _, m := range conv {
		switch m.Role {
		case contractx.RoleAssistant:
			for _, c := range m.ToolCalls {
				requested[c.ID] = true
			}
		case contractx.RoleTool:
			if !requested[m.ToolCallID] {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func toEinoMessages(conv []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(conv))
	for _, m := range conv {
		msg := &schema.Message{
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		switch m.Role {
		case contractx.RoleSystem:
			msg.Role = schema.System
		case contractx.RoleAssistant:
			msg.Role = schema.Assistant
		case contractx.RoleTool:
			msg.Role = schema.Tool
		default:
			msg.Role = schema.User
		}
		for _, c := range m.ToolCalls {
			args, err := json.Marshal(c.Arguments)
			if err != nil || c.Arguments == nil {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
				ID:   c.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      c.ToolName,
					Arguments: string(args),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

// Extraction requests carry no tool catalog, so tool traffic is flattened
// into plain text turns.
func toSDKMessages(conv []contractx.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(conv))
	for _, m := range conv {
		switch m.Role {
		case contractx.RoleSystem:
			out = append(out, openaisdk.SystemMessage(m.Content))
		case contractx.RoleAssistant:
			content := m.Content
			if content == "" && len(m.ToolCalls) > 0 {
				names := make([]string, 0, len(m.ToolCalls))
				for _, c := range m.ToolCalls {
					names = append(names, c.ToolName)
				}
				content = "Requested tools: " + strings.Join(names, ", ")
			}
			out = append(out, openaisdk.AssistantMessage(content))
		case contractx.RoleTool:
			out = append(out, openaisdk.UserMessage(fmt.Sprintf("Tool %s returned: %s", m.Name, m.Content)))
		default:
			out = append(out, openaisdk.UserMessage(m.Content))
		}
	}
	return out
}

func decisionFromEino(msg *schema.Message, logger zerolog.Logger) contractx.Decision {
	if len(msg.ToolCalls) == 0 {
		return contractx.FinalAnswer{Text: msg.Content}
	}

	calls := make([]contractx.ToolCallRequest, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		id := strings.TrimSpace(tc.ID)
		if id == "" {
			id = "call_" + uuid.NewString()
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				// Left empty; the registry reports the missing arguments back.
				logger.Warn().Err(err).Str("tool", tc.Function.Name).Msg("tool call arguments are not a JSON object")
				args = map[string]any{}
			}
		}

		calls = append(calls, contractx.ToolCallRequest{
			ID:        id,
			ToolName:  tc.Function.Name,
			Arguments: args,
		})
	}
	return contractx.ToolInvocations{Calls: calls}
}
