package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	promptx "github.com/tanpawarit/agentloops/agent/prompt"
)

const dateLayout = "2006-01-02"

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// CalendarEvent is the structured form of a free-text meeting announcement.
type CalendarEvent struct {
	EventName    string   `json:"event_name" jsonschema:"description=The name of the event or meeting"`
	Date         string   `json:"date" jsonschema:"description=The date of the event in YYYY-MM-DD format"`
	Participants []string `json:"participants" jsonschema:"description=List of people attending the event"`
	Priority     Priority `json:"priority" jsonschema:"enum=High,enum=Medium,enum=Low,description=Priority level"`
	Summary      string   `json:"summary" jsonschema:"description=A brief 1-sentence summary of the event intent"`
}

// Validate checks the fields the schema alone cannot enforce.
func (e CalendarEvent) Validate() error {
	if strings.TrimSpace(e.EventName) == "" {
		return fmt.Errorf("%w: event_name is empty", contractx.ErrSchemaViolation)
	}
	if _, err := time.Parse(dateLayout, e.Date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", contractx.ErrSchemaViolation, e.Date)
	}
	if !e.Priority.Valid() {
		return fmt.Errorf("%w: priority %q is not one of High, Medium, Low", contractx.ErrSchemaViolation, e.Priority)
	}
	return nil
}

type Extractor struct {
	provider     contractx.Provider
	systemPrompt string
	logger       zerolog.Logger
}

type Option func(*Extractor)

func WithSystemPrompt(prompt string) Option {
	return func(e *Extractor) { e.systemPrompt = strings.TrimSpace(prompt) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

func New(p contractx.Provider, opts ...Option) (*Extractor, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is required", contractx.ErrValidation)
	}
	e := &Extractor{
		provider:     p,
		systemPrompt: promptx.LoadPromptSet().Extractor,
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExtractEvent turns text into a validated CalendarEvent.
func (e *Extractor) ExtractEvent(ctx context.Context, text string) (CalendarEvent, error) {
	if strings.TrimSpace(text) == "" {
		return CalendarEvent{}, fmt.Errorf("%w: text is empty", contractx.ErrValidation)
	}
	conv, err := promptx.Render(ctx, e.systemPrompt, text, nil)
	if err != nil {
		return CalendarEvent{}, err
	}

	ev, err := contractx.Extract[CalendarEvent](ctx, e.provider, conv,
		contractx.SchemaFor[CalendarEvent](contractx.SchemaCalendarEvent, "Calendar event details"))
	if err != nil {
		return CalendarEvent{}, err
	}
	if err := ev.Validate(); err != nil {
		return CalendarEvent{}, err
	}
	if ev.Participants == nil {
		ev.Participants = []string{}
	}

	e.logger.Debug().
		Str("event", ev.EventName).
		Str("date", ev.Date).
		Str("priority", string(ev.Priority)).
		Int("participants", len(ev.Participants)).
		Msg("event extracted")
	return ev, nil
}
