package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
	openrouterx "github.com/tanpawarit/agentloops/pkg/openrouter"
)

// Loop identifies which control loop a model is configured for.
type Loop string

const (
	LoopChat    Loop = "chat"
	LoopPlanner Loop = "planner"
	LoopRouter  Loop = "router"
	LoopCoder   Loop = "coder"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"openai/gpt-4o"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	MaxRetries         int           `envconfig:"MAX_RETRIES" split_words:"true" default:"2"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ChatModel          string  `envconfig:"CHAT_MODEL" split_words:"true"`
	PlannerModel       string  `envconfig:"PLANNER_MODEL" split_words:"true"`
	RouterModel        string  `envconfig:"ROUTER_MODEL" split_words:"true"`
	CoderModel         string  `envconfig:"CODER_MODEL" split_words:"true"`
	ChatTemperature    float32 `envconfig:"CHAT_TEMPERATURE" split_words:"true" default:"-1"`
	PlannerTemperature float32 `envconfig:"PLANNER_TEMPERATURE" split_words:"true" default:"-1"`
	RouterTemperature  float32 `envconfig:"ROUTER_TEMPERATURE" split_words:"true" default:"0"`
	CoderTemperature   float32 `envconfig:"CODER_TEMPERATURE" split_words:"true" default:"-1"`
}

// Live reports whether a live oracle can be reached with this config.
func (c Config) Live() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the endpoint config for one loop, falling back to
// the default model and temperature when no override is set.
func (c Config) OpenRouterFor(loop Loop) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	var override string
	var overrideTemp float32 = -1
	switch loop {
	case LoopChat:
		override, overrideTemp = c.ChatModel, c.ChatTemperature
	case LoopPlanner:
		override, overrideTemp = c.PlannerModel, c.PlannerTemperature
	case LoopRouter:
		override, overrideTemp = c.RouterModel, c.RouterTemperature
	case LoopCoder:
		override, overrideTemp = c.CoderModel, c.CoderTemperature
	}
	if v := strings.TrimSpace(override); v != "" {
		modelName = v
	}
	if overrideTemp >= 0 {
		temp = overrideTemp
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
