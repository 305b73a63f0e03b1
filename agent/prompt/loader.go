package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"gopkg.in/yaml.v3"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

var (
	//go:embed template/chat.txt
	chatRaw string

	//go:embed template/planner.txt
	plannerRaw string

	//go:embed template/router.txt
	routerRaw string

	//go:embed template/coder.txt
	coderRaw string

	//go:embed template/extractor.txt
	extractorRaw string

	//go:embed template/roles.yaml
	rolesRaw []byte
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Chat      string
	Planner   string
	Router    string
	Coder     string
	Extractor string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Chat:      strings.TrimSpace(chatRaw),
		Planner:   strings.TrimSpace(plannerRaw),
		Router:    strings.TrimSpace(routerRaw),
		Coder:     strings.TrimSpace(coderRaw),
		Extractor: strings.TrimSpace(extractorRaw),
	}
}

type RoleInfo struct {
	Role        contractx.WorkerRole `yaml:"role"`
	Description string               `yaml:"description"`
	Checkpoint  bool                 `yaml:"checkpoint"`
}

// RoleCatalog lists the worker roles known to the router and the planner.
type RoleCatalog struct {
	Router  []RoleInfo `yaml:"router"`
	Planner []RoleInfo `yaml:"planner"`
}

func LoadRoleCatalog() (RoleCatalog, error) {
	return ParseRoleCatalog(rolesRaw)
}

func ParseRoleCatalog(raw []byte) (RoleCatalog, error) {
	var cat RoleCatalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return RoleCatalog{}, fmt.Errorf("%w: parse role catalog: %v", contractx.ErrPromptMissing, err)
	}
	for _, group := range [][]RoleInfo{cat.Router, cat.Planner} {
		for _, r := range group {
			if strings.TrimSpace(string(r.Role)) == "" {
				return RoleCatalog{}, fmt.Errorf("%w: role catalog entry without role", contractx.ErrValidation)
			}
		}
	}
	return cat, nil
}

// Checkpoints returns the planner roles that require approval.
func (c RoleCatalog) Checkpoints() []contractx.WorkerRole {
	var out []contractx.WorkerRole
	for _, r := range c.Planner {
		if r.Checkpoint {
			out = append(out, r.Role)
		}
	}
	return out
}

// DescribeRoles renders roles as "- role: description" lines.
func DescribeRoles(roles []RoleInfo) string {
	lines := make([]string, 0, len(roles))
	for _, r := range roles {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Role, r.Description))
	}
	return strings.Join(lines, "\n")
}

// Render formats a system template with vars and appends the user input,
// returning the opening conversation for a structured request.
func Render(ctx context.Context, system string, input string, vars map[string]any) ([]contractx.Message, error) {
	if strings.TrimSpace(system) == "" {
		return nil, contractx.ErrPromptMissing
	}
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage("{input}"),
	)

	values := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		values[k] = v
	}
	values["input"] = input

	msgs, err := template.Format(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("%w: render prompt: %v", contractx.ErrValidation, err)
	}

	out := make([]contractx.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case schema.System:
			out = append(out, contractx.SystemMessage(m.Content))
		default:
			out = append(out, contractx.UserMessage(m.Content))
		}
	}
	return out, nil
}
