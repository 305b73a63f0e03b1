package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

// Offline is a keyword-driven stand-in oracle so every loop can run without
// network access. It is deterministic and stateless: each reply is derived
// from the conversation alone.
type Offline struct{}

var _ contractx.Provider = Offline{}

func NewOffline() Offline {
	return Offline{}
}

func (Offline) Decide(_ context.Context, conv []contractx.Message, catalog []contractx.ToolSpec) (contractx.Decision, error) {
	if len(conv) == 0 {
		return nil, fmt.Errorf("%w: empty conversation", contractx.ErrProvider)
	}
	if len(catalog) == 0 {
		if strings.Contains(strings.ToLower(firstUser(conv)), "average") {
			return contractx.FinalAnswer{Text: averageAttempt(countRole(conv, contractx.RoleAssistant))}, nil
		}
		return contractx.FinalAnswer{Text: "I can help you with that. " + lastUser(conv)}, nil
	}

	last := conv[len(conv)-1]
	if last.Role == contractx.RoleTool {
		return contractx.FinalAnswer{Text: summarizeToolResults(conv)}, nil
	}

	query := lastUser(conv)
	available := make(map[string]bool, len(catalog))
	for _, s := range catalog {
		available[s.Name] = true
	}

	var calls []contractx.ToolCallRequest
	if available["get_weather"] && strings.Contains(strings.ToLower(query), "weather") {
		for i, loc := range weatherLocations(query) {
			calls = append(calls, contractx.ToolCallRequest{
				ID:        fmt.Sprintf("call_%d", i+1),
				ToolName:  "get_weather",
				Arguments: map[string]any{"location": loc.name, "unit": loc.unit},
			})
		}
	}
	if available["calculate"] {
		if expr := arithmeticPattern.FindString(query); expr != "" {
			calls = append(calls, contractx.ToolCallRequest{
				ID:        fmt.Sprintf("call_%d", len(calls)+1),
				ToolName:  "calculate",
				Arguments: map[string]any{"expression": strings.TrimSpace(expr)},
			})
		}
	}
	if len(calls) > 0 {
		return contractx.ToolInvocations{Calls: calls}, nil
	}
	return contractx.FinalAnswer{Text: "I can answer weather and arithmetic questions. Try asking about the weather in Tokyo."}, nil
}

func (Offline) Extract(_ context.Context, conv []contractx.Message, out contractx.OutputSchema) (json.RawMessage, error) {
	query := lastUser(conv)

	var v any
	switch out.Name {
	case contractx.SchemaPlan:
		v = fixedPlan(query)
	case contractx.SchemaRoute:
		v = keywordRoute(query)
	case contractx.SchemaCalendarEvent:
		v = calendarEvent(query)
	default:
		return nil, fmt.Errorf("%w: offline provider cannot produce %q", contractx.ErrProvider, out.Name)
	}
	return json.Marshal(v)
}

/* ------------------------------ tool calls ------------------------------ */

var arithmeticPattern = regexp.MustCompile(`[\d\(][\d\s\+\-\*/%\^\(\)\.]*[\d\)]`)

type weatherLocation struct {
	name string
	unit string
}

func weatherLocations(query string) []weatherLocation {
	lower := strings.ToLower(query)
	known := []struct {
		key string
		loc weatherLocation
	}{
		{"san francisco", weatherLocation{"San Francisco, CA", "fahrenheit"}},
		{"tokyo", weatherLocation{"Tokyo, Japan", "celsius"}},
		{"paris", weatherLocation{"Paris, France", "celsius"}},
	}

	var out []weatherLocation
	for _, k := range known {
		if strings.Contains(lower, k.key) {
			out = append(out, k.loc)
		}
	}
	if len(out) == 0 {
		out = []weatherLocation{known[0].loc, known[1].loc}
	}
	return out
}

func summarizeToolResults(conv []contractx.Message) string {
	var parts []string
	for i := len(conv) - 1; i >= 0 && conv[i].Role == contractx.RoleTool; i-- {
		parts = append([]string{describeToolResult(conv[i])}, parts...)
	}
	return strings.Join(parts, " ")
}

func describeToolResult(m contractx.Message) string {
	switch m.Name {
	case "get_weather":
		var w struct {
			Location    string `json:"location"`
			Temperature string `json:"temperature"`
			Unit        string `json:"unit"`
		}
		if err := json.Unmarshal([]byte(m.Content), &w); err == nil {
			if w.Temperature == "unknown" {
				return fmt.Sprintf("I could not find the weather for %s.", w.Location)
			}
			symbol := "°C"
			if w.Unit == "fahrenheit" {
				symbol = "°F"
			}
			return fmt.Sprintf("The current weather in %s is %s%s.", w.Location, w.Temperature, symbol)
		}
	case "calculate":
		var c struct {
			Expression string  `json:"expression"`
			Result     float64 `json:"result"`
		}
		if err := json.Unmarshal([]byte(m.Content), &c); err == nil {
			return fmt.Sprintf("%s = %g.", c.Expression, c.Result)
		}
	}
	return fmt.Sprintf("%s returned: %s", m.Name, m.Content)
}

/* ------------------------------ extraction ------------------------------ */

func fixedPlan(goal string) contractx.Plan {
	topic := strings.TrimSpace(goal)
	if topic == "" {
		topic = "the topic"
	}
	return contractx.Plan{Steps: []contractx.Step{
		{ID: 1, Description: "Research " + topic, Role: contractx.RoleResearcher, Dependencies: []int{}},
		{ID: 2, Description: "Write a blog post summarizing the research", Role: contractx.RoleWriter, Dependencies: []int{1}},
		{ID: 3, Description: "Review the blog post for accuracy", Role: contractx.RoleReviewer, Dependencies: []int{2}},
	}}
}

func keywordRoute(query string) contractx.Route {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, "code", "python", "function", "golang"):
		return contractx.Route{Role: contractx.RoleCoding, Reasoning: "User asked for code.", Confidence: 0.95}
	case containsAny(lower, "weather", "rain", "temperature"):
		return contractx.Route{Role: contractx.RoleWeather, Reasoning: "User asked about weather.", Confidence: 0.98}
	case len(strings.Fields(lower)) < 2:
		return contractx.Route{Role: contractx.RoleGeneral, Reasoning: "Query is too short to classify.", Confidence: 0.3}
	default:
		return contractx.Route{Role: contractx.RoleGeneral, Reasoning: "General conversation.", Confidence: 0.80}
	}
}

type calendarEventValue struct {
	EventName    string   `json:"event_name"`
	Date         string   `json:"date"`
	Participants []string `json:"participants"`
	Priority     string   `json:"priority"`
	Summary      string   `json:"summary"`
}

var (
	isoDatePattern   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	longDatePattern  = regexp.MustCompile(`(January|February|March|April|May|June|July|August|September|October|November|December) (\d{1,2})(?:st|nd|rd|th)?,? (\d{4})`)
	namesPattern     = regexp.MustCompile(`(?:[A-Z][a-z]+, )+(?:and )?[A-Z][a-z]+`)
	eventNamePattern = regexp.MustCompile(`(?i)the (.+?) (review|meeting|sync|call|workshop|launch)`)
	namePattern      = regexp.MustCompile(`[A-Z][a-z]+`)
)

func calendarEvent(text string) calendarEventValue {
	flat := strings.Join(strings.Fields(text), " ")
	ev := calendarEventValue{Priority: "Medium", Participants: []string{}}

	if m := eventNamePattern.FindStringSubmatch(flat); m != nil {
		ev.EventName = m[1] + " " + m[2]
	} else {
		ev.EventName = "Meeting"
	}

	if d := isoDatePattern.FindString(flat); d != "" {
		ev.Date = d
	} else if m := longDatePattern.FindStringSubmatch(flat); m != nil {
		if t, err := time.Parse("January 2 2006", m[1]+" "+m[2]+" "+m[3]); err == nil {
			ev.Date = t.Format("2006-01-02")
		}
	}

	// Prefer an "A, B and C" enumeration over incidental pairs like "Tuesday, October".
	groups := namesPattern.FindAllString(flat, -1)
	for _, g := range groups {
		if strings.Contains(g, "and ") {
			ev.Participants = namePattern.FindAllString(g, -1)
			break
		}
	}
	if len(ev.Participants) == 0 && len(groups) > 0 {
		ev.Participants = namePattern.FindAllString(groups[0], -1)
	}

	lower := strings.ToLower(flat)
	switch {
	case containsAny(lower, "critical", "urgent", "asap", "can't miss"):
		ev.Priority = "High"
	case containsAny(lower, "optional", "whenever", "low priority"):
		ev.Priority = "Low"
	}

	ev.Summary = fmt.Sprintf("%s with %d participant(s).", ev.EventName, len(ev.Participants))
	return ev
}

/* -------------------------------- coder -------------------------------- */

// averageAttempt returns the artifact for attempt n (0-indexed). The first two
// are wrong on purpose so the repair path is exercised.
func averageAttempt(n int) string {
	switch n {
	case 0:
		return "```go\n" + `import "strconv"

func CalculateAverage(numbers []float64) string {
	total := 0.0
	for _, n := range numbers {
		total += n
	}
	divisor := 0
	return "The average is: " + strconv.Itoa(int(total)/divisor)
}
` + "```"
	case 1:
		return "```go\n" + `import "strconv"

func CalculateAverage(numbers []float64) string {
	if len(numbers) == 0 {
		return "0"
	}
	total := 0.0
	for _, n := range numbers {
		total += n
	}
	return "The average is: " + strconv.FormatFloat(total/float64(len(numbers)), 'f', -1, 64)
}
` + "```"
	default:
		return "```go\n" + `func CalculateAverage(numbers []float64) float64 {
	if len(numbers) == 0 {
		return 0.0
	}
	total := 0.0
	for _, n := range numbers {
		total += n
	}
	return total / float64(len(numbers))
}
` + "```"
	}
}

/* ------------------------------- helpers ------------------------------- */

func firstUser(conv []contractx.Message) string {
	for _, m := range conv {
		if m.Role == contractx.RoleUser {
			return m.Content
		}
	}
	return ""
}

func lastUser(conv []contractx.Message) string {
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == contractx.RoleUser {
			return conv[i].Content
		}
	}
	return ""
}

func countRole(conv []contractx.Message, role contractx.Role) int {
	n := 0
	for _, m := range conv {
		if m.Role == role {
			n++
		}
	}
	return n
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
