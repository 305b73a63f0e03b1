package tool

import (
	"context"
	"strings"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

const ToolGetWeather = "get_weather"

var GetWeatherSpec = contractx.ToolSpec{
	Name: ToolGetWeather,
	Desc: "Get the current weather in a given location",
	Params: map[string]contractx.Param{
		"location": {
			Type:     contractx.ParamString,
			Desc:     "The city and state, e.g. San Francisco, CA",
			Required: true,
		},
		"unit": {
			Type: contractx.ParamString,
			Enum: []string{"celsius", "fahrenheit"},
		},
	},
}

type WeatherReport struct {
	Location    string `json:"location"`
	Temperature string `json:"temperature"`
	Unit        string `json:"unit,omitempty"`
}

// GetWeather returns canned observations; there is no upstream weather API.
func GetWeather(_ context.Context, args map[string]any) (any, error) {
	location, _ := args["location"].(string)
	unit, _ := args["unit"].(string)
	if unit == "" {
		unit = "celsius"
	}

	lower := strings.ToLower(location)
	switch {
	case strings.Contains(lower, "tokyo"):
		return WeatherReport{Location: "Tokyo", Temperature: "10", Unit: unit}, nil
	case strings.Contains(lower, "san francisco"), lower == "sf":
		return WeatherReport{Location: "San Francisco", Temperature: "72", Unit: "fahrenheit"}, nil
	case strings.Contains(lower, "paris"):
		return WeatherReport{Location: "Paris", Temperature: "22", Unit: unit}, nil
	default:
		return WeatherReport{Location: location, Temperature: "unknown"}, nil
	}
}

// NewDefaultRegistry returns a registry with the built-in tools.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(GetWeatherSpec, GetWeather)
	r.MustRegister(CalculateSpec, Calculate)
	return r
}
