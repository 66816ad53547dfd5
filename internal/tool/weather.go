package tool

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"toolagent/internal/domain"
)

const (
	defaultWeatherAPI = "https://api.open-meteo.com/v1/forecast"
	weatherSource     = "Open-Meteo hourly temperature_2m"
)

// WeatherTool reports the current temperature for a gazetteer city.
type WeatherTool struct {
	fetch       *Fetcher
	apiBase     string
	gazetteer   Gazetteer
	defaultCity string
}

// NewWeatherTool creates the weather tool. When the requested city matches no
// gazetteer entry the lookup falls back to defaultCity; an empty defaultCity
// turns that case into an error result instead.
func NewWeatherTool(f *Fetcher, apiBase, defaultCity string) *WeatherTool {
	if apiBase == "" {
		apiBase = defaultWeatherAPI
	}
	return &WeatherTool{
		fetch:       f,
		apiBase:     apiBase,
		gazetteer:   DefaultGazetteer,
		defaultCity: strings.ToLower(strings.TrimSpace(defaultCity)),
	}
}

func (t *WeatherTool) Name() string { return "weather" }
func (t *WeatherTool) Description() string {
	return "Current temperature in Celsius for a city. Known cities: " + strings.Join(t.gazetteer.Keys(), ", ")
}

func (t *WeatherTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"city": {Type: "string", Description: "City name, e.g. Tokyo"},
	}, []string{"city"})
}

func (t *WeatherTool) Aliases() map[string]string {
	return map[string]string{"location": "city", "city_name": "city"}
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	requested := ArgsString(args, "city")
	city, ok := t.gazetteer.Match(requested)
	fallback := false
	if !ok {
		if t.defaultCity == "" {
			return domain.ErrorResult("city not recognized: %q", requested), nil
		}
		city, ok = t.gazetteer.Lookup(t.defaultCity)
		if !ok {
			return nil, fmt.Errorf("default city %q is not in the gazetteer", t.defaultCity)
		}
		fallback = true
	}

	head := map[string]any{"city": titleCase(city.Key)}
	if fallback {
		head["fallback"] = true
		head["requested"] = requested
	}

	key := "weather:" + city.Key
	if v, ok := t.fetch.cached(key); ok {
		return merge(head, v, map[string]any{"cached": true}), nil
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", city.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", city.Lon))
	q.Set("hourly", "temperature_2m")

	var resp struct {
		Hourly struct {
			Temperature []float64 `json:"temperature_2m"`
		} `json:"hourly"`
	}
	if err := t.fetch.getJSON(ctx, t.apiBase+"?"+q.Encode(), nil, &resp); err != nil {
		return merge(head, fetchFailed(t.Name(), err)), nil
	}

	var now any
	if len(resp.Hourly.Temperature) > 0 {
		now = resp.Hourly.Temperature[0]
	}
	value := domain.ToolResult{"temp_now_c": now, "source": weatherSource}
	t.fetch.store(key, value)
	return merge(head, value, map[string]any{"cached": false}), nil
}
