package tool

import "toolagent/internal/domain"

// BuiltinOptions configures the built-in tool set.
type BuiltinOptions struct {
	WeatherAPI      string
	DefaultCity     string
	WikipediaAPI    string
	WikipediaAgent  string
	TranslateAPI    string
	TranslateAPIKey string
	NewsAPI         string
	NewsAPIKey      string
}

// Builtins returns the built-in tools. Network-backed tools share f.
func Builtins(f *Fetcher, opts BuiltinOptions) []domain.Tool {
	return []domain.Tool{
		NewWeatherTool(f, opts.WeatherAPI, opts.DefaultCity),
		NewWikipediaTool(f, opts.WikipediaAPI, opts.WikipediaAgent),
		NewCalculatorTool(),
		NewDistanceTool(),
		NewTranslateTool(f, opts.TranslateAPI, opts.TranslateAPIKey),
		NewParseMetaTool(),
		NewNewsTool(f, opts.NewsAPI, opts.NewsAPIKey),
	}
}

// RegisterBuiltins adds every built-in tool to r.
func RegisterBuiltins(r *Registry, f *Fetcher, opts BuiltinOptions) error {
	for _, t := range Builtins(f, opts) {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
