package tool

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"toolagent/internal/domain"
)

const (
	defaultNewsAPI  = "https://newsapi.org/v2/everything"
	defaultNewsSize = 3
)

// NewsTool fetches recent headlines from NewsAPI.
type NewsTool struct {
	fetch   *Fetcher
	apiBase string
	apiKey  string
}

func NewNewsTool(f *Fetcher, apiBase, apiKey string) *NewsTool {
	if apiBase == "" {
		apiBase = defaultNewsAPI
	}
	return &NewsTool{fetch: f, apiBase: apiBase, apiKey: apiKey}
}

func (t *NewsTool) Name() string { return "news" }
func (t *NewsTool) Description() string {
	return "Recent news headlines about a topic"
}

func (t *NewsTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"topic":     {Type: "string", Description: "What the news should be about"},
		"page_size": {Type: "integer", Description: "Number of headlines (default 3)"},
	}, []string{"topic"})
}

func (t *NewsTool) Aliases() map[string]string {
	return map[string]string{"query": "topic", "q": "topic"}
}

func (t *NewsTool) Execute(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	topic := strings.TrimSpace(ArgsString(args, "topic"))
	if t.apiKey == "" {
		return domain.ToolResult{"topic": topic, domain.ErrorKey: "news API key not configured (tools.news.apiKey)"}, nil
	}
	if topic == "" {
		topic = "technology"
	}
	size := defaultNewsSize
	if n, ok := args["page_size"].(float64); ok && n >= 1 && n <= 20 {
		size = int(n)
	}
	head := map[string]any{"topic": topic}

	key := "news:" + strings.ToLower(topic) + ":" + strconv.Itoa(size)
	if v, ok := t.fetch.cached(key); ok {
		return merge(head, v, map[string]any{"cached": true}), nil
	}

	q := url.Values{}
	q.Set("q", topic)
	q.Set("pageSize", strconv.Itoa(size))
	q.Set("language", "en")
	q.Set("sortBy", "relevancy")
	var resp struct {
		Articles []struct {
			Title string `json:"title"`
		} `json:"articles"`
	}
	err := t.fetch.getJSON(ctx, t.apiBase+"?"+q.Encode(), map[string]string{"X-Api-Key": t.apiKey}, &resp)
	if err != nil {
		return merge(head, fetchFailed(t.Name(), err)), nil
	}

	headlines := make([]any, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title != "" {
			headlines = append(headlines, a.Title)
		}
	}
	if len(headlines) == 0 {
		return merge(head, map[string]any{"headlines": headlines, "note": "no headlines found"}), nil
	}
	value := domain.ToolResult{"headlines": headlines, "source": "NewsAPI"}
	t.fetch.store(key, value)
	return merge(head, value, map[string]any{"cached": false}), nil
}
