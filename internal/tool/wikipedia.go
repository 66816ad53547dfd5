package tool

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"toolagent/internal/domain"
)

const defaultWikipediaAPI = "https://en.wikipedia.org/api/rest_v1/page/summary"

// WikipediaTool looks up an encyclopedia summary for a topic. A missing page
// is an ordinary result with found=false.
type WikipediaTool struct {
	fetch     *Fetcher
	apiBase   string
	userAgent string
}

func NewWikipediaTool(f *Fetcher, apiBase, userAgent string) *WikipediaTool {
	if apiBase == "" {
		apiBase = defaultWikipediaAPI
	}
	return &WikipediaTool{fetch: f, apiBase: strings.TrimRight(apiBase, "/"), userAgent: userAgent}
}

func (t *WikipediaTool) Name() string { return "wikipedia" }
func (t *WikipediaTool) Description() string {
	return "Short encyclopedia summary of a topic, person or place."
}

func (t *WikipediaTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"topic": {Type: "string", Description: "Topic to look up"},
	}, []string{"topic"})
}

func (t *WikipediaTool) Aliases() map[string]string {
	return map[string]string{"query": "topic", "title": "topic"}
}

func (t *WikipediaTool) Execute(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	topic := strings.TrimSpace(ArgsString(args, "topic"))
	if topic == "" {
		return domain.ErrorResult("empty topic"), nil
	}
	title := strings.ReplaceAll(topic, " ", "_")
	head := map[string]any{"topic": topic, "title": title}

	key := "wiki:" + strings.ToLower(title)
	if v, ok := t.fetch.cached(key); ok {
		return merge(head, v, map[string]any{"cached": true}), nil
	}

	var headers map[string]string
	if t.userAgent != "" {
		headers = map[string]string{"User-Agent": t.userAgent}
	}
	var resp struct {
		Title   string `json:"title"`
		Extract string `json:"extract"`
	}
	err := t.fetch.getJSON(ctx, t.apiBase+"/"+url.PathEscape(title), headers, &resp)
	if code := statusCode(err); code == http.StatusNotFound || code == http.StatusBadRequest {
		return merge(head, map[string]any{"found": false, "summary": nil}), nil
	}
	if err != nil {
		return merge(head, fetchFailed(t.Name(), err)), nil
	}

	value := domain.ToolResult{"found": true, "summary": resp.Extract}
	if resp.Title != "" {
		value["title"] = resp.Title
	}
	t.fetch.store(key, value)
	return merge(head, value, map[string]any{"cached": false}), nil
}
