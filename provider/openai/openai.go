package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/briefbot/config"
	"github.com/mohammad-safakhou/briefbot/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the classification, synthesis and chat capabilities on
// top of an OpenAI-compatible chat-completions API. Every call is bounded
// by the configured timeout; a timeout surfaces as a capability error and
// is never retried here.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewClient creates a capability client from config.
func NewClient(cfg config.LLMConfig) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     base,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const classifySystemPrompt = `You are an intent classifier for a news subscription bot.
Map the user message to exactly one intent:
- "subscribe": the user wants to subscribe to a news category. Extract the category keyword (e.g. AI, GAMES, MUSIC) if one is present.
- "read": the user wants today's news briefing.
- "chat": anything else.

RESPONSE FORMAT:
Respond ONLY with valid JSON: {"intent": "subscribe|read|chat", "category": "CATEGORY_OR_EMPTY"}
Do not include any other text or explanation.`

// Classify maps free text to {subscribe, read, chat} with an optional
// extracted category. A malformed or unparseable model response is an
// error; callers must not fall back to a guessed category.
func (c *Client) Classify(ctx context.Context, text string) (models.Intent, error) {
	messages := []message{
		{Role: "system", Content: classifySystemPrompt},
		{Role: "user", Content: text},
	}
	raw, err := c.sendRequest(ctx, messages)
	if err != nil {
		return models.Intent{}, fmt.Errorf("classification failed: %w", err)
	}
	var parsed struct {
		Intent   string `json:"intent"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return models.Intent{}, fmt.Errorf("classification returned malformed result: %w", err)
	}
	switch parsed.Intent {
	case "subscribe":
		return models.Intent{Kind: models.IntentSubscribe, Category: strings.ToUpper(strings.TrimSpace(parsed.Category))}, nil
	case "read":
		return models.Intent{Kind: models.IntentRead}, nil
	case "chat":
		return models.Intent{Kind: models.IntentChat}, nil
	default:
		return models.Intent{}, fmt.Errorf("classification returned unknown intent %q", parsed.Intent)
	}
}

const synthesizeSystemPrompt = `You are a senior industry intelligence analyst producing a structured daily briefing.

RULES:
1. Deduplicate near-identical articles before selecting anything.
2. Pick exactly %d top headlines: the most important stories, each with its source URL.
3. Partition the remaining coverage into EXACTLY these clusters, in this order: %s.
   A cluster with no matching articles MUST still appear with an empty items list. Never invent or omit a cluster name.
4. Every item summary must be a single line of at most %d characters.
5. Write a one-sentence overall summary of the day's coverage.

RESPONSE FORMAT:
Respond ONLY with valid JSON matching:
{"summary": "...", "headlines": [{"title": "...", "url": "..."}], "clusters": [{"name": "...", "items": [{"summary": "...", "url": "..."}]}]}
Do not include any other text or explanation.`

// Synthesize turns raw articles into a structured briefing constrained to
// the category's fixed cluster taxonomy. A result that does not conform to
// the schema is an error; no partial briefing is returned.
func (c *Client) Synthesize(ctx context.Context, category string, taxonomy []string, articles []models.Article, headlineCount, summaryMaxLen int) (*models.Briefing, error) {
	var lines []string
	for _, a := range articles {
		lines = append(lines, fmt.Sprintf("Title: %s\nSummary: %s\nSource: %s\nPublished: %s\nURL: %s",
			a.Title, a.Summary, a.Source, a.PublishedAt.Format(time.RFC3339), a.URL))
	}
	system := fmt.Sprintf(synthesizeSystemPrompt, headlineCount, strings.Join(taxonomy, ", "), summaryMaxLen)
	user := fmt.Sprintf("Category: %s\n\nArticles:\n%s", category, strings.Join(lines, "\n\n"))

	raw, err := c.sendRequest(ctx, []message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	var briefing models.Briefing
	if err := json.Unmarshal([]byte(stripFences(raw)), &briefing); err != nil {
		return nil, fmt.Errorf("synthesis returned malformed result: %w", err)
	}
	briefing.Category = category
	briefing.GeneratedAt = time.Now()
	if err := briefing.Validate(); err != nil {
		return nil, fmt.Errorf("synthesis violated briefing schema: %w", err)
	}
	if len(briefing.Headlines) > headlineCount {
		briefing.Headlines = briefing.Headlines[:headlineCount]
	}
	return &briefing, nil
}

// Chat answers a free-form message with the recent history as context.
func (c *Client) Chat(ctx context.Context, history []string, text string) (string, error) {
	messages := []message{
		{Role: "system", Content: "You are a friendly news-briefing assistant. Answer briefly."},
	}
	if len(history) > 0 {
		messages = append(messages, message{Role: "system", Content: "Recent conversation:\n" + strings.Join(history, "\n")})
	}
	messages = append(messages, message{Role: "user", Content: text})
	reply, err := c.sendRequest(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat failed: %w", err)
	}
	return reply, nil
}

// sendRequest posts a chat-completions request and returns the first choice.
func (c *Client) sendRequest(ctx context.Context, messages []message) (string, error) {
	body := request{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}
	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// stripFences tolerates models that wrap JSON in markdown code fences.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
