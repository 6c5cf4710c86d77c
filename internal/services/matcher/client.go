// Package matcher assigns subtitle transcripts to (season, episode) slots
// using the Anthropic Messages API. The model's JSON is validated at this
// boundary; downstream code only ever sees parsed matches.
package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sera/internal/media"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	maxOutputTokens  = 8192
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client wraps the Anthropic Messages API for episode matching.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a matcher client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Model:   strings.TrimSpace(cfg.Model),
		},
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// MatchResult is the validated payload returned by the model.
type MatchResult struct {
	Matches []media.EpisodeMatch `json:"matches"`
}

// MatchEpisodes asks the model to assign each subtitle transcript to an
// episode slot of the given series metadata.
func (c *Client) MatchEpisodes(ctx context.Context, subtitles []media.SubtitleFile, metadata media.SeriesMetadata) (MatchResult, error) {
	var empty MatchResult
	if c.cfg.APIKey == "" {
		return empty, errors.New("matcher: api key required")
	}
	if len(subtitles) == 0 {
		return empty, errors.New("matcher: no subtitles to match")
	}
	if len(metadata.Seasons) == 0 {
		return empty, errors.New("matcher: series metadata has no seasons")
	}

	userPrompt := BuildPrompt(subtitles, metadata)
	content, err := c.complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return empty, err
	}

	var parsed MatchResult
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("matcher: parse payload: %w", err)
	}
	return validateMatches(parsed, subtitles, metadata)
}

// validateMatches drops entries that point at nonexistent slots or files and
// clamps confidence into [0,1]. The partition of remaining entries is the
// caller's concern.
func validateMatches(result MatchResult, subtitles []media.SubtitleFile, metadata media.SeriesMetadata) (MatchResult, error) {
	byName := make(map[string]media.SubtitleFile, len(subtitles))
	for _, sub := range subtitles {
		byName[sub.FileName] = sub
	}
	valid := make([]media.EpisodeMatch, 0, len(result.Matches))
	for _, match := range result.Matches {
		sub, ok := byName[match.FileName]
		if !ok {
			continue
		}
		if match.SeasonNumber < 1 || match.EpisodeNumber < 1 {
			continue
		}
		if _, ok := metadata.FindEpisode(match.SeasonNumber, match.EpisodeNumber); !ok {
			continue
		}
		if match.Confidence < 0 {
			match.Confidence = 0
		}
		if match.Confidence > 1 {
			match.Confidence = 1
		}
		if strings.TrimSpace(match.FilePath) == "" {
			match.FilePath = sub.FilePath
		}
		if strings.TrimSpace(match.EpisodeTitle) == "" {
			match.EpisodeTitle = metadata.EpisodeTitleOrDefault(match.SeasonNumber, match.EpisodeNumber)
		}
		valid = append(valid, match)
	}
	return MatchResult{Matches: valid}, nil
}

type messageRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	System    string         `json:"system"`
	Messages  []chatMessage  `json:"messages"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload := messageRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxOutputTokens,
		System:    system,
		Messages:  []chatMessage{{Role: "user", Content: user}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("matcher request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("matcher request: new request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("matcher request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("matcher request: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("matcher request: http %d: %s", resp.StatusCode, summarizeSnippet(string(body)))
	}
	var message messageResponse
	if err := json.Unmarshal(body, &message); err != nil {
		return "", fmt.Errorf("matcher request: decode response: %w", err)
	}
	if message.Error != nil {
		return "", fmt.Errorf("matcher request: api error: %s", strings.TrimSpace(message.Error.Message))
	}
	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("matcher request: empty content (stop_reason=%q)", message.StopReason)
	}
	return text.String(), nil
}

// DecodeModelJSON decodes JSON from a model response, tolerating code fences
// and surrounding prose.
func DecodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := extractJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizeSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizeSnippet(sanitized))
	}
	return nil
}

func extractJSONPayload(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		body := strings.TrimPrefix(trimmed, "```")
		body = strings.TrimLeft(body, " \t\r\n")
		if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
			body = strings.TrimLeft(body[4:], " \t\r\n")
		}
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
		trimmed = strings.TrimSpace(body)
	}
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func summarizeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}
