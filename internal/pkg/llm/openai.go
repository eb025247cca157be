package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI moderation endpoint client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional, defaults to the public API
	Model   string // e.g. "omni-moderation-latest"
	// HTTPClient replaces the default transport, e.g. with a retrying client.
	HTTPClient *http.Client
}

// OpenAIModerator classifies text with the OpenAI moderation endpoint.
type OpenAIModerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIModerator creates a moderation client.
func NewOpenAIModerator(config OpenAIConfig) (*OpenAIModerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	return &OpenAIModerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
	}, nil
}

// Name returns the backend name.
func (m *OpenAIModerator) Name() string { return "openai" }

// ModerateText classifies text. Only the first result of the response is used.
func (m *OpenAIModerator) ModerateText(ctx context.Context, text string) (*ModerationResult, error) {
	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: m.model,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI moderation error: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no results from OpenAI moderation")
	}

	first := resp.Results[0]
	categories, err := flaggedCategories(first.Categories)
	if err != nil {
		return nil, err
	}
	return &ModerationResult{
		Flagged:    first.Flagged,
		Categories: categories,
		Model:      resp.Model,
	}, nil
}

// flaggedCategories lists the wire names ("violence", "hate/threatening", ...)
// of every category set in c.
func flaggedCategories(c openai.ResultCategories) ([]string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}
	var set map[string]bool
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	var out []string
	for name, on := range set {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
