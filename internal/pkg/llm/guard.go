package llm

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// GuardConfig configures a Qwen3Guard-style safety model served behind an
// OpenAI-compatible chat endpoint such as vLLM.
type GuardConfig struct {
	BaseURL   string // e.g. "http://localhost:8000/v1"
	Model     string // e.g. "Qwen/Qwen3Guard-Gen-0.6B"
	APIKey    string // optional
	MaxTokens int
	// FlagControversial treats "Controversial" as a violation.
	FlagControversial bool
	HTTPClient        *http.Client
}

// GuardModerator classifies text by prompting a guard model.
type GuardModerator struct {
	client *openai.Client
	config GuardConfig
}

// NewGuardModerator creates a guard model client.
func NewGuardModerator(config GuardConfig) (*GuardModerator, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("guard model base URL is required")
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 128
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}
	return &GuardModerator{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the backend name.
func (g *GuardModerator) Name() string { return "guard" }

// ModerateText sends text as a single user turn and parses the verdict.
func (g *GuardModerator) ModerateText(ctx context.Context, text string) (*ModerationResult, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   g.config.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("guard model error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices from guard model")
	}
	return g.parse(resp.Choices[0].Message.Content, resp.Model)
}

var (
	safetyPattern   = regexp.MustCompile(`(?i)Safety:\s*(Safe|Unsafe|Controversial)`)
	categoryPattern = regexp.MustCompile(`(?i)(Violent|Non-violent Illegal Acts|Sexual Content or Sexual Acts|PII|Suicide & Self-Harm|Unethical Acts|Politically Sensitive Topics|Copyright Violation|Jailbreak|None)`)
)

// parse reads the guard output format:
//
//	Safety: Unsafe
//	Categories: Violent
func (g *GuardModerator) parse(content, model string) (*ModerationResult, error) {
	m := safetyPattern.FindStringSubmatch(content)
	if len(m) < 2 {
		return nil, fmt.Errorf("unparseable guard response %q", content)
	}

	result := &ModerationResult{Model: model}
	switch strings.ToLower(m[1]) {
	case "unsafe":
		result.Flagged = true
	case "controversial":
		result.Flagged = g.config.FlagControversial
	}
	if !result.Flagged {
		return result, nil
	}

	for _, c := range categoryPattern.FindAllString(content, -1) {
		if !strings.EqualFold(c, "None") {
			result.Categories = append(result.Categories, c)
		}
	}
	return result, nil
}
