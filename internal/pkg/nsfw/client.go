package nsfw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DetectionResult is the detector's opinion of one image.
type DetectionResult struct {
	IsNSFW      bool
	NSFWScore   float64 // 0.0 to 1.0
	NormalScore float64
	Label       string
	Confidence  float64
	ProcessedAt time.Time
}

// IsSafe reports whether the image passed.
func (r *DetectionResult) IsSafe() bool {
	return !r.IsNSFW
}

// Config holds configuration for the detector client.
type Config struct {
	BaseURL   string // e.g. "http://localhost:8080"
	Timeout   time.Duration
	Threshold float64 // score at or above which an image is NSFW regardless of label
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8080",
		Timeout:   30 * time.Second,
		Threshold: 0.5,
	}
}

// Client talks to an image NSFW detection service that fetches images by URL.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a detector client.
func NewClient(config Config) *Client {
	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: config.Timeout}
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &Client{config: config, httpClient: hc}
}

// Name returns the backend name.
func (c *Client) Name() string { return "nsfw" }

type apiResponse struct {
	IsNSFW      bool    `json:"is_nsfw"`
	NSFWScore   float64 `json:"nsfw_score"`
	NormalScore float64 `json:"normal_score"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
}

// DetectFromURL asks the detector to fetch and classify a public image URL.
func (c *Client) DetectFromURL(ctx context.Context, imageURL string) (*DetectionResult, error) {
	jsonBody, err := json.Marshal(struct {
		URL string `json:"url"`
	}{URL: imageURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/predict/url", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call NSFW API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NSFW API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	isNSFW := apiResp.IsNSFW
	if c.config.Threshold > 0 && apiResp.NSFWScore >= c.config.Threshold {
		isNSFW = true
	}
	return &DetectionResult{
		IsNSFW:      isNSFW,
		NSFWScore:   apiResp.NSFWScore,
		NormalScore: apiResp.NormalScore,
		Label:       apiResp.Label,
		Confidence:  apiResp.Confidence,
		ProcessedAt: time.Now(),
	}, nil
}

// Ping checks if the detector is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("NSFW API not reachable at %s: %w", c.config.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("NSFW API returned status %d", resp.StatusCode)
	}
	return nil
}
