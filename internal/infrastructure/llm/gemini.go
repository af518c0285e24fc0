package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"TechWatchBot/internal/config"
	"TechWatchBot/internal/domain"
	"TechWatchBot/internal/ports"
)

// GeminiClient implements ports.ChatCompleter against the Gemini
// generateContent API.
type GeminiClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.ChatCompleter = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(cfg config.SummarizerConfig) *GeminiClient {
	return &GeminiClient{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete posts the prompt and returns the concatenated response text.
// Quota and rate failures are classified into the domain error taxonomy so
// the caller can decide on retries.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("gemini client misconfigured")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyFailure(resp.StatusCode, raw)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var sb strings.Builder
	for _, candidate := range parsed.Candidates {
		for _, p := range candidate.Content.Parts {
			sb.WriteString(p.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return text, nil
}

func classifyFailure(status int, raw []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(raw, &apiErr)

	message := strings.TrimSpace(apiErr.Error.Message)
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}

	if apiErr.Error.Status == "RESOURCE_EXHAUSTED" || strings.Contains(strings.ToLower(message), "quota") {
		return fmt.Errorf("gemini status %d: %s: %w", status, message, domain.ErrQuotaExceeded)
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("gemini status %d: %s: %w", status, message, domain.ErrRateLimited)
	}

	return fmt.Errorf("gemini status %d: %s", status, message)
}
