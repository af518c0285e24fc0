package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"TechWatchBot/internal/ports"
)

// ContentExtractor downloads a page and extracts its readable main text.
type ContentExtractor struct {
	client *http.Client
}

var _ ports.ContentExtractor = (*ContentExtractor)(nil)

// NewContentExtractor wires an HTTP client; nil gets a sane default.
func NewContentExtractor(client *http.Client) *ContentExtractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ContentExtractor{client: client}
}

// ExtractContent returns the article body text for the link. Any failure,
// including an empty extraction result, is an error: an item without a body
// must not reach the summarizer.
func (e *ContentExtractor) ExtractContent(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid article url %s: %w", link, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TechWatchBot/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", link, resp.Status)
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", link, err)
	}

	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		return "", fmt.Errorf("extract %s: no readable content", link)
	}

	return content, nil
}
