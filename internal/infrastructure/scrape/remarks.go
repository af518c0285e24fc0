package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TechWatchBot/internal/domain"
	"TechWatchBot/internal/ports"
)

const defaultRemarkLimit = 5

var itemIDExpr = regexp.MustCompile(`id=(\d+)`)

// DiscussionSource fetches top-level remarks from the Algolia HN items API.
// The API is used instead of scraping the discussion HTML because the HTML
// layout is brittle.
type DiscussionSource struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.DiscussionSource = (*DiscussionSource)(nil)

// NewDiscussionSource points at an Algolia-compatible items API base URL.
func NewDiscussionSource(baseURL string, client *http.Client, logger *slog.Logger) *DiscussionSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DiscussionSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// FetchRemarks returns at most limit top-level remarks for the discussion
// link. The limit defaults to 5 and is silently capped there. Any failure
// yields an empty slice; the item proceeds content-only.
func (d *DiscussionSource) FetchRemarks(ctx context.Context, discussionLink string, limit int) []domain.Remark {
	if limit <= 0 || limit > defaultRemarkLimit {
		limit = defaultRemarkLimit
	}

	match := itemIDExpr.FindStringSubmatch(discussionLink)
	if match == nil {
		d.warn("no item id in discussion link", "link", discussionLink)
		return nil
	}

	item, err := d.fetchItem(ctx, match[1])
	if err != nil {
		d.warn("discussion fetch failed", "link", discussionLink, "error", err)
		return nil
	}

	remarks := make([]domain.Remark, 0, limit)
	for _, child := range item.Children {
		if len(remarks) >= limit {
			break
		}
		// Deleted comments come back with empty author or text.
		if child.Author == "" || child.Text == "" {
			continue
		}
		remarks = append(remarks, domain.Remark{
			Author: child.Author,
			Text:   stripHTML(child.Text),
		})
	}

	return remarks
}

type algoliaItem struct {
	Children []algoliaComment `json:"children"`
}

type algoliaComment struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

func (d *DiscussionSource) fetchItem(ctx context.Context, itemID string) (algoliaItem, error) {
	var item algoliaItem

	apiURL := fmt.Sprintf("%s/api/v1/items/%s", d.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return item, fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return item, fmt.Errorf("request item %s: %w", itemID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return item, fmt.Errorf("item %s: unexpected status %s", itemID, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return item, fmt.Errorf("decode item %s: %w", itemID, err)
	}

	return item, nil
}

// stripHTML converts paragraph boundaries to newlines and removes all
// remaining markup, decoding entities along the way.
func stripHTML(text string) string {
	text = strings.ReplaceAll(text, "<p>", "\n")
	text = strings.ReplaceAll(text, "</p>", "")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.TrimSpace(text)
	}

	return strings.TrimSpace(doc.Text())
}

func (d *DiscussionSource) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
