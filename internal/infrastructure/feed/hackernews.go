package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"

	"TechWatchBot/internal/domain"
	"TechWatchBot/internal/ports"
)

// HackerNewsSource pulls the curated Hacker News RSS feed and normalizes
// entries into candidate items.
type HackerNewsSource struct {
	feedURL string
	parser  *gofeed.Parser
	logger  *slog.Logger
}

var _ ports.FeedSource = (*HackerNewsSource)(nil)

// NewHackerNewsSource builds a source for a single feed URL.
func NewHackerNewsSource(feedURL string, logger *slog.Logger) *HackerNewsSource {
	parser := gofeed.NewParser()
	parser.UserAgent = "TechWatchBot/1.0"
	parser.RSSTranslator = &rssCommentsTranslator{defaultTranslator: &gofeed.DefaultRSSTranslator{}}
	return &HackerNewsSource{
		feedURL: feedURL,
		parser:  parser,
		logger:  logger,
	}
}

// rssCommentsTranslator carries the RSS <comments> element through
// translation. The default translator maps it to neither a Feed field nor
// Custom, so without this the discussion URL only survives via the guid.
type rssCommentsTranslator struct {
	defaultTranslator *gofeed.DefaultRSSTranslator
}

func (t *rssCommentsTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	rssFeed, ok := feed.(*rss.Feed)
	if !ok {
		return nil, fmt.Errorf("feed is not an RSS feed")
	}

	translated, err := t.defaultTranslator.Translate(rssFeed)
	if err != nil {
		return nil, err
	}

	for i, item := range rssFeed.Items {
		if i >= len(translated.Items) || item.Comments == "" {
			continue
		}
		if translated.Items[i].Custom == nil {
			translated.Items[i].Custom = map[string]string{}
		}
		translated.Items[i].Custom["comments"] = item.Comments
	}

	return translated, nil
}

// Fetch pulls the feed. Transport and parse failures are logged and yield an
// empty batch, never an error.
func (s *HackerNewsSource) Fetch(ctx context.Context) []domain.CandidateItem {
	parsed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		s.warn("feed fetch failed", "url", s.feedURL, "error", err)
		return nil
	}

	items := make([]domain.CandidateItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry.Link == "" {
			continue
		}

		item := domain.CandidateItem{
			ExternalID:     pickExternalID(entry),
			Title:          entry.Title,
			Link:           entry.Link,
			DiscussionLink: pickDiscussionLink(entry),
			PublishedAt:    entry.PublishedParsed,
		}
		items = append(items, item)
	}

	s.debug("feed fetched", "url", s.feedURL, "items", len(items))
	return items
}

func pickExternalID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	return entry.Link
}

// pickDiscussionLink prefers the RSS comments element; the HN feed also puts
// the discussion URL into the guid, which serves as fallback.
func pickDiscussionLink(entry *gofeed.Item) string {
	if comments, ok := entry.Custom["comments"]; ok && comments != "" {
		return comments
	}
	if strings.Contains(entry.GUID, "item?id=") {
		return entry.GUID
	}
	return ""
}

func (s *HackerNewsSource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *HackerNewsSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
