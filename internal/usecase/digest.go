package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"TechWatchBot/internal/domain"
	"TechWatchBot/internal/ports"
)

// Granularity selects how a period key is interpreted.
type Granularity int

// Daily periods use a calendar-day key ("2006-01-02").
const Daily Granularity = iota

// PeriodBounds computes the inclusive [start, end] window for a period key.
func PeriodBounds(key string, g Granularity) (time.Time, time.Time, error) {
	switch g {
	case Daily:
		start, err := time.Parse(time.DateOnly, key)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
		}
		start = start.UTC()
		return start, start.Add(24*time.Hour - time.Second), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period granularity %d", g)
	}
}

// Aggregator merges a run's processed items into the per-period digest row,
// idempotently: repeating a merge with overlapping article ids never
// duplicates ids and never duplicates summary blocks.
type Aggregator struct {
	digests ports.DigestRepository
	logger  *slog.Logger
}

// NewAggregator wires the digest repository.
func NewAggregator(digests ports.DigestRepository, logger *slog.Logger) *Aggregator {
	return &Aggregator{digests: digests, logger: logger}
}

// Merge folds the processed items into the digest for (owner, periodKey),
// creating the row if the period has none yet.
//
// On update, only the items whose ids are new to the digest contribute
// summary blocks: text from earlier runs is preserved, and re-running with
// the same ids changes nothing.
func (a *Aggregator) Merge(ctx context.Context, ownerID, periodKey string, items []ProcessedItem) error {
	start, end, err := PeriodBounds(periodKey, Daily)
	if err != nil {
		return err
	}

	existing, err := a.digests.FindByPeriod(ctx, ownerID, start, end)
	if err != nil {
		return fmt.Errorf("find digest: %w", err)
	}

	topics := collectTopics(items)

	if existing == nil {
		digest := domain.Digest{
			OwnerID:     ownerID,
			PeriodStart: start,
			PeriodEnd:   end,
			Summary:     BuildDigestSummary(items),
			ArticleIDs:  articleIDs(items),
			KeyTopics:   topics,
		}
		if _, err := a.digests.InsertDigest(ctx, digest); err != nil {
			return fmt.Errorf("insert digest: %w", err)
		}
		a.info("created digest", "period", periodKey, "articles", len(items))
		return nil
	}

	seen := make(map[string]struct{}, len(existing.ArticleIDs))
	for _, id := range existing.ArticleIDs {
		seen[id] = struct{}{}
	}

	mergedIDs := append([]string(nil), existing.ArticleIDs...)
	var added []ProcessedItem
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		mergedIDs = append(mergedIDs, item.ID)
		added = append(added, item)
	}

	if len(added) == 0 {
		a.info("digest already contains all articles", "period", periodKey)
		return nil
	}

	summary := existing.Summary
	if summary == "" {
		summary = BuildDigestSummary(added)
	} else {
		summary = summary + "\n" + BuildDigestSummary(added)
	}

	if len(topics) == 0 {
		topics = existing.KeyTopics
	}

	patch := domain.DigestPatch{
		Summary:    summary,
		ArticleIDs: mergedIDs,
		KeyTopics:  topics,
	}
	if err := a.digests.UpdateDigest(ctx, existing.ID, patch); err != nil {
		return fmt.Errorf("update digest: %w", err)
	}

	a.info("updated digest", "period", periodKey, "added", len(added), "total", len(mergedIDs))
	return nil
}

// BuildDigestSummary renders one markdown block per item, in input order.
// It is pure so it can be tested in isolation.
func BuildDigestSummary(items []ProcessedItem) string {
	var lines []string

	for _, item := range items {
		lines = append(lines, fmt.Sprintf("\n## [%s](%s)", item.Title, item.URL))
		lines = append(lines, fmt.Sprintf("*Discussion: [Hacker News](%s)*\n", item.DiscussionLink))
		lines = append(lines, item.Analysis.Summary)
		lines = append(lines, "\n---")
	}

	return strings.Join(lines, "\n")
}

func articleIDs(items []ProcessedItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// collectTopics unions the tags across the run's analyses.
func collectTopics(items []ProcessedItem) []string {
	seen := map[string]struct{}{}
	var topics []string
	for _, item := range items {
		for _, tag := range item.Analysis.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			topics = append(topics, tag)
		}
	}
	sort.Strings(topics)
	return topics
}

func (a *Aggregator) info(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}
