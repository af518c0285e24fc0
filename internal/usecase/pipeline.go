package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"TechWatchBot/internal/domain"
	"TechWatchBot/internal/ports"
)

const articleSource = "hacker_news"

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source      ports.FeedSource
	Extractor   ports.ContentExtractor
	Discussions ports.DiscussionSource
	Analyzer    ports.Analyzer
	Articles    ports.ArticleRepository
	Aggregator  *Aggregator
	Notifier    ports.Notifier
	Logger      *slog.Logger
	OwnerID     string
	RemarkLimit int
}

// Pipeline implements the ingestion workflow: fetch, dedup, enrich,
// analyze, persist, aggregate.
type Pipeline struct {
	source      ports.FeedSource
	extractor   ports.ContentExtractor
	discussions ports.DiscussionSource
	analyzer    ports.Analyzer
	articles    ports.ArticleRepository
	aggregator  *Aggregator
	notifier    ports.Notifier
	logger      *slog.Logger
	ownerID     string
	remarkLimit int
}

// ProcessedItem is one successfully persisted article of the current run.
type ProcessedItem struct {
	ID             string
	Title          string
	URL            string
	DiscussionLink string
	Analysis       domain.Analysis
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:      deps.Source,
		extractor:   deps.Extractor,
		discussions: deps.Discussions,
		analyzer:    deps.Analyzer,
		articles:    deps.Articles,
		aggregator:  deps.Aggregator,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		ownerID:     deps.OwnerID,
		remarkLimit: deps.RemarkLimit,
	}
}

// Run executes one batch. Per-item failures skip the item and continue; only
// ledger or aggregation failures abort the run. The digest merge happens
// exactly once, after the item loop, over everything that was persisted.
func (p *Pipeline) Run(ctx context.Context, now time.Time) error {
	candidates := p.source.Fetch(ctx)
	if len(candidates) == 0 {
		p.info("no candidates in feed, nothing to do")
		return nil
	}

	known, err := p.articles.KnownIdentities(ctx, p.ownerID)
	if err != nil {
		return fmt.Errorf("load processed identities: %w", err)
	}

	fresh := FilterNew(candidates, known)
	p.info("candidates filtered", "total", len(candidates), "known", len(known), "new", len(fresh))
	if len(fresh) == 0 {
		return nil
	}

	processed := make([]ProcessedItem, 0, len(fresh))
	for _, item := range fresh {
		result, ok := p.processItem(ctx, item, now)
		if ok {
			processed = append(processed, result)
		}
	}

	if len(processed) == 0 {
		p.info("no items survived processing, skipping digest")
		return nil
	}

	dayKey := now.UTC().Format(time.DateOnly)
	if err := p.aggregator.Merge(ctx, p.ownerID, dayKey, processed); err != nil {
		return fmt.Errorf("merge digest %s: %w", dayKey, err)
	}

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, BuildDigestSummary(processed)); err != nil {
			p.warn("digest notification failed", "error", err)
		}
	}

	p.info("batch complete", "processed", len(processed))
	return nil
}

// processItem drives the Enrich -> Summarize -> Persist sub-states. Any
// failure terminates the item without aborting the run.
func (p *Pipeline) processItem(ctx context.Context, item domain.CandidateItem, now time.Time) (ProcessedItem, bool) {
	p.info("processing item", "title", item.Title)

	content, err := p.extractor.ExtractContent(ctx, item.Link)
	if err != nil {
		p.warn("content extraction failed, skipping item", "title", item.Title, "error", err)
		return ProcessedItem{}, false
	}

	remarks := p.discussions.FetchRemarks(ctx, item.DiscussionLink, p.remarkLimit)
	if len(remarks) == 0 {
		p.warn("no remarks found, proceeding with content only", "title", item.Title)
	}

	enriched := domain.EnrichedItem{CandidateItem: item, Content: content, Remarks: remarks}
	analysis, err := p.analyzer.Analyze(ctx, enriched)
	if err != nil {
		p.warn("analysis failed, skipping item", "title", item.Title, "error", err)
		return ProcessedItem{}, false
	}

	id, err := p.articles.SaveArticle(ctx, domain.PersistedArticle{
		OwnerID:     p.ownerID,
		Title:       item.Title,
		URL:         item.Link,
		CommentsURL: item.DiscussionLink,
		Source:      articleSource,
		Content:     content,
		Summary:     analysis.Summary,
		Tags:        analysis.Tags,
		PublishedAt: item.PublishedAt,
		CollectedAt: now.UTC(),
		Read:        false,
	})
	if err != nil {
		p.warn("persist failed, item excluded from digest", "title", item.Title, "error", err)
		return ProcessedItem{}, false
	}

	return ProcessedItem{
		ID:             id,
		Title:          item.Title,
		URL:            item.Link,
		DiscussionLink: item.DiscussionLink,
		Analysis:       analysis,
	}, true
}

// FilterNew returns the candidates whose identity is absent from the known
// set, preserving input order.
func FilterNew(candidates []domain.CandidateItem, known map[string]struct{}) []domain.CandidateItem {
	fresh := make([]domain.CandidateItem, 0, len(candidates))
	for _, item := range candidates {
		if _, ok := known[item.Identity()]; ok {
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
