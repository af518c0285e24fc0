package ports

import (
	"context"
	"time"

	"TechWatchBot/internal/domain"
)

// FeedSource pulls candidate articles from the upstream feed. Transport and
// parse failures never surface as errors: the adapter logs and returns an
// empty batch so the orchestrator always has a well-defined input.
type FeedSource interface {
	Fetch(ctx context.Context) []domain.CandidateItem
}

// ContentExtractor fetches and extracts the readable full text for a link.
type ContentExtractor interface {
	ExtractContent(ctx context.Context, link string) (string, error)
}

// DiscussionSource fetches up to limit top-level remarks for a discussion
// link. Failures yield an empty slice; processing continues content-only.
type DiscussionSource interface {
	FetchRemarks(ctx context.Context, discussionLink string, limit int) []domain.Remark
}

// Analyzer runs the rate-limited LLM analysis over an enriched item.
type Analyzer interface {
	Analyze(ctx context.Context, item domain.EnrichedItem) (domain.Analysis, error)
}

// ChatCompleter is the single opaque external summarization call.
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ArticleRepository persists articles and answers the dedup ledger query.
type ArticleRepository interface {
	KnownIdentities(ctx context.Context, ownerID string) (map[string]struct{}, error)
	SaveArticle(ctx context.Context, article domain.PersistedArticle) (string, error)
}

// DigestRepository exposes the row primitives the digest merge relies on.
type DigestRepository interface {
	FindByPeriod(ctx context.Context, ownerID string, start, end time.Time) (*domain.Digest, error)
	InsertDigest(ctx context.Context, digest domain.Digest) (string, error)
	UpdateDigest(ctx context.Context, id string, patch domain.DigestPatch) error
}

// Notifier delivers the run's digest to an outbound channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
