package domain

import "time"

// CandidateItem is a feed entry that may not have been processed yet.
type CandidateItem struct {
	ExternalID     string
	Title          string
	Link           string
	DiscussionLink string
	PublishedAt    *time.Time
}

// Identity returns the canonical dedup key for the item. The feed sometimes
// carries a feed-assigned id and sometimes only the link; the article link is
// the canonical key because it is what the store's url column holds.
func (c CandidateItem) Identity() string {
	if c.Link != "" {
		return c.Link
	}
	return c.ExternalID
}

// Remark is a single top-level comment from the discussion thread.
type Remark struct {
	Author string
	Text   string
}

// EnrichedItem is a candidate plus scraped content and discussion remarks.
// Empty Content means extraction failed; empty Remarks is non-fatal.
type EnrichedItem struct {
	CandidateItem
	Content string
	Remarks []Remark
}

// Analysis is a successful summarizer outcome. Failure is signalled by an
// error at the call site, never by a sentinel value inside this struct.
type Analysis struct {
	Summary string
	Tags    []string
}

// PersistedArticle is the row written once per distinct item.
type PersistedArticle struct {
	OwnerID     string
	Title       string
	URL         string
	CommentsURL string
	Source      string
	Content     string
	Summary     string
	Tags        []string
	PublishedAt *time.Time
	CollectedAt time.Time
	Read        bool
}

// Digest aggregates one period's persisted articles. At most one digest
// exists per (owner, period).
type Digest struct {
	ID          string
	OwnerID     string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Summary     string
	ArticleIDs  []string
	KeyTopics   []string
}

// DigestPatch carries the mutable digest fields for an update.
type DigestPatch struct {
	Summary    string
	ArticleIDs []string
	KeyTopics  []string
}
