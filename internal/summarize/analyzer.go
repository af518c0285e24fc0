package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"TechWatchBot/internal/domain"
	"TechWatchBot/internal/ports"
)

const (
	defaultRequestsPerMinute = 10
	contentExcerptLimit      = 15000
	maxTags                  = 5

	instructionBlock = `You are an experienced, skeptical CTO. Analyze this article and the
associated Hacker News discussion. Structure your answer in four parts:

The Pitch: in one sentence, what is the claimed innovation?

The Community Verdict: do the Hacker News experts validate or demolish the
idea? Identify the major technical counter-arguments.

TL;DR: should I actually read this article, or is it just marketing? Be blunt.

Finish with a single line of the form: Tags: [tag1, tag2, tag3]`
)

var tagLineExpr = regexp.MustCompile(`(?i)tags\s*:\s*\[?([^\[\]\r\n]+)\]?`)

// Analyzer wraps the external summarization call with a pacing floor and
// bounded exponential-backoff retry on transient quota/rate failures.
//
// The pacing limiter is held by the instance and shared across the whole
// batch: consecutive external calls, retries included, are spaced at least
// 60/requestsPerMinute seconds apart.
type Analyzer struct {
	client         ports.ChatCompleter
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger
}

var _ ports.Analyzer = (*Analyzer)(nil)

// Options tunes the analyzer's rate constraints.
type Options struct {
	RequestsPerMinute int
	MaxRetries        int
	InitialBackoff    time.Duration
}

// NewAnalyzer builds the rate-limited summarizer.
func NewAnalyzer(client ports.ChatCompleter, opts Options, logger *slog.Logger) *Analyzer {
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = 10 * time.Second
	}

	return &Analyzer{
		client:         client,
		limiter:        rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		maxRetries:     maxRetries,
		initialBackoff: backoff,
		sleep:          ctxSleep,
		logger:         logger,
	}
}

// Analyze assembles the prompt and drives the paced, retried external call.
// A nil error means a usable analysis; any error means the item is dropped
// from the run.
func (a *Analyzer) Analyze(ctx context.Context, item domain.EnrichedItem) (domain.Analysis, error) {
	prompt := buildPrompt(item.Title, item.Content, item.Remarks)

	delay := a.initialBackoff
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			a.warn("transient summarizer failure, backing off",
				"title", item.Title, "attempt", attempt, "delay", delay, "error", lastErr)
			if err := a.sleep(ctx, delay); err != nil {
				return domain.Analysis{}, fmt.Errorf("backoff interrupted: %w", err)
			}
			delay *= 2
		}

		if err := a.limiter.Wait(ctx); err != nil {
			return domain.Analysis{}, fmt.Errorf("pacing wait: %w", err)
		}

		text, err := a.client.Complete(ctx, prompt)
		if err != nil {
			if domain.IsRetryable(err) {
				lastErr = err
				continue
			}
			return domain.Analysis{}, fmt.Errorf("analyze %q: %w", item.Title, err)
		}

		return domain.Analysis{
			Summary: text,
			Tags:    ExtractTags(text),
		}, nil
	}

	return domain.Analysis{}, fmt.Errorf("analyze %q: retries exhausted: %w", item.Title, lastErr)
}

func buildPrompt(title, articleContent string, remarks []domain.Remark) string {
	var sb strings.Builder

	sb.WriteString(instructionBlock)
	sb.WriteString("\n\nArticle title: ")
	sb.WriteString(title)
	sb.WriteString("\n\n--- ARTICLE CONTENT ---\n")
	sb.WriteString(excerpt(articleContent, contentExcerptLimit))
	sb.WriteString("\n\n--- HACKER NEWS COMMENTS (top level) ---\n")
	for _, remark := range remarks {
		sb.WriteString("- ")
		sb.WriteString(remark.Author)
		sb.WriteString(": ")
		sb.WriteString(remark.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}

// excerpt truncates to at most limit characters without splitting a rune.
func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// ExtractTags parses the best-effort "Tags: [a, b, c]" marker line from a
// summary. The label is case-insensitive and brackets are optional. Tokens
// are trimmed of quotes and whitespace; empty or single-character tokens are
// dropped and the result is capped at five. A missing marker yields nil.
func ExtractTags(summary string) []string {
	match := tagLineExpr.FindStringSubmatch(summary)
	if match == nil {
		return nil
	}

	tags := make([]string, 0, maxTags)
	for _, token := range strings.Split(match[1], ",") {
		tag := strings.TrimSpace(token)
		tag = strings.TrimSpace(strings.Trim(tag, "\"'`"))
		if len(tag) <= 1 {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}

	if len(tags) == 0 {
		return nil
	}
	return tags
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a *Analyzer) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
