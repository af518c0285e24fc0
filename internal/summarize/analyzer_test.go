package summarize

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"TechWatchBot/internal/domain"
)

type fakeCompleter struct {
	calls     int
	callTimes []time.Time
	respond   func(call int) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.callTimes = append(f.callTimes, time.Now())
	return f.respond(f.calls)
}

func enrichedFixture(title, content string, remarks []domain.Remark) domain.EnrichedItem {
	return domain.EnrichedItem{
		CandidateItem: domain.CandidateItem{Title: title},
		Content:       content,
		Remarks:       remarks,
	}
}

func TestExtractTags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		summary string
		want    []string
	}{
		{
			name:    "bracketed marker",
			summary: "Great article.\nTags: [rust, wasm, compilers]",
			want:    []string{"rust", "wasm", "compilers"},
		},
		{
			name:    "no marker",
			summary: "Great article with no closing line.",
			want:    nil,
		},
		{
			name:    "case insensitive without brackets",
			summary: "verdict...\ntags: go, databases",
			want:    []string{"go", "databases"},
		},
		{
			name:    "quoted and padded tokens",
			summary: `Tags: [" networking ", 'security', x, ]`,
			want:    []string{"networking", "security"},
		},
		{
			name:    "capped at five",
			summary: "Tags: [aa, bb, cc, dd, ee, ff, gg]",
			want:    []string{"aa", "bb", "cc", "dd", "ee"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractTags(tc.summary); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractTags = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	t.Parallel()

	client := &fakeCompleter{respond: func(int) (string, error) {
		return "The pitch: solid.\nTags: [compilers, performance]", nil
	}}

	analyzer := NewAnalyzer(client, Options{RequestsPerMinute: 60000}, nil)
	analysis, err := analyzer.Analyze(context.Background(), enrichedFixture("Some Title", "body text", []domain.Remark{{Author: "alice", Text: "good"}}))
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if !strings.HasPrefix(analysis.Summary, "The pitch") {
		t.Fatalf("unexpected summary: %q", analysis.Summary)
	}
	if !reflect.DeepEqual(analysis.Tags, []string{"compilers", "performance"}) {
		t.Fatalf("unexpected tags: %v", analysis.Tags)
	}
}

func TestAnalyzePromptAssembly(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt("Big Title", strings.Repeat("q", 20000), []domain.Remark{
		{Author: "alice", Text: "first remark"},
		{Author: "bob", Text: "second remark"},
	})

	if !strings.Contains(prompt, "Big Title") {
		t.Fatal("prompt missing title")
	}
	if !strings.Contains(prompt, "- alice: first remark\n") {
		t.Fatal("prompt missing rendered remark line")
	}
	if strings.Count(prompt, "q") != 15000 {
		t.Fatalf("content excerpt not truncated to 15000 chars, got %d", strings.Count(prompt, "q"))
	}
	if !strings.Contains(prompt, "Tags: [tag1, tag2, tag3]") {
		t.Fatal("prompt missing tag line instruction")
	}
}

func TestAnalyzeRetriesWithDoublingBackoff(t *testing.T) {
	t.Parallel()

	client := &fakeCompleter{respond: func(int) (string, error) {
		return "", fmt.Errorf("gemini: %w", domain.ErrQuotaExceeded)
	}}

	analyzer := NewAnalyzer(client, Options{
		RequestsPerMinute: 60000,
		MaxRetries:        3,
		InitialBackoff:    10 * time.Second,
	}, nil)

	var delays []time.Duration
	analyzer.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := analyzer.Analyze(context.Background(), enrichedFixture("title", "body", nil))
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota error after exhaustion, got %v", err)
	}

	if client.calls != 4 {
		t.Fatalf("expected 1 initial attempt + 3 retries, got %d calls", client.calls)
	}

	want := []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}
	if !reflect.DeepEqual(delays, want) {
		t.Fatalf("unexpected backoff sequence: %v", delays)
	}
}

func TestAnalyzeDoesNotRetryTerminalFailures(t *testing.T) {
	t.Parallel()

	client := &fakeCompleter{respond: func(int) (string, error) {
		return "", errors.New("invalid argument")
	}}

	analyzer := NewAnalyzer(client, Options{RequestsPerMinute: 60000, MaxRetries: 3}, nil)
	analyzer.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatal("terminal failure must not back off")
		return nil
	}

	if _, err := analyzer.Analyze(context.Background(), enrichedFixture("title", "body", nil)); err == nil {
		t.Fatal("expected error")
	}
	if client.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", client.calls)
	}
}

func TestAnalyzeRecoversAfterTransientFailure(t *testing.T) {
	t.Parallel()

	client := &fakeCompleter{respond: func(call int) (string, error) {
		if call == 1 {
			return "", fmt.Errorf("gemini: %w", domain.ErrRateLimited)
		}
		return "fine\nTags: [go]", nil
	}}

	analyzer := NewAnalyzer(client, Options{RequestsPerMinute: 60000, MaxRetries: 3, InitialBackoff: time.Second}, nil)
	analyzer.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	analysis, err := analyzer.Analyze(context.Background(), enrichedFixture("title", "body", nil))
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if analysis.Summary != "fine\nTags: [go]" {
		t.Fatalf("unexpected summary: %q", analysis.Summary)
	}
	if client.calls != 2 {
		t.Fatalf("expected recovery on second attempt, got %d calls", client.calls)
	}
}

func TestAnalyzePacingFloor(t *testing.T) {
	t.Parallel()

	client := &fakeCompleter{respond: func(int) (string, error) {
		return "ok", nil
	}}

	// 1200 requests/minute gives a 50ms floor, fast enough for a test.
	analyzer := NewAnalyzer(client, Options{RequestsPerMinute: 1200}, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := analyzer.Analyze(ctx, enrichedFixture("title", "body", nil)); err != nil {
			t.Fatalf("Analyze error: %v", err)
		}
	}

	if len(client.callTimes) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(client.callTimes))
	}

	floor := 50 * time.Millisecond
	for i := 1; i < len(client.callTimes); i++ {
		gap := client.callTimes[i].Sub(client.callTimes[i-1])
		// Allow a small scheduling tolerance below the floor.
		if gap < floor-5*time.Millisecond {
			t.Fatalf("calls %d and %d only %v apart, want >= %v", i-1, i, gap, floor)
		}
	}
}
