package telegram

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateMessageCutsAtBlockSeparator(t *testing.T) {
	t.Parallel()

	short := "## [Title](https://a.example/1)\nfine\n---"
	if got := truncateMessage(short); got != short {
		t.Fatalf("short digest must pass through, got %q", got)
	}

	var sb strings.Builder
	for i := 0; sb.Len() <= telegramMessageLimit; i++ {
		sb.WriteString(fmt.Sprintf("\n## [Article %d](https://a.example/%d)\nanalysis text for article %d\n---", i, i, i))
	}
	long := sb.String()

	got := truncateMessage(long)
	if len(got) > telegramMessageLimit {
		t.Fatalf("message exceeds the limit: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "\n---") {
		t.Fatalf("cut must land on a block separator, got tail %q", got[len(got)-20:])
	}
	// A complete set of blocks has no dangling markdown link.
	if strings.Count(got, "[") != strings.Count(got, "](") {
		t.Fatalf("truncation split a markdown link: %q", got[len(got)-80:])
	}
}

func TestTruncateMessageWithoutSeparatorsKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("€", 2000)
	got := truncateMessage(long)
	if len(got) > telegramMessageLimit {
		t.Fatalf("message exceeds the limit: %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}
}
