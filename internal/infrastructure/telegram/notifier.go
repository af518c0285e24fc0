package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"TechWatchBot/internal/config"
	"TechWatchBot/internal/ports"
)

// telegramMessageLimit is the Bot API ceiling for a single message.
const telegramMessageLimit = 4096

// Notifier pushes digest markdown to a Telegram chat via the bot API.
type Notifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier builds a notifier from configuration.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	return &Notifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// PublishDigest posts the digest as a Markdown message, truncated to the
// Telegram message ceiling.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	text := truncateMessage(digest)

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// truncateMessage fits the digest into one Telegram message. Cutting at an
// arbitrary byte can split a Markdown link or emphasis span, which the Bot
// API rejects under parse_mode, so the cut lands on the last complete digest
// block when one fits; otherwise it falls back to a rune boundary.
func truncateMessage(text string) string {
	if len(text) <= telegramMessageLimit {
		return text
	}

	const blockSeparator = "\n---"
	if idx := strings.LastIndex(text[:telegramMessageLimit], blockSeparator); idx > 0 {
		return text[:idx+len(blockSeparator)]
	}

	cut := telegramMessageLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
