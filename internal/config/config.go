package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	configPathEnv     = "TECH_WATCH_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	ownerIDEnv        = "OWNER_ID"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	geminiModelEnv    = "GEMINI_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	OwnerID       string             `yaml:"ownerId"`
	Feed          FeedConfig         `yaml:"feed"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Summarizer    SummarizerConfig   `yaml:"summarizer"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// FeedConfig points at the single upstream feed.
type FeedConfig struct {
	URL string `yaml:"url"`
}

// EnrichmentConfig tunes content and discussion scraping.
type EnrichmentConfig struct {
	DiscussionAPIURL string `yaml:"discussionApiUrl"`
	RemarkLimit      int    `yaml:"remarkLimit"`
}

// SummarizerConfig defines how to contact the Gemini API and the rate
// constraints applied to it.
type SummarizerConfig struct {
	Endpoint              string `yaml:"endpoint"`
	Model                 string `yaml:"model"`
	APIKey                string `yaml:"apiKey"`
	RequestsPerMinute     int    `yaml:"requestsPerMinute"`
	MaxRetries            int    `yaml:"maxRetries"`
	InitialBackoffSeconds int    `yaml:"initialBackoffSeconds"`
}

// InitialBackoff resolves the configured base retry delay.
func (s SummarizerConfig) InitialBackoff() time.Duration {
	return time.Duration(s.InitialBackoffSeconds) * time.Second
}

// SchedulerConfig defines whether and how often runs repeat. When disabled
// the binary performs a single run and exits.
type SchedulerConfig struct {
	Enabled       bool           `yaml:"enabled"`
	IntervalHours int            `yaml:"intervalHours"`
	Timezone      string         `yaml:"timezone"`
	location      *time.Location `yaml:"-"`
}

// Interval resolves the rerun period.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.IntervalHours) * time.Hour
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate checks the startup-fatal conditions: processing must not begin
// without store and summarizer credentials and an owner identity.
func (c Config) Validate() error {
	if c.Summarizer.APIKey == "" {
		return fmt.Errorf("missing summarizer API key (set %s)", geminiAPIKeyEnv)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("missing database DSN (set %s)", databaseDSNEnv)
	}
	if c.OwnerID == "" {
		return fmt.Errorf("missing owner id (set %s)", ownerIDEnv)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(ownerIDEnv); v != "" {
		c.OwnerID = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Summarizer.APIKey = v
	}

	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Summarizer.Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.OwnerID != "" {
		base.OwnerID = override.OwnerID
	}

	if override.Feed.URL != "" {
		base.Feed = override.Feed
	}

	if override.Enrichment.DiscussionAPIURL != "" {
		base.Enrichment.DiscussionAPIURL = override.Enrichment.DiscussionAPIURL
	}
	if override.Enrichment.RemarkLimit > 0 {
		base.Enrichment.RemarkLimit = override.Enrichment.RemarkLimit
	}

	if override.Summarizer.Endpoint != "" {
		base.Summarizer.Endpoint = override.Summarizer.Endpoint
	}
	if override.Summarizer.Model != "" {
		base.Summarizer.Model = override.Summarizer.Model
	}
	if override.Summarizer.APIKey != "" {
		base.Summarizer.APIKey = override.Summarizer.APIKey
	}
	if override.Summarizer.RequestsPerMinute > 0 {
		base.Summarizer.RequestsPerMinute = override.Summarizer.RequestsPerMinute
	}
	if override.Summarizer.MaxRetries > 0 {
		base.Summarizer.MaxRetries = override.Summarizer.MaxRetries
	}
	if override.Summarizer.InitialBackoffSeconds > 0 {
		base.Summarizer.InitialBackoffSeconds = override.Summarizer.InitialBackoffSeconds
	}

	if override.Scheduler.Enabled {
		base.Scheduler.Enabled = true
	}
	if override.Scheduler.IntervalHours > 0 {
		base.Scheduler.IntervalHours = override.Scheduler.IntervalHours
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Feed:     FeedConfig{URL: "https://hnrss.org/newest?points=100"},
		Enrichment: EnrichmentConfig{
			DiscussionAPIURL: "https://hn.algolia.com",
			RemarkLimit:      5,
		},
		Summarizer: SummarizerConfig{
			Endpoint:              "https://generativelanguage.googleapis.com",
			Model:                 "gemini-2.5-flash",
			APIKey:                "",
			RequestsPerMinute:     10,
			MaxRetries:            3,
			InitialBackoffSeconds: 10,
		},
		Scheduler: SchedulerConfig{Enabled: false, IntervalHours: 24, Timezone: defaultTimezone, location: tz},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
