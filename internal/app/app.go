package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"TechWatchBot/internal/config"
	"TechWatchBot/internal/infrastructure/feed"
	"TechWatchBot/internal/infrastructure/llm"
	"TechWatchBot/internal/infrastructure/scheduler"
	"TechWatchBot/internal/infrastructure/scrape"
	"TechWatchBot/internal/infrastructure/storage"
	"TechWatchBot/internal/infrastructure/telegram"
	"TechWatchBot/internal/logging"
	"TechWatchBot/internal/ports"
	"TechWatchBot/internal/summarize"
	"TechWatchBot/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
}

// New validates startup-fatal configuration and returns a runnable
// application. A validation error here means nothing was processed.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Application{cfg: cfg, logger: baseLogger}, nil
}

// Run opens the store, builds the pipeline and executes it: once by
// default, or on an interval when the scheduler is enabled.
func (a *Application) Run(ctx context.Context) error {
	db, err := sql.Open("postgres", a.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	repository := storage.NewPostgresRepository(db)
	if err := repository.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	pipeline := a.buildPipeline(repository)

	if !a.cfg.Scheduler.Enabled {
		now := time.Now().In(a.cfg.Scheduler.Location())
		return pipeline.Run(ctx, now)
	}

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval())
	job := func(trigger time.Time) {
		if err := pipeline.Run(ctx, trigger.In(a.cfg.Scheduler.Location())); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	}

	if err := driver.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() { _ = driver.Stop(context.Background()) }()

	<-ctx.Done()
	return nil
}

func (a *Application) buildPipeline(repository *storage.PostgresRepository) *usecase.Pipeline {
	source := feed.NewHackerNewsSource(a.cfg.Feed.URL, a.logger.With("component", "feed"))
	extractor := scrape.NewContentExtractor(nil)
	discussions := scrape.NewDiscussionSource(a.cfg.Enrichment.DiscussionAPIURL, nil, a.logger.With("component", "discussions"))

	analyzer := summarize.NewAnalyzer(
		llm.NewGeminiClient(a.cfg.Summarizer),
		summarize.Options{
			RequestsPerMinute: a.cfg.Summarizer.RequestsPerMinute,
			MaxRetries:        a.cfg.Summarizer.MaxRetries,
			InitialBackoff:    a.cfg.Summarizer.InitialBackoff(),
		},
		a.logger.With("component", "summarizer"),
	)

	var notifier ports.Notifier
	if a.cfg.Notifications.Telegram.BotToken != "" && a.cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(a.cfg.Notifications.Telegram)
	}

	return usecase.NewPipeline(usecase.PipelineDeps{
		Source:      source,
		Extractor:   extractor,
		Discussions: discussions,
		Analyzer:    analyzer,
		Articles:    repository,
		Aggregator:  usecase.NewAggregator(repository, a.logger.With("component", "aggregator")),
		Notifier:    notifier,
		Logger:      a.logger.With("component", "pipeline"),
		OwnerID:     a.cfg.OwnerID,
		RemarkLimit: a.cfg.Enrichment.RemarkLimit,
	})
}
