package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"TechWatchBot/internal/domain"
	"TechWatchBot/internal/ports"
)

const (
	articlesTable = "tech_watch_articles"
	digestsTable  = "tech_watch_digests"

	// contentByteCeiling bounds the stored article body.
	contentByteCeiling = 50000
)

//go:embed schema.sql
var schema string

// PostgresRepository persists articles and digests into Postgres.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ArticleRepository = (*PostgresRepository)(nil)
var _ ports.DigestRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// KnownIdentities returns the set of article URLs already stored for the
// owner. This set is the dedup ledger.
func (r *PostgresRepository) KnownIdentities(ctx context.Context, ownerID string) (map[string]struct{}, error) {
	query, args, err := r.sb.
		Select("url").
		From(articlesTable).
		Where(sq.Eq{"owner_id": ownerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build known query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query known identities: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		known[url] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return known, nil
}

// SaveArticle inserts a new article row and returns its identity. The body
// is truncated to the content byte ceiling before storage.
func (r *PostgresRepository) SaveArticle(ctx context.Context, article domain.PersistedArticle) (string, error) {
	id := uuid.NewString()

	var publishedAt any
	if article.PublishedAt != nil {
		publishedAt = article.PublishedAt.UTC()
	}

	query, args, err := r.sb.
		Insert(articlesTable).
		Columns("id", "owner_id", "title", "url", "comments_url", "source",
			"content", "summary", "tags", "published_at", "collected_at", "read").
		Values(id, article.OwnerID, article.Title, article.URL, article.CommentsURL, article.Source,
			truncateBytes(article.Content, contentByteCeiling), article.Summary,
			textArray(article.Tags), publishedAt, article.CollectedAt.UTC(), article.Read).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build article insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert article %q: %w", article.Title, err)
	}

	return id, nil
}

// FindByPeriod returns the owner's digest whose window lies within
// [start, end], or nil when the period has no digest yet.
func (r *PostgresRepository) FindByPeriod(ctx context.Context, ownerID string, start, end time.Time) (*domain.Digest, error) {
	query, args, err := r.sb.
		Select("id", "owner_id", "period_start", "period_end", "summary", "article_ids", "key_topics").
		From(digestsTable).
		Where(sq.Eq{"owner_id": ownerID}).
		Where(sq.GtOrEq{"period_start": start}).
		Where(sq.LtOrEq{"period_end": end}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build digest query: %w", err)
	}

	var (
		digest     domain.Digest
		articleIDs pq.StringArray
		keyTopics  pq.StringArray
	)

	row := r.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(&digest.ID, &digest.OwnerID, &digest.PeriodStart, &digest.PeriodEnd,
		&digest.Summary, &articleIDs, &keyTopics)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan digest: %w", err)
	}

	digest.ArticleIDs = articleIDs
	digest.KeyTopics = keyTopics
	return &digest, nil
}

// InsertDigest creates the period's digest row.
func (r *PostgresRepository) InsertDigest(ctx context.Context, digest domain.Digest) (string, error) {
	id := digest.ID
	if id == "" {
		id = uuid.NewString()
	}

	query, args, err := r.sb.
		Insert(digestsTable).
		Columns("id", "owner_id", "period_start", "period_end", "summary", "article_ids", "key_topics").
		Values(id, digest.OwnerID, digest.PeriodStart.UTC(), digest.PeriodEnd.UTC(),
			digest.Summary, textArray(digest.ArticleIDs), textArray(digest.KeyTopics)).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build digest insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert digest: %w", err)
	}

	return id, nil
}

// UpdateDigest applies the merged fields to an existing digest row.
func (r *PostgresRepository) UpdateDigest(ctx context.Context, id string, patch domain.DigestPatch) error {
	query, args, err := r.sb.
		Update(digestsTable).
		Set("summary", patch.Summary).
		Set("article_ids", textArray(patch.ArticleIDs)).
		Set("key_topics", textArray(patch.KeyTopics)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build digest update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update digest %s: %w", id, err)
	}

	return nil
}

// textArray binds a string slice for a NOT NULL TEXT[] column. A nil slice
// would serialize to SQL NULL and fail the insert; an item without tags is a
// valid outcome and must store as an empty array.
func textArray(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

// truncateBytes cuts s to at most limit bytes without splitting a rune.
func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
