package store

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/briefing-cli/internal/db"
	"github.com/sells-group/briefing-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. Embeddings and brief ids
// live in native array columns.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id                   BIGSERIAL PRIMARY KEY,
	url                  TEXT NOT NULL UNIQUE,
	encoded_url          TEXT NOT NULL UNIQUE,
	title                TEXT NOT NULL DEFAULT '',
	published_date       TIMESTAMPTZ NOT NULL,
	feed_source          TEXT NOT NULL DEFAULT '',
	feed_profile         TEXT NOT NULL DEFAULT 'default',
	fetched_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	raw_content          TEXT,
	image_url            TEXT,
	processed_content    TEXT,
	embedding            DOUBLE PRECISION[],
	processed_at         TIMESTAMPTZ,
	impact_score         INTEGER CHECK (impact_score BETWEEN 1 AND 10),
	initial_filter_score INTEGER CHECK (initial_filter_score BETWEEN 1 AND 5),
	briefing_analyzed    BOOLEAN NOT NULL DEFAULT false,
	brief_ids            BIGINT[] NOT NULL DEFAULT '{}',
	bypass_used          BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_articles_profile_fetched ON articles(feed_profile, fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_profile_processed ON articles(feed_profile, processed_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_unanalyzed ON articles(feed_profile, impact_score DESC) WHERE briefing_analyzed = false;

CREATE TABLE IF NOT EXISTS briefs (
	id                       BIGSERIAL PRIMARY KEY,
	generated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	brief_markdown           TEXT NOT NULL,
	contributing_article_ids BIGINT[] NOT NULL DEFAULT '{}',
	feed_profile             TEXT NOT NULL DEFAULT 'default'
);

CREATE INDEX IF NOT EXISTS idx_briefs_profile_generated ON briefs(feed_profile, generated_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CountArticles(ctx context.Context, profile string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM articles WHERE feed_profile = $1`, profile).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count articles %s", profile)
	}
	return n, nil
}

func (s *PostgresStore) ArticleExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM articles WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: article exists")
	}
	return exists, nil
}

func (s *PostgresStore) CreateArticle(ctx context.Context, a *model.Article) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO articles (url, encoded_url, title, published_date, feed_source, feed_profile,
			fetched_at, raw_content, image_url, initial_filter_score, bypass_used)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		a.URL, a.EncodedURL, a.Title, a.PublishedDate.UTC(), a.FeedSource, a.FeedProfile,
		a.FetchedAt.UTC(), a.RawContent, nullIfEmpty(a.ImageURL), a.InitialFilterScore, a.BypassUsed,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrapf(err, "postgres: create article %s", a.URL)
	}
	a.ID = id
	return id, true, nil
}

func (s *PostgresStore) GetArticle(ctx context.Context, id int64) (*model.Article, error) {
	query, args, err := sq.Select(articleColumns...).From("articles").
		Where(sq.Eq{"id": id}).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get article")
	}

	a, err := scanPostgresArticle(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("article", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get article %d", id)
	}
	return a, nil
}

func (s *PostgresStore) ListArticles(ctx context.Context, filter ArticleFilter) ([]model.Article, error) {
	query, args, err := buildArticleQuery(filter, sq.Dollar)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list articles")
	}
	defer rows.Close()

	var out []model.Article
	for rows.Next() {
		a, err := scanPostgresArticle(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan article")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list articles iterate")
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id int64, summary string, embedding []float64, at time.Time) error {
	if err := validateProcessed(summary, embedding); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE articles SET processed_content = $1, embedding = $2, processed_at = $3 WHERE id = $4`,
		summary, embedding, at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark processed %d", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("article", id)
	}
	return nil
}

func (s *PostgresStore) SetFilterScore(ctx context.Context, id int64, score int) error {
	if err := validateScore("filter", score, 1, 5); err != nil {
		return err
	}
	return s.updateScore(ctx, `UPDATE articles SET initial_filter_score = $1 WHERE id = $2`, id, score)
}

func (s *PostgresStore) SetImpactScore(ctx context.Context, id int64, score int) error {
	if err := validateScore("impact", score, 1, 10); err != nil {
		return err
	}
	return s.updateScore(ctx, `UPDATE articles SET impact_score = $1 WHERE id = $2`, id, score)
}

func (s *PostgresStore) updateScore(ctx context.Context, query string, id int64, score int) error {
	tag, err := s.pool.Exec(ctx, query, score, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update score %d", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("article", id)
	}
	return nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT feed_profile FROM articles ORDER BY feed_profile`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profiles")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list profiles iterate")
}

func (s *PostgresStore) SaveBrief(ctx context.Context, b *model.Brief, consideredIDs []int64) (int64, error) {
	contributing := b.ContributingArticleIDs
	if contributing == nil {
		contributing = []int64{}
	}

	var id int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO briefs (generated_at, brief_markdown, contributing_article_ids, feed_profile)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			b.GeneratedAt.UTC(), b.Markdown, contributing, b.FeedProfile,
		).Scan(&id)
		if err != nil {
			return eris.Wrap(err, "postgres: insert brief")
		}

		if _, err := tx.Exec(ctx,
			`UPDATE articles SET briefing_analyzed = true WHERE id = ANY($1)`,
			consideredIDs,
		); err != nil {
			return eris.Wrap(err, "postgres: mark briefing analyzed")
		}

		if _, err := tx.Exec(ctx,
			`UPDATE articles SET brief_ids = array_append(brief_ids, $1)
			 WHERE id = ANY($2) AND NOT ($1 = ANY(brief_ids))`,
			id, contributing,
		); err != nil {
			return eris.Wrap(err, "postgres: append brief ids")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	b.ID = id
	return id, nil
}

func (s *PostgresStore) GetBrief(ctx context.Context, id int64) (*model.Brief, error) {
	var b model.Brief
	err := s.pool.QueryRow(ctx,
		`SELECT id, generated_at, brief_markdown, contributing_article_ids, feed_profile FROM briefs WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.GeneratedAt, &b.Markdown, &b.ContributingArticleIDs, &b.FeedProfile)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("brief", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get brief %d", id)
	}
	return &b, nil
}

func scanPostgresArticle(row pgx.Row) (*model.Article, error) {
	var a model.Article
	var image *string
	err := row.Scan(
		&a.ID, &a.URL, &a.EncodedURL, &a.Title, &a.PublishedDate, &a.FeedSource,
		&a.FeedProfile, &a.FetchedAt, &a.RawContent, &image,
		&a.ProcessedContent, &a.Embedding, &a.ProcessedAt, &a.ImpactScore,
		&a.InitialFilterScore, &a.BriefingAnalyzed, &a.BriefIDs, &a.BypassUsed,
	)
	if err != nil {
		return nil, err
	}
	if image != nil {
		a.ImageURL = *image
	}
	return &a, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
