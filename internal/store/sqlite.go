package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/briefing-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. List-valued columns
// are JSON text; encoding never leaves this file.
type SQLiteStore struct {
	db *sql.DB
}

// sqliteParams are applied by the driver to every pooled connection.
// Immediate transactions take the write lock up front so busy_timeout
// covers them too.
const sqliteParams = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"

// sqliteDSN appends the connection parameters to a path or file: URI.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteParams
	}
	return dsn + "?" + sqliteParams
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	url                  TEXT NOT NULL UNIQUE,
	encoded_url          TEXT NOT NULL UNIQUE,
	title                TEXT NOT NULL DEFAULT '',
	published_date       DATETIME NOT NULL,
	feed_source          TEXT NOT NULL DEFAULT '',
	feed_profile         TEXT NOT NULL DEFAULT 'default',
	fetched_at           DATETIME NOT NULL,
	raw_content          TEXT,
	image_url            TEXT,
	processed_content    TEXT,
	embedding            TEXT,
	processed_at         DATETIME,
	impact_score         INTEGER,
	initial_filter_score INTEGER,
	briefing_analyzed    INTEGER NOT NULL DEFAULT 0,
	brief_ids            TEXT NOT NULL DEFAULT '[]',
	bypass_used          INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_articles_profile_fetched ON articles(feed_profile, fetched_at);
CREATE INDEX IF NOT EXISTS idx_articles_profile_processed ON articles(feed_profile, processed_at);

CREATE TABLE IF NOT EXISTS briefs (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	generated_at             DATETIME NOT NULL,
	brief_markdown           TEXT NOT NULL,
	contributing_article_ids TEXT NOT NULL DEFAULT '[]',
	feed_profile             TEXT NOT NULL DEFAULT 'default'
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CountArticles(ctx context.Context, profile string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM articles WHERE feed_profile = ?`, profile).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count articles %s", profile)
}

func (s *SQLiteStore) ArticleExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM articles WHERE url = ?)`, url).Scan(&exists)
	return exists, eris.Wrap(err, "sqlite: article exists")
}

func (s *SQLiteStore) CreateArticle(ctx context.Context, a *model.Article) (int64, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (url, encoded_url, title, published_date, feed_source, feed_profile,
			fetched_at, raw_content, image_url, initial_filter_score, bypass_used, brief_ids)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]')
		 ON CONFLICT DO NOTHING`,
		a.URL, a.EncodedURL, a.Title, a.PublishedDate.UTC(), a.FeedSource, a.FeedProfile,
		a.FetchedAt.UTC(), a.RawContent, nullIfEmpty(a.ImageURL), a.InitialFilterScore, a.BypassUsed,
	)
	if err != nil {
		return 0, false, eris.Wrapf(err, "sqlite: create article %s", a.URL)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: last insert id")
	}
	a.ID = id
	return id, true, nil
}

func (s *SQLiteStore) GetArticle(ctx context.Context, id int64) (*model.Article, error) {
	query, args, err := sq.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get article")
	}
	a, err := scanSQLiteArticle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("article", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get article %d", id)
	}
	return a, nil
}

func (s *SQLiteStore) ListArticles(ctx context.Context, filter ArticleFilter) ([]model.Article, error) {
	query, args, err := buildArticleQuery(filter, sq.Question)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list articles")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Article
	for rows.Next() {
		a, err := scanSQLiteArticle(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan article")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list articles iterate")
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, id int64, summary string, embedding []float64, at time.Time) error {
	if err := validateProcessed(summary, embedding); err != nil {
		return err
	}
	vec, err := json.Marshal(embedding)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal embedding")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET processed_content = ?, embedding = ?, processed_at = ? WHERE id = ?`,
		summary, string(vec), at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark processed %d", id)
	}
	return checkRowsAffected(res, "article", id)
}

func (s *SQLiteStore) SetFilterScore(ctx context.Context, id int64, score int) error {
	if err := validateScore("filter", score, 1, 5); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE articles SET initial_filter_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set filter score %d", id)
	}
	return checkRowsAffected(res, "article", id)
}

func (s *SQLiteStore) SetImpactScore(ctx context.Context, id int64, score int) error {
	if err := validateScore("impact", score, 1, 10); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE articles SET impact_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set impact score %d", id)
	}
	return checkRowsAffected(res, "article", id)
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT feed_profile FROM articles ORDER BY feed_profile`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list profiles")
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list profiles iterate")
}

func (s *SQLiteStore) SaveBrief(ctx context.Context, b *model.Brief, consideredIDs []int64) (int64, error) {
	contributing := b.ContributingArticleIDs
	if contributing == nil {
		contributing = []int64{}
	}
	ids, err := json.Marshal(contributing)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal contributing ids")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO briefs (generated_at, brief_markdown, contributing_article_ids, feed_profile) VALUES (?, ?, ?, ?)`,
		b.GeneratedAt.UTC(), b.Markdown, string(ids), b.FeedProfile,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert brief")
	}
	briefID, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}

	mark, args, err := sq.Update("articles").Set("briefing_analyzed", true).
		Where(sq.Eq{"id": consideredIDs}).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: build mark analyzed")
	}
	if _, err := tx.ExecContext(ctx, mark, args...); err != nil {
		return 0, eris.Wrap(err, "sqlite: mark briefing analyzed")
	}

	for _, articleID := range contributing {
		if err := appendBriefID(ctx, tx, articleID, briefID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit brief")
	}
	b.ID = briefID
	return briefID, nil
}

func appendBriefID(ctx context.Context, tx *sql.Tx, articleID, briefID int64) error {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT brief_ids FROM articles WHERE id = ?`, articleID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("article", articleID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: read brief ids %d", articleID)
	}

	ids, err := decodeIDs(raw)
	if err != nil {
		return err
	}
	if slices.Contains(ids, briefID) {
		return nil
	}
	out, err := json.Marshal(append(ids, briefID))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal brief ids")
	}
	_, err = tx.ExecContext(ctx, `UPDATE articles SET brief_ids = ? WHERE id = ?`, string(out), articleID)
	return eris.Wrapf(err, "sqlite: append brief id %d", articleID)
}

func (s *SQLiteStore) GetBrief(ctx context.Context, id int64) (*model.Brief, error) {
	var b model.Brief
	var ids string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, generated_at, brief_markdown, contributing_article_ids, feed_profile FROM briefs WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.GeneratedAt, &b.Markdown, &ids, &b.FeedProfile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("brief", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get brief %d", id)
	}
	if b.ContributingArticleIDs, err = decodeIDs(ids); err != nil {
		return nil, err
	}
	return &b, nil
}

// scannable is satisfied by *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteArticle(row scannable) (*model.Article, error) {
	var (
		a           model.Article
		raw, image  sql.NullString
		summary     sql.NullString
		embedding   sql.NullString
		processedAt sql.NullTime
		impact      sql.NullInt64
		filter      sql.NullInt64
		briefIDs    string
	)
	err := row.Scan(
		&a.ID, &a.URL, &a.EncodedURL, &a.Title, &a.PublishedDate, &a.FeedSource,
		&a.FeedProfile, &a.FetchedAt, &raw, &image,
		&summary, &embedding, &processedAt, &impact,
		&filter, &a.BriefingAnalyzed, &briefIDs, &a.BypassUsed,
	)
	if err != nil {
		return nil, err
	}

	if raw.Valid {
		a.RawContent = &raw.String
	}
	a.ImageURL = image.String
	if summary.Valid {
		a.ProcessedContent = &summary.String
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &a.Embedding); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal embedding")
		}
	}
	if processedAt.Valid {
		a.ProcessedAt = &processedAt.Time
	}
	if impact.Valid {
		a.ImpactScore = model.Ptr(int(impact.Int64))
	}
	if filter.Valid {
		a.InitialFilterScore = model.Ptr(int(filter.Int64))
	}
	if a.BriefIDs, err = decodeIDs(briefIDs); err != nil {
		return nil, err
	}
	return &a, nil
}

func decodeIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal ids")
	}
	return ids, nil
}

func checkRowsAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}
