package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/briefing-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_CountArticles(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM articles WHERE feed_profile = \$1`).
		WithArgs("tech").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountArticles(context.Background(), "tech")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateArticle_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &model.Article{
		URL:           "https://example.com/a",
		EncodedURL:    "https://proxy/p/https:%2F%2Fexample.com%2Fa",
		Title:         "A",
		FeedSource:    "https://example.com/rss",
		FeedProfile:   "tech",
		PublishedDate: now,
		FetchedAt:     now,
		RawContent:    model.Ptr("body"),
	}

	mock.ExpectQuery(`(?s)INSERT INTO articles .* ON CONFLICT DO NOTHING\s+RETURNING id`).
		WithArgs(a.URL, a.EncodedURL, "A", now, a.FeedSource, "tech", now, a.RawContent, (*string)(nil), (*int)(nil), false).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, created, err := s.CreateArticle(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, int64(11), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateArticle_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO articles`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	id, created, err := s.CreateArticle(context.Background(), &model.Article{URL: "https://example.com/a"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetArticle_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, url, .* FROM articles WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetArticle(context.Background(), 404)
	assert.ErrorContains(t, err, "article not found: 404")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListArticles(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	summary := "summary"

	rows := pgxmock.NewRows(articleColumns).AddRow(
		int64(1), "https://example.com/a", "https://proxy/a", "A", now, "src",
		"tech", now, model.Ptr("body"), model.Ptr("https://img"),
		&summary, []float64{0.1, 0.2}, &now, model.Ptr(7),
		model.Ptr(4), false, []int64{3}, true,
	)
	mock.ExpectQuery(`FROM articles WHERE feed_profile = \$1 AND .* ORDER BY impact_score DESC, processed_at DESC`).
		WithArgs("tech", 5, false).
		WillReturnRows(rows)

	got, err := s.ListArticles(context.Background(), CandidateFilter("tech", 5))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://img", got[0].ImageURL)
	assert.Equal(t, []float64{0.1, 0.2}, got[0].Embedding)
	assert.Equal(t, 7, *got[0].ImpactScore)
	assert.Equal(t, []int64{3}, got[0].BriefIDs)
	assert.True(t, got[0].BypassUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkProcessed(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE articles SET processed_content = \$1, embedding = \$2, processed_at = \$3 WHERE id = \$4`).
		WithArgs("sum", []float64{1, 2}, at, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkProcessed(context.Background(), 5, "sum", []float64{1, 2}, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkProcessed_RequiresBothFields(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.MarkProcessed(context.Background(), 5, "sum", nil, time.Now())
	assert.ErrorContains(t, err, "both summary and embedding")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetImpactScore_Range(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	assert.ErrorContains(t, s.SetImpactScore(context.Background(), 1, 11), "outside 1-10")
	assert.ErrorContains(t, s.SetFilterScore(context.Background(), 1, 0), "outside 1-5")
}

func TestPostgresStore_SetFilterScore_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE articles SET initial_filter_score = \$1 WHERE id = \$2`).
		WithArgs(2, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetFilterScore(context.Background(), 9, 2)
	assert.ErrorContains(t, err, "article not found: 9")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBrief(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	b := &model.Brief{GeneratedAt: at, Markdown: "# Brief", ContributingArticleIDs: []int64{1, 2}, FeedProfile: "tech"}

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)INSERT INTO briefs .* RETURNING id`).
		WithArgs(at, "# Brief", []int64{1, 2}, "tech").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(`UPDATE articles SET briefing_analyzed = true WHERE id = ANY\(\$1\)`).
		WithArgs([]int64{1, 2, 3}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec(`UPDATE articles SET brief_ids = array_append\(brief_ids, \$1\)`).
		WithArgs(int64(42), []int64{1, 2}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	id, err := s.SaveBrief(context.Background(), b, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBrief_RollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO briefs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(`UPDATE articles SET briefing_analyzed`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := s.SaveBrief(context.Background(), &model.Brief{FeedProfile: "tech"}, []int64{1})
	assert.ErrorContains(t, err, "mark briefing analyzed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBrief_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM briefs WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetBrief(context.Background(), 3)
	assert.ErrorContains(t, err, "brief not found: 3")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS articles`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
