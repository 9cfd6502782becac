package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/feed"
	"github.com/sells-group/briefing-cli/internal/fetcher"
	"github.com/sells-group/briefing-cli/internal/llm"
	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type mockInvoker struct{ mock.Mock }

func (m *mockInvoker) Invoke(ctx context.Context, req llm.Request) (string, bool) {
	args := m.Called(ctx, req)
	return args.String(0), args.Bool(1)
}

func (m *mockInvoker) Fallback(model string) string {
	return m.Called(model).String(0)
}

type mockEmbedder struct{ mock.Mock }

func (m *mockEmbedder) Embed(ctx context.Context, model, text string) ([]float64, error) {
	args := m.Called(ctx, model, text)
	if v := args.Get(0); v != nil {
		return v.([]float64), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) Fetch(ctx context.Context, rawURL, proxyURL string) (*fetcher.Result, error) {
	args := m.Called(ctx, rawURL, proxyURL)
	if v := args.Get(0); v != nil {
		return v.(*fetcher.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSource struct{ mock.Mock }

func (m *mockSource) Fetch(ctx context.Context, feedURL string) (*feed.Feed, error) {
	args := m.Called(ctx, feedURL)
	if v := args.Get(0); v != nil {
		return v.(*feed.Feed), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, recipientID, message string) {
	m.Called(ctx, recipientID, message)
}

// phase matches an llm.Request by its phase.
func phase(name string) any {
	return mock.MatchedBy(func(r llm.Request) bool { return r.Phase == name })
}

// prompting matches an llm.Request by phase and a prompt substring.
func prompting(name, fragment string) any {
	return mock.MatchedBy(func(r llm.Request) bool {
		return r.Phase == name && strings.Contains(r.Prompt, fragment)
	})
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "briefing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testProfile() config.Profile {
	return config.Profile{
		Name:  "tech",
		Feeds: []string{"https://feeds.example.com/rss"},
		Prompts: config.Prompts{
			Filter:          "filter {feed_profile}: {title} / {description}",
			Summary:         "summarize for {feed_profile}: {article_content}",
			Rating:          "rate for {feed_profile}: {summary}",
			ClusterAnalysis: "analyse {feed_profile}:\n{cluster_summaries_text}",
			Synthesis:       "synthesize {feed_profile}:\n{cluster_analyses_text}",
		},
		Models: config.Models{
			Filter:    "gpt-4o-mini",
			Summary:   "gpt-5-mini",
			Rating:    "gpt-5-mini",
			Cluster:   "gpt-5-mini",
			Brief:     "claude-sonnet-4-5-20250929",
			Embedding: "text-embedding-3-small",
		},
		Thresholds: config.Thresholds{
			MinFilterScore:         3,
			MinImpactScore:         5,
			MinArticlesForBriefing: 4,
			TargetClusters:         2,
			MaxAgeDaysInitial:      7,
			MaxAgeDaysNormal:       3,
		},
		References: config.References{
			Heading:     "## Reference Articles",
			Intro:       "This briefing was generated from %d articles:",
			ImpactLabel: "Impact",
			DateLayout:  "02/01/2006",
		},
	}
}

type testDeps struct {
	store    *store.SQLiteStore
	feeds    *mockSource
	fetcher  *mockFetcher
	llm      *mockInvoker
	embedder *mockEmbedder
	notifier *mockNotifier
}

func newTestPipeline(t *testing.T, opts Options) (*Pipeline, *testDeps) {
	t.Helper()
	d := &testDeps{
		store:    newTestStore(t),
		feeds:    &mockSource{},
		fetcher:  &mockFetcher{},
		llm:      &mockInvoker{},
		embedder: &mockEmbedder{},
		notifier: &mockNotifier{},
	}
	p := New(Deps{
		Store:    d.store,
		Feeds:    d.feeds,
		Fetcher:  d.fetcher,
		LLM:      d.llm,
		Embedder: d.embedder,
		Notifier: d.notifier,
	}, opts)
	p.now = func() time.Time { return testNow }
	return p, d
}

// articleBody returns accepted article text naming topic.
func articleBody(topic string) string {
	return strings.Repeat("The "+topic+" story continues with more detail. ", 20)
}

// seedProcessed stores a processed, rated article ready for briefing.
func seedProcessed(t *testing.T, st store.Store, url string, embedding []float64, impact int) int64 {
	t.Helper()
	ctx := context.Background()
	id, created, err := st.CreateArticle(ctx, &model.Article{
		URL:                url,
		EncodedURL:         "https://proxy.example.com/" + url,
		Title:              "Title " + url,
		PublishedDate:      testNow.Add(-time.Hour),
		FeedSource:         "Example News",
		FeedProfile:        "tech",
		FetchedAt:          testNow,
		RawContent:         model.Ptr(articleBody(url)),
		InitialFilterScore: model.Ptr(4),
	})
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, st.MarkProcessed(ctx, id, "summary of "+url, embedding, testNow))
	require.NoError(t, st.SetImpactScore(ctx, id, impact))
	return id
}
