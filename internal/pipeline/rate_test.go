package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedSummarized(t *testing.T, d *testDeps, url string) int64 {
	t.Helper()
	id := seedRaw(t, d.store, url, "rated")
	require.NoError(t, d.store.MarkProcessed(context.Background(), id, "summary "+url, []float64{1, 0}, testNow))
	return id
}

func TestRate(t *testing.T) {
	p, d := newTestPipeline(t, Options{})
	ctx := context.Background()
	scored := seedSummarized(t, d, "https://a.com/scored")
	vague := seedSummarized(t, d, "https://a.com/vague")
	failed := seedSummarized(t, d, "https://a.com/failed")

	d.llm.On("Invoke", mock.Anything, prompting("rating", "summary https://a.com/scored")).Return("Impact: 7", true)
	d.llm.On("Invoke", mock.Anything, prompting("rating", "summary https://a.com/vague")).Return("quite high", true)
	d.llm.On("Invoke", mock.Anything, prompting("rating", "summary https://a.com/failed")).Return("", false)

	stats, err := p.Rate(ctx, testProfile())
	require.NoError(t, err)
	assert.Equal(t, RateStats{Selected: 3, Rated: 1, Unparsed: 2}, *stats)

	a, err := d.store.GetArticle(ctx, scored)
	require.NoError(t, err)
	require.NotNil(t, a.ImpactScore)
	assert.Equal(t, 7, *a.ImpactScore)

	for _, id := range []int64{vague, failed} {
		a, err := d.store.GetArticle(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, a.ImpactScore)
	}
}

func TestRate_PromptCarriesProfile(t *testing.T) {
	p, d := newTestPipeline(t, Options{})
	seedSummarized(t, d, "https://a.com/one")

	d.llm.On("Invoke", mock.Anything, prompting("rating", "rate for tech: summary https://a.com/one")).Return("3", true)

	stats, err := p.Rate(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rated)
	d.llm.AssertExpectations(t)
}
