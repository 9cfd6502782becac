package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/briefing-cli/internal/config"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store:    config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "briefing.db")},
		LLM:      config.LLMConfig{MaxRetries: 3, FallbackRetries: 2, BaseWaitMs: 1},
		Pipeline: config.PipelineConfig{BatchSize: 10, MaxConcurrentProfiles: 2},
		Profiles: config.ProfilesConfig{Dir: t.TempDir()},
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	withConfig(t, testConfig(t))

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	n, err := st.CountArticles(context.Background(), "default")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "mongo"
	withConfig(t, c)

	_, err := initStore(context.Background())
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestOpenStore_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Store.DatabaseURL = ""
	withConfig(t, c)

	_, err := openStore(context.Background())
	assert.ErrorContains(t, err, "database_url")
}

func TestInitPipeline_RequiresKeys(t *testing.T) {
	c := testConfig(t)
	c.OpenAI.Key = "sk-test"
	withConfig(t, c)
	prof := config.Profile{Name: "tech", Models: config.Models{Brief: "claude-sonnet-4-5-20250929"}}

	_, err := initPipeline(context.Background(), prof)
	assert.ErrorContains(t, err, "anthropic.key")
}

func TestInitPipeline(t *testing.T) {
	c := testConfig(t)
	c.OpenAI.Key = "sk-test"
	c.Anthropic.Key = "sk-ant-test"
	c.Jina.Key = "jina-test"
	withConfig(t, c)

	prof := config.Profile{Name: "tech", Models: config.Models{
		Filter: "gpt-4o-mini", Summary: "gpt-5-mini", Rating: "gpt-5-mini",
		Cluster: "gpt-5-mini", Brief: "claude-sonnet-4-5-20250929",
	}}
	env, err := initPipeline(context.Background(), prof)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Pipeline)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"added": 2}))
	assert.Equal(t, "{\n  \"added\": 2\n}\n", buf.String())
}
