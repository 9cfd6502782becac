package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "https://marreta.galdinho.news/p/", cfg.Fetch.ProxyBaseURL)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 2, cfg.LLM.FallbackRetries)
	assert.Equal(t, int64(2048), cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, "gpt-5-mini", cfg.LLM.Fallbacks["gpt-5-nano"])
	assert.Equal(t, 1000, cfg.Pipeline.BatchSize)
	assert.Equal(t, 4000, cfg.Pipeline.ContentPrefixChars)
	assert.Equal(t, uint64(42), cfg.Pipeline.ClusterSeed)
	assert.Equal(t, 500, cfg.Pipeline.FetchDelayMs)

	d := cfg.Defaults
	assert.Equal(t, "gpt-4o-mini", d.Models.Filter)
	assert.Equal(t, "claude-sonnet-4-5-20250929", d.Models.Brief)
	assert.Equal(t, "text-embedding-3-small", d.Models.Embedding)
	assert.Equal(t, 3, d.Thresholds.MinFilterScore)
	assert.Equal(t, 5, d.Thresholds.MinImpactScore)
	assert.Equal(t, 15, d.Thresholds.MinArticlesForBriefing)
	assert.Equal(t, 10, d.Thresholds.TargetClusters)
	assert.Equal(t, 7, d.Thresholds.MaxAgeDaysInitial)
	assert.Equal(t, 3, d.Thresholds.MaxAgeDaysNormal)
	assert.Contains(t, d.Prompts.Summary, "{article_content}")
	assert.Contains(t, d.Prompts.Synthesis, "{cluster_analyses_text}")

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/briefing
log:
  level: debug
  format: console
defaults:
  thresholds:
    min_impact_score: 6
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 6, cfg.Defaults.Thresholds.MinImpactScore)
	// Defaults still apply for unset values
	assert.Equal(t, 15, cfg.Defaults.Thresholds.MinArticlesForBriefing)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "briefing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  database_url: custom.db\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom.db", cfg.Store.DatabaseURL)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("BRIEFING_LOG_LEVEL", "warn")
	t.Setenv("BRIEFING_OPENAI_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-test", cfg.OpenAI.Key)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "unknown store.driver")

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	assert.ErrorContains(t, cfg.Validate(), "database_url")
}

func TestValidateKeys(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.ErrorContains(t, cfg.ValidateKeys(cfg.Defaults), "openai.key")

	cfg.OpenAI.Key = "sk"
	assert.ErrorContains(t, cfg.ValidateKeys(cfg.Defaults), "anthropic.key")

	cfg.Anthropic.Key = "ak"
	assert.NoError(t, cfg.ValidateKeys(cfg.Defaults))
}

func TestIsAnthropicModel(t *testing.T) {
	assert.True(t, IsAnthropicModel("claude-sonnet-4-5-20250929"))
	assert.False(t, IsAnthropicModel("gpt-5-mini"))
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}
