package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Telegram  TelegramConfig  `yaml:"telegram" mapstructure:"telegram"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Profiles  ProfilesConfig  `yaml:"profiles" mapstructure:"profiles"`
	Defaults  Profile         `yaml:"defaults" mapstructure:"defaults"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// OpenAIConfig configures the OpenAI backend used for chat and embeddings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig configures the Jina reader fallback. Empty key disables it.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// TelegramConfig configures brief notifications. Empty token disables them.
type TelegramConfig struct {
	Token string `yaml:"token" mapstructure:"token"`
}

// FetchConfig configures article and feed retrieval.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	ProxyBaseURL      string  `yaml:"proxy_base_url" mapstructure:"proxy_base_url"`
}

// LLMConfig configures the retry and fallback protocol shared by all stages.
type LLMConfig struct {
	MaxRetries      int               `yaml:"max_retries" mapstructure:"max_retries"`
	FallbackRetries int               `yaml:"fallback_retries" mapstructure:"fallback_retries"`
	BaseWaitMs      int               `yaml:"base_wait_ms" mapstructure:"base_wait_ms"`
	MaxTokens       int64             `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature     float64           `yaml:"temperature" mapstructure:"temperature"`
	Fallbacks       map[string]string `yaml:"fallbacks" mapstructure:"fallbacks"`
}

// BaseWait returns the first retry wait.
func (c LLMConfig) BaseWait() time.Duration {
	return time.Duration(c.BaseWaitMs) * time.Millisecond
}

// PipelineConfig configures batch sizes, delays and clustering.
type PipelineConfig struct {
	BatchSize              int    `yaml:"batch_size" mapstructure:"batch_size"`
	ContentPrefixChars     int    `yaml:"content_prefix_chars" mapstructure:"content_prefix_chars"`
	MaxSummariesPerCluster int    `yaml:"max_summaries_per_cluster" mapstructure:"max_summaries_per_cluster"`
	TopClusters            int    `yaml:"top_clusters" mapstructure:"top_clusters"`
	ClusterSeed            uint64 `yaml:"cluster_seed" mapstructure:"cluster_seed"`
	ClusterRestarts        int    `yaml:"cluster_restarts" mapstructure:"cluster_restarts"`
	FetchDelayMs           int    `yaml:"fetch_delay_ms" mapstructure:"fetch_delay_ms"`
	ProcessDelayMs         int    `yaml:"process_delay_ms" mapstructure:"process_delay_ms"`
	RateDelayMs            int    `yaml:"rate_delay_ms" mapstructure:"rate_delay_ms"`
	ClusterDelayMs         int    `yaml:"cluster_delay_ms" mapstructure:"cluster_delay_ms"`
	DiagnosticsDir         string `yaml:"diagnostics_dir" mapstructure:"diagnostics_dir"`
	MaxConcurrentProfiles  int    `yaml:"max_concurrent_profiles" mapstructure:"max_concurrent_profiles"`
}

// ProfilesConfig locates profile override files.
type ProfilesConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Default string `yaml:"default" mapstructure:"default"`
}

// ScheduleConfig configures the cron scheduler. Specs include a seconds field.
type ScheduleConfig struct {
	Prepare  string   `yaml:"prepare" mapstructure:"prepare"`
	Brief    string   `yaml:"brief" mapstructure:"brief"`
	Profiles []string `yaml:"profiles" mapstructure:"profiles"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path looks
// for an optional config.yaml in the working directory; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("BRIEFING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "briefing.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Secrets default to empty so AutomaticEnv can bind them.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("jina.key", "")
	v.SetDefault("telegram.token", "")

	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; briefing-cli/1.0)")
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.requests_per_second", 1.0)
	v.SetDefault("fetch.proxy_base_url", "https://marreta.galdinho.news/p/")

	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.fallback_retries", 2)
	v.SetDefault("llm.base_wait_ms", 2000)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.fallbacks", map[string]string{"gpt-5-nano": "gpt-5-mini"})

	v.SetDefault("pipeline.batch_size", 1000)
	v.SetDefault("pipeline.content_prefix_chars", 4000)
	v.SetDefault("pipeline.max_summaries_per_cluster", 10)
	v.SetDefault("pipeline.top_clusters", 5)
	v.SetDefault("pipeline.cluster_seed", 42)
	v.SetDefault("pipeline.cluster_restarts", 10)
	v.SetDefault("pipeline.fetch_delay_ms", 500)
	v.SetDefault("pipeline.process_delay_ms", 1000)
	v.SetDefault("pipeline.rate_delay_ms", 1000)
	v.SetDefault("pipeline.cluster_delay_ms", 1000)
	v.SetDefault("pipeline.diagnostics_dir", "diagnostics")
	v.SetDefault("pipeline.max_concurrent_profiles", 2)

	v.SetDefault("profiles.dir", "profiles")
	v.SetDefault("profiles.default", "default")

	v.SetDefault("schedule.prepare", "0 0 * * * *")
	v.SetDefault("schedule.brief", "0 30 7,19 * * *")
	v.SetDefault("schedule.profiles", []string{"default"})

	v.SetDefault("defaults.prompts.filter", DefaultFilterPrompt)
	v.SetDefault("defaults.prompts.summary", DefaultSummaryPrompt)
	v.SetDefault("defaults.prompts.rating", DefaultRatingPrompt)
	v.SetDefault("defaults.prompts.cluster_analysis", DefaultClusterAnalysisPrompt)
	v.SetDefault("defaults.prompts.synthesis", DefaultSynthesisPrompt)
	v.SetDefault("defaults.models.filter", "gpt-4o-mini")
	v.SetDefault("defaults.models.summary", "gpt-5-mini")
	v.SetDefault("defaults.models.rating", "gpt-5-mini")
	v.SetDefault("defaults.models.cluster", "gpt-5-mini")
	v.SetDefault("defaults.models.brief", "claude-sonnet-4-5-20250929")
	v.SetDefault("defaults.models.embedding", "text-embedding-3-small")
	v.SetDefault("defaults.thresholds.min_filter_score", 3)
	v.SetDefault("defaults.thresholds.min_impact_score", 5)
	v.SetDefault("defaults.thresholds.min_articles_for_briefing", 15)
	v.SetDefault("defaults.thresholds.target_clusters", 10)
	v.SetDefault("defaults.thresholds.max_age_days_initial", 7)
	v.SetDefault("defaults.thresholds.max_age_days_normal", 3)
	v.SetDefault("defaults.references.heading", "## Reference Articles")
	v.SetDefault("defaults.references.intro", "This briefing was generated from %d articles:")
	v.SetDefault("defaults.references.impact_label", "Impact")
	v.SetDefault("defaults.references.date_layout", "02/01/2006")
}

// Validate checks settings that every command depends on.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.LLM.MaxRetries < 1 {
		return eris.New("config: llm.max_retries must be at least 1")
	}
	if c.Pipeline.BatchSize < 1 {
		return eris.New("config: pipeline.batch_size must be at least 1")
	}
	return nil
}

// ValidateKeys checks that every model the profile selects has a backend key.
func (c *Config) ValidateKeys(p Profile) error {
	models := []string{p.Models.Filter, p.Models.Summary, p.Models.Rating, p.Models.Cluster, p.Models.Brief}
	for _, m := range models {
		if IsAnthropicModel(m) && c.Anthropic.Key == "" {
			return eris.Errorf("config: anthropic.key is required for model %s", m)
		}
		if !IsAnthropicModel(m) && c.OpenAI.Key == "" {
			return eris.Errorf("config: openai.key is required for model %s", m)
		}
	}
	if c.OpenAI.Key == "" {
		return eris.New("config: openai.key is required for embeddings")
	}
	return nil
}

// IsAnthropicModel reports whether a model id is served by Anthropic.
func IsAnthropicModel(model string) bool {
	return strings.HasPrefix(model, "claude")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
