package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/feed"
	"github.com/sells-group/briefing-cli/internal/fetcher"
	"github.com/sells-group/briefing-cli/internal/llm"
	"github.com/sells-group/briefing-cli/internal/pipeline"
	"github.com/sells-group/briefing-cli/internal/store"
	anthropicpkg "github.com/sells-group/briefing-cli/pkg/anthropic"
	"github.com/sells-group/briefing-cli/pkg/jina"
	openaipkg "github.com/sells-group/briefing-cli/pkg/openai"
	"github.com/sells-group/briefing-cli/pkg/telegram"
)

// pipelineEnv holds the store and the pipeline built on it.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates the config, opens the store and migrates it.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline opens the store and wires every collaborator. Each profile
// is checked for the backend keys its models need. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, profiles ...config.Profile) (*pipelineEnv, error) {
	for _, p := range profiles {
		if err := cfg.ValidateKeys(p); err != nil {
			return nil, err
		}
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	return &pipelineEnv{Store: st, Pipeline: buildPipeline(cfg, st)}, nil
}

func buildPipeline(c *config.Config, st store.Store) *pipeline.Pipeline {
	var openaiOpts []openaipkg.Option
	if c.OpenAI.BaseURL != "" {
		openaiOpts = append(openaiOpts, openaipkg.WithBaseURL(c.OpenAI.BaseURL))
	}
	openaiClient := openaipkg.NewClient(c.OpenAI.Key, openaiOpts...)
	anthropicClient := anthropicpkg.NewClient(c.Anthropic.Key)

	router := llm.NewRouter(llm.NewOpenAIBackend(openaiClient)).
		Route("claude", llm.NewAnthropicBackend(anthropicClient))
	protocol := llm.NewProtocol(router, llm.Config{
		MaxRetries:      c.LLM.MaxRetries,
		FallbackRetries: c.LLM.FallbackRetries,
		BaseWait:        c.LLM.BaseWait(),
		MaxTokens:       c.LLM.MaxTokens,
		Temperature:     c.LLM.Temperature,
		Fallbacks:       c.LLM.Fallbacks,
	})
	embedder := llm.NewRetryingEmbedder(llm.NewOpenAIEmbedder(openaiClient), c.LLM.MaxRetries, c.LLM.BaseWait())

	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         c.Fetch.UserAgent,
		Timeout:           timeout,
		MaxRetries:        c.Fetch.MaxRetries,
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
	})
	var reader jina.Client
	if c.Jina.Key != "" {
		reader = jina.NewClient(c.Jina.Key, jina.WithBaseURL(c.Jina.BaseURL))
	}

	return pipeline.New(pipeline.Deps{
		Store:    st,
		Feeds:    feed.NewGofeedSource(&http.Client{Timeout: timeout}, c.Fetch.UserAgent),
		Fetcher:  fetcher.NewArticleFetcher(httpFetcher, reader),
		LLM:      protocol,
		Embedder: embedder,
		Notifier: telegram.New(c.Telegram.Token),
	}, pipeline.OptionsFromConfig(c))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
