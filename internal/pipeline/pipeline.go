// Package pipeline implements the ingestion, processing, rating and brief
// stages for feed profiles.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/feed"
	"github.com/sells-group/briefing-cli/internal/fetcher"
	"github.com/sells-group/briefing-cli/internal/llm"
	"github.com/sells-group/briefing-cli/internal/store"
	"github.com/sells-group/briefing-cli/pkg/telegram"
)

// Options holds the stage settings that do not vary by profile.
type Options struct {
	BatchSize              int
	ContentPrefixChars     int
	MaxSummariesPerCluster int
	TopClusters            int
	ClusterSeed            uint64
	ClusterRestarts        int
	FetchDelay             time.Duration
	ProcessDelay           time.Duration
	RateDelay              time.Duration
	ClusterDelay           time.Duration
	DiagnosticsDir         string
	ProxyBaseURL           string
}

// OptionsFromConfig maps the application config onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	pc := cfg.Pipeline
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return Options{
		BatchSize:              pc.BatchSize,
		ContentPrefixChars:     pc.ContentPrefixChars,
		MaxSummariesPerCluster: pc.MaxSummariesPerCluster,
		TopClusters:            pc.TopClusters,
		ClusterSeed:            pc.ClusterSeed,
		ClusterRestarts:        pc.ClusterRestarts,
		FetchDelay:             ms(pc.FetchDelayMs),
		ProcessDelay:           ms(pc.ProcessDelayMs),
		RateDelay:              ms(pc.RateDelayMs),
		ClusterDelay:           ms(pc.ClusterDelayMs),
		DiagnosticsDir:         pc.DiagnosticsDir,
		ProxyBaseURL:           cfg.Fetch.ProxyBaseURL,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	if o.ContentPrefixChars <= 0 {
		o.ContentPrefixChars = 4000
	}
	if o.MaxSummariesPerCluster <= 0 {
		o.MaxSummariesPerCluster = 10
	}
	if o.TopClusters <= 0 {
		o.TopClusters = 5
	}
	return o
}

// Deps are the collaborators a Pipeline calls.
type Deps struct {
	Store    store.Store
	Feeds    feed.Source
	Fetcher  fetcher.Fetcher
	LLM      llm.Invoker
	Embedder llm.Embedder
	Notifier telegram.Notifier
}

// Pipeline runs the stages for one profile at a time. Distinct profiles may
// run concurrently on the same Pipeline.
type Pipeline struct {
	store    store.Store
	feeds    feed.Source
	fetcher  fetcher.Fetcher
	llm      llm.Invoker
	embedder llm.Embedder
	notifier telegram.Notifier
	opts     Options
	now      func() time.Time
}

// New creates a Pipeline. A nil Notifier drops notifications.
func New(deps Deps, opts Options) *Pipeline {
	n := deps.Notifier
	if n == nil {
		n = telegram.Noop{}
	}
	return &Pipeline{
		store:    deps.Store,
		feeds:    deps.Feeds,
		fetcher:  deps.Fetcher,
		llm:      deps.LLM,
		embedder: deps.Embedder,
		notifier: n,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

type runIDKey struct{}

// WithRunID tags ctx so every stage started under it logs id as its run_id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run id carried by ctx, or "" when there is none.
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// startRun mints a run id unless an enclosing call already set one.
func startRun(ctx context.Context) context.Context {
	if RunIDFrom(ctx) != "" {
		return ctx
	}
	return WithRunID(ctx, uuid.NewString())
}

func (p *Pipeline) logger(ctx context.Context, profile, stage string) *zap.Logger {
	return zap.L().With(
		zap.String("profile", profile),
		zap.String("stage", stage),
		zap.String("run_id", RunIDFrom(ctx)),
	)
}

// pacer returns a limiter that admits one event per d. The first event is
// never delayed; d <= 0 disables pacing.
func pacer(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// trackStage runs fn and logs its outcome and duration.
func trackStage(log *zap.Logger, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Error("pipeline: stage failed", zap.Int64("duration_ms", duration), zap.Error(err))
		return err
	}
	log.Info("pipeline: stage complete", zap.Int64("duration_ms", duration))
	return nil
}
