package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/feed"
	"github.com/sells-group/briefing-cli/internal/llm"
	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/quality"
)

// filterMaxTokens bounds the pre-filter response; only a digit is wanted.
const filterMaxTokens = 10

// IngestStats counts what happened to each feed entry.
type IngestStats struct {
	Feeds      int
	FeedErrors int
	Entries    int
	NoLink     int
	Duplicates int
	TooOld     int
	Filtered   int
	Rejected   int
	EmptyFetch int
	Added      int
}

func (s *IngestStats) fields() []zap.Field {
	return []zap.Field{
		zap.Int("feeds", s.Feeds),
		zap.Int("feed_errors", s.FeedErrors),
		zap.Int("entries", s.Entries),
		zap.Int("duplicates", s.Duplicates),
		zap.Int("too_old", s.TooOld),
		zap.Int("filtered", s.Filtered),
		zap.Int("rejected", s.Rejected),
		zap.Int("empty_fetch", s.EmptyFetch),
		zap.Int("added", s.Added),
	}
}

// Ingest reads every feed of the profile and stores new entries. Entries
// below the relevance threshold or failing the quality gate are stored as
// placeholders so they are never fetched again. Running Ingest twice over
// the same feeds adds nothing the second time.
func (p *Pipeline) Ingest(ctx context.Context, prof config.Profile) (*IngestStats, error) {
	ctx = startRun(ctx)
	log := p.logger(ctx, prof.Name, "ingest")
	stats := &IngestStats{}

	existing, err := p.store.CountArticles(ctx, prof.Name)
	if err != nil {
		return stats, eris.Wrap(err, "pipeline: count articles")
	}
	maxAge := prof.Thresholds.MaxAgeDaysNormal
	if existing == 0 {
		maxAge = prof.Thresholds.MaxAgeDaysInitial
		log.Info("pipeline: cold start, using initial age window", zap.Int("max_age_days", maxAge))
	}
	cutoff := p.now().Add(-time.Duration(maxAge) * 24 * time.Hour)

	pace := pacer(p.opts.FetchDelay)
	for _, feedURL := range prof.Feeds {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := pace.Wait(ctx); err != nil {
			return stats, err
		}

		f, err := p.feeds.Fetch(ctx, feedURL)
		if err != nil {
			stats.FeedErrors++
			log.Warn("pipeline: feed fetch failed", zap.String("feed", feedURL), zap.Error(err))
			continue
		}
		stats.Feeds++

		for _, e := range f.Entries {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Entries++
			if err := p.ingestEntry(ctx, prof, f, e, cutoff, stats, pace.Wait); err != nil {
				log.Warn("pipeline: entry failed", zap.String("url", e.Link), zap.Error(err))
			}
		}
	}

	log.Info("pipeline: ingest finished", stats.fields()...)
	return stats, nil
}

func (p *Pipeline) ingestEntry(
	ctx context.Context,
	prof config.Profile,
	f *feed.Feed,
	e feed.Entry,
	cutoff time.Time,
	stats *IngestStats,
	wait func(context.Context) error,
) error {
	log := p.logger(ctx, prof.Name, "ingest").With(zap.String("url", e.Link))
	if e.Link == "" {
		stats.NoLink++
		return nil
	}

	article := &model.Article{
		URL:           e.Link,
		EncodedURL:    feed.EncodeURL(e.Link, p.opts.ProxyBaseURL),
		Title:         e.Title,
		PublishedDate: e.Published,
		FeedSource:    f.SourceName(),
		FeedProfile:   prof.Name,
	}

	exists, err := p.store.ArticleExists(ctx, e.Link)
	if err != nil {
		return eris.Wrap(err, "pipeline: check existing")
	}
	if exists {
		stats.Duplicates++
		return nil
	}

	if e.Published.Before(cutoff) {
		stats.TooOld++
		log.Debug("pipeline: entry too old", zap.Time("published", e.Published))
		return nil
	}

	score := p.filterScore(ctx, prof, e)
	if score < prof.Thresholds.MinFilterScore {
		stats.Filtered++
		log.Info("pipeline: filtered out", zap.Int("score", score), zap.String("title", e.Title))
		return p.save(ctx, article, score, stats)
	}

	rssImage := feed.ResolveImage(e)

	if err := wait(ctx); err != nil {
		return err
	}
	res, err := p.fetcher.Fetch(ctx, article.URL, article.EncodedURL)
	if err != nil {
		stats.EmptyFetch++
		return eris.Wrap(err, "pipeline: fetch content")
	}
	if res.Content == "" {
		// No placeholder: fetch failures are retried on the next run.
		stats.EmptyFetch++
		log.Info("pipeline: no content extracted")
		return nil
	}

	article.BypassUsed = res.UsedProxy
	q := quality.Validate(res.Content)
	if !q.Accepted {
		stats.Rejected++
		log.Info("pipeline: content rejected", zap.String("reason", string(q.Reason)))
		return p.save(ctx, article, model.DemotedFilterScore, stats)
	}
	if q.Warning != "" {
		log.Debug("pipeline: content warning", zap.String("warning", q.Warning))
	}

	article.RawContent = model.Ptr(res.Content)
	article.ImageURL = rssImage
	if article.ImageURL == "" {
		article.ImageURL = res.Image
	}
	if err := p.save(ctx, article, score, stats); err != nil {
		return err
	}
	if article.ID != 0 {
		stats.Added++
	}
	return nil
}

func (p *Pipeline) filterScore(ctx context.Context, prof config.Profile, e feed.Entry) int {
	prompt := render(prof.Prompts.Filter, map[string]string{
		"feed_profile": prof.Name,
		"title":        e.Title,
		"description":  e.Description,
	})
	text, ok := p.llm.Invoke(ctx, llm.Request{
		Prompt:    prompt,
		Model:     prof.Models.Filter,
		MaxTokens: filterMaxTokens,
		Phase:     "filter",
	})
	if !ok {
		return DefaultFilterScore
	}
	return ParseFilterScore(text)
}

// save inserts a with the given pre-filter score. A unique-key collision
// counts as a duplicate and leaves a.ID zero.
func (p *Pipeline) save(ctx context.Context, a *model.Article, score int, stats *IngestStats) error {
	a.InitialFilterScore = model.Ptr(score)
	a.FetchedAt = p.now()
	_, created, err := p.store.CreateArticle(ctx, a)
	if err != nil {
		return eris.Wrap(err, "pipeline: create article")
	}
	if !created {
		stats.Duplicates++
	}
	return nil
}
