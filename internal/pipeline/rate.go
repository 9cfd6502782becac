package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/llm"
	"github.com/sells-group/briefing-cli/internal/store"
)

// RateStats counts the outcomes of one rating batch.
type RateStats struct {
	Selected int
	Rated    int
	Unparsed int
	Errors   int
}

// Rate scores processed, unrated articles 1-10. Articles whose response has
// no usable score stay unrated and are retried on the next run.
func (p *Pipeline) Rate(ctx context.Context, prof config.Profile) (*RateStats, error) {
	ctx = startRun(ctx)
	log := p.logger(ctx, prof.Name, "rate")
	stats := &RateStats{}

	articles, err := p.store.ListArticles(ctx, store.UnratedFilter(prof.Name, p.opts.BatchSize))
	if err != nil {
		return stats, eris.Wrap(err, "pipeline: list unrated")
	}
	stats.Selected = len(articles)

	pace := pacer(p.opts.RateDelay)
	for _, a := range articles {
		if err := pace.Wait(ctx); err != nil {
			return stats, err
		}

		prompt := render(prof.Prompts.Rating, map[string]string{
			"summary":      a.Summary(),
			"feed_profile": prof.Name,
		})
		text, ok := p.llm.Invoke(ctx, llm.Request{
			Prompt: prompt,
			Model:  prof.Models.Rating,
			Phase:  "rating",
		})
		score, parsed := ParseImpactScore(text)
		if !ok || !parsed {
			stats.Unparsed++
			log.Warn("pipeline: no impact score", zap.Int64("article_id", a.ID), zap.String("response", text))
			continue
		}

		if err := p.store.SetImpactScore(ctx, a.ID, score); err != nil {
			stats.Errors++
			log.Error("pipeline: save impact score", zap.Int64("article_id", a.ID), zap.Error(err))
			continue
		}
		stats.Rated++
	}

	log.Info("pipeline: rate finished",
		zap.Int("selected", stats.Selected),
		zap.Int("rated", stats.Rated),
		zap.Int("unparsed", stats.Unparsed),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}
