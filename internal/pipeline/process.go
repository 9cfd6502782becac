package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/llm"
	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/store"
)

// ProcessStats counts the outcomes of one processing batch.
type ProcessStats struct {
	Selected        int
	Processed       int
	SummaryFailed   int
	EmbeddingFailed int
	Errors          int
}

// Process summarizes and embeds unprocessed articles. A failed summary
// demotes the article for good; a failed embedding leaves it untouched so
// the next run retries it.
func (p *Pipeline) Process(ctx context.Context, prof config.Profile) (*ProcessStats, error) {
	ctx = startRun(ctx)
	log := p.logger(ctx, prof.Name, "process")
	stats := &ProcessStats{}

	articles, err := p.store.ListArticles(ctx, store.UnprocessedFilter(prof.Name, p.opts.BatchSize))
	if err != nil {
		return stats, eris.Wrap(err, "pipeline: list unprocessed")
	}
	stats.Selected = len(articles)
	if len(articles) == 0 {
		log.Info("pipeline: nothing to process")
		return stats, nil
	}

	pace := pacer(p.opts.ProcessDelay)
	for i := range articles {
		if err := pace.Wait(ctx); err != nil {
			return stats, err
		}
		p.processOne(ctx, prof, &articles[i], stats, log)
	}

	log.Info("pipeline: process finished",
		zap.Int("selected", stats.Selected),
		zap.Int("processed", stats.Processed),
		zap.Int("summary_failed", stats.SummaryFailed),
		zap.Int("embedding_failed", stats.EmbeddingFailed),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}

func (p *Pipeline) processOne(ctx context.Context, prof config.Profile, a *model.Article, stats *ProcessStats, log *zap.Logger) {
	log = log.With(zap.Int64("article_id", a.ID))

	prompt := render(prof.Prompts.Summary, map[string]string{
		"article_content": truncateRunes(deref(a.RawContent), p.opts.ContentPrefixChars),
		"feed_profile":    prof.Name,
	})

	summary, ok := p.llm.Invoke(ctx, llm.Request{
		Prompt: prompt,
		Model:  prof.Models.Summary,
		Phase:  "summary",
	})
	if !ok {
		stats.SummaryFailed++
		if err := p.store.SetFilterScore(ctx, a.ID, model.DemotedFilterScore); err != nil {
			stats.Errors++
			log.Error("pipeline: demote failed", zap.Error(err))
		}
		p.writeSummaryDiagnostic(ctx, a, prof.Models.Summary, prompt)
		return
	}

	vec, err := p.embedder.Embed(ctx, prof.Models.Embedding, summary)
	if err != nil {
		stats.EmbeddingFailed++
		log.Warn("pipeline: embedding failed, will retry next run", zap.Error(err))
		return
	}

	if err := p.store.MarkProcessed(ctx, a.ID, summary, vec, p.now()); err != nil {
		stats.Errors++
		log.Error("pipeline: mark processed failed", zap.Error(err))
		return
	}
	stats.Processed++
}
