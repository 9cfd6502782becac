package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/quality"
	"github.com/sells-group/briefing-cli/internal/store"
)

// SweepOptions scopes a maintenance sweep. An empty Profile covers every
// profile. Without Live the sweep only reports.
type SweepOptions struct {
	Profile string
	Live    bool
}

// SweepReport counts what a sweep found.
type SweepReport struct {
	Checked  int
	Rejected int
	ByReason map[quality.Reason]int
	Demoted  int
}

// Sweep re-validates stored content that has not been processed yet and,
// in live mode, demotes what the quality gate now rejects so the process
// stage skips it.
func (p *Pipeline) Sweep(ctx context.Context, opts SweepOptions) (*SweepReport, error) {
	ctx = startRun(ctx)
	log := p.logger(ctx, opts.Profile, "sweep").With(zap.Bool("live", opts.Live))
	report := &SweepReport{ByReason: make(map[quality.Reason]int)}

	articles, err := p.store.ListArticles(ctx, store.UnprocessedFilter(opts.Profile, 0))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list unprocessed")
	}

	for i := range articles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		a := &articles[i]
		report.Checked++

		v := quality.Validate(deref(a.RawContent))
		if v.Accepted {
			continue
		}
		report.Rejected++
		report.ByReason[v.Reason]++
		log.Info("pipeline: content rejected",
			zap.Int64("article_id", a.ID),
			zap.String("url", a.URL),
			zap.String("reason", string(v.Reason)),
		)

		if !opts.Live {
			continue
		}
		if err := p.store.SetFilterScore(ctx, a.ID, model.DemotedFilterScore); err != nil {
			log.Warn("pipeline: demote failed", zap.Int64("article_id", a.ID), zap.Error(err))
			continue
		}
		report.Demoted++
	}

	log.Info("pipeline: sweep finished",
		zap.Int("checked", report.Checked),
		zap.Int("rejected", report.Rejected),
		zap.Int("demoted", report.Demoted),
	)
	return report, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
