package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/config"
)

// PrepareReport collects the stats of one prepare run. Ingest is nil when
// the profile has no feeds.
type PrepareReport struct {
	Ingest  *IngestStats
	Process *ProcessStats
	Rate    *RateStats
}

// RunReport is a prepare run followed by a brief attempt.
type RunReport struct {
	PrepareReport
	Brief *BriefResult
}

// Prepare runs ingest, process and rate in order and stops at the first
// stage error. A profile without feeds still processes and rates what is
// already stored.
func (p *Pipeline) Prepare(ctx context.Context, prof config.Profile) (*PrepareReport, error) {
	ctx = startRun(ctx)
	log := p.logger(ctx, prof.Name, "prepare")
	report := &PrepareReport{}

	if len(prof.Feeds) == 0 {
		log.Warn("pipeline: profile has no feeds, skipping ingest")
	} else if err := trackStage(log.With(zap.String("step", "ingest")), func() error {
		var err error
		report.Ingest, err = p.Ingest(ctx, prof)
		return err
	}); err != nil {
		return report, err
	}

	if err := trackStage(log.With(zap.String("step", "process")), func() error {
		var err error
		report.Process, err = p.Process(ctx, prof)
		return err
	}); err != nil {
		return report, err
	}

	if err := trackStage(log.With(zap.String("step", "rate")), func() error {
		var err error
		report.Rate, err = p.Rate(ctx, prof)
		return err
	}); err != nil {
		return report, err
	}

	return report, nil
}

// RunAll prepares the profile then attempts a brief. Profiles without
// feeds never get a brief.
func (p *Pipeline) RunAll(ctx context.Context, prof config.Profile) (*RunReport, error) {
	ctx = startRun(ctx)
	prep, err := p.Prepare(ctx, prof)
	report := &RunReport{}
	if prep != nil {
		report.PrepareReport = *prep
	}
	if err != nil {
		return report, err
	}

	log := p.logger(ctx, prof.Name, "run")
	if len(prof.Feeds) == 0 {
		log.Warn("pipeline: profile has no feeds, skipping brief")
		return report, nil
	}

	err = trackStage(log.With(zap.String("step", "brief")), func() error {
		var err error
		report.Brief, err = p.Brief(ctx, prof)
		return err
	})
	return report, err
}
