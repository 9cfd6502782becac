package main

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/pipeline"
)

type fakeStages struct {
	prepares, briefs atomic.Int64
}

func (f *fakeStages) Prepare(context.Context, config.Profile) (*pipeline.PrepareReport, error) {
	f.prepares.Add(1)
	return &pipeline.PrepareReport{}, nil
}

func (f *fakeStages) Brief(context.Context, config.Profile) (*pipeline.BriefResult, error) {
	f.briefs.Add(1)
	return &pipeline.BriefResult{Status: pipeline.BriefNoAnalyses}, nil
}

func TestScheduler_Register(t *testing.T) {
	s := newScheduler(context.Background(), &fakeStages{})
	sc := config.ScheduleConfig{Prepare: "0 0 * * * *", Brief: "0 30 7,19 * * *"}

	require.NoError(t, s.register(config.Profile{Name: "tech"}, sc))
	require.NoError(t, s.register(config.Profile{Name: "brasil"}, config.ScheduleConfig{Prepare: sc.Prepare}))
	assert.Len(t, s.cron.Entries(), 3)
}

func TestScheduler_RegisterInvalidSpec(t *testing.T) {
	s := newScheduler(context.Background(), &fakeStages{})
	err := s.register(config.Profile{Name: "tech"}, config.ScheduleConfig{Prepare: "every hour"})
	assert.ErrorContains(t, err, "prepare job for tech")
}

func TestScheduler_EntriesRunStages(t *testing.T) {
	stages := &fakeStages{}
	s := newScheduler(context.Background(), stages)
	require.NoError(t, s.register(config.Profile{Name: "tech"}, config.ScheduleConfig{
		Prepare: "0 0 * * * *",
		Brief:   "0 30 7 * * *",
	}))

	for _, e := range s.cron.Entries() {
		e.Job.Run()
	}
	assert.Equal(t, int64(1), stages.prepares.Load())
	assert.Equal(t, int64(1), stages.briefs.Load())
}

func TestScheduler_OverlappingTriggerIsSkipped(t *testing.T) {
	s := newScheduler(context.Background(), &fakeStages{})

	var runs atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{})
	slow := s.guarded("tech", "prepare", func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	})
	other := s.guarded("tech", "brief", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	otherProfile := s.guarded("brasil", "brief", func(context.Context) error {
		runs.Add(1)
		return nil
	})

	done := make(chan struct{})
	go func() {
		slow()
		close(done)
	}()
	<-started

	other()
	assert.Equal(t, int64(1), runs.Load(), "busy profile skips the trigger")

	otherProfile()
	assert.Equal(t, int64(2), runs.Load(), "other profiles are unaffected")

	close(release)
	<-done
	other()
	assert.Equal(t, int64(3), runs.Load())
}
