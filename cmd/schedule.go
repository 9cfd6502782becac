package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/pipeline"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run prepare and brief on cron schedules until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		profiles := make([]config.Profile, 0, len(cfg.Schedule.Profiles))
		for _, name := range cfg.Schedule.Profiles {
			prof, err := cfg.ResolveProfile(name)
			if err != nil {
				return err
			}
			profiles = append(profiles, prof)
		}
		if len(profiles) == 0 {
			return eris.New("schedule: no profiles configured (schedule.profiles)")
		}

		env, err := initPipeline(ctx, profiles...)
		if err != nil {
			return err
		}
		defer env.Close()

		s := newScheduler(ctx, env.Pipeline)
		for _, prof := range profiles {
			if err := s.register(prof, cfg.Schedule); err != nil {
				return err
			}
		}

		s.cron.Start()
		zap.L().Info("scheduler started",
			zap.Int("profiles", len(profiles)),
			zap.String("prepare", cfg.Schedule.Prepare),
			zap.String("brief", cfg.Schedule.Brief),
		)

		<-ctx.Done()
		zap.L().Info("scheduler stopping, waiting for running jobs")
		<-s.cron.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

// stageRunner is the part of the pipeline the scheduler triggers.
type stageRunner interface {
	Prepare(ctx context.Context, prof config.Profile) (*pipeline.PrepareReport, error)
	Brief(ctx context.Context, prof config.Profile) (*pipeline.BriefResult, error)
}

// scheduler owns the cron and one job slot per profile: a trigger that
// fires while the profile is still busy is skipped.
type scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	runner stageRunner

	mu    sync.Mutex
	slots map[string]*sync.Mutex
}

func newScheduler(ctx context.Context, runner stageRunner) *scheduler {
	return &scheduler{
		ctx:    ctx,
		cron:   cron.New(cron.WithSeconds()),
		runner: runner,
		slots:  make(map[string]*sync.Mutex),
	}
}

// register adds the prepare and brief jobs of prof. Empty specs are
// skipped.
func (s *scheduler) register(prof config.Profile, sc config.ScheduleConfig) error {
	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"prepare", sc.Prepare, func(ctx context.Context) error {
			_, err := s.runner.Prepare(ctx, prof)
			return err
		}},
		{"brief", sc.Brief, func(ctx context.Context) error {
			_, err := s.runner.Brief(ctx, prof)
			return err
		}},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, s.guarded(prof.Name, j.name, j.run)); err != nil {
			return eris.Wrapf(err, "schedule: %s job for %s", j.name, prof.Name)
		}
	}
	return nil
}

func (s *scheduler) slot(profile string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.slots[profile]
	if !ok {
		m = &sync.Mutex{}
		s.slots[profile] = m
	}
	return m
}

// guarded wraps fn so it runs only when the profile's slot is free.
func (s *scheduler) guarded(profile, job string, fn func(ctx context.Context) error) func() {
	return func() {
		log := zap.L().With(zap.String("profile", profile), zap.String("job", job))
		slot := s.slot(profile)
		if !slot.TryLock() {
			log.Warn("previous job still running, skipping trigger")
			return
		}
		defer slot.Unlock()

		if err := fn(s.ctx); err != nil {
			log.Error("scheduled job failed", zap.Error(err))
			return
		}
		log.Info("scheduled job complete")
	}
}
