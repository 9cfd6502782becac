package main

import (
	"context"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/pipeline"
)

var runAllProfiles bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: prepare then brief",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !runAllProfiles {
			prof, err := cfg.ResolveProfile(feedName)
			if err != nil {
				return err
			}
			env, err := initPipeline(ctx, prof)
			if err != nil {
				return err
			}
			defer env.Close()

			report, err := env.Pipeline.RunAll(ctx, prof)
			if err != nil {
				return eris.Wrap(err, "pipeline run")
			}
			return printJSON(cmd.OutOrStdout(), report)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		names, err := knownProfiles(ctx, st)
		_ = st.Close()
		if err != nil {
			return err
		}

		profiles := make([]config.Profile, 0, len(names))
		for _, name := range names {
			prof, err := cfg.ResolveProfile(name)
			if err != nil {
				return err
			}
			profiles = append(profiles, prof)
		}

		env, err := initPipeline(ctx, profiles...)
		if err != nil {
			return err
		}
		defer env.Close()

		reports, err := runProfiles(ctx, env.Pipeline, profiles, cfg.Pipeline.MaxConcurrentProfiles)
		if perr := printJSON(cmd.OutOrStdout(), reports); perr != nil {
			return perr
		}
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runAllProfiles, "all-profiles", false, "run every known profile concurrently")
	rootCmd.AddCommand(runCmd)
}

// profileRunner is the part of the pipeline runProfiles drives.
type profileRunner interface {
	RunAll(ctx context.Context, prof config.Profile) (*pipeline.RunReport, error)
}

// runProfiles runs each profile once, at most limit at a time. A failing
// profile does not stop the others; the error reports how many failed.
func runProfiles(ctx context.Context, p profileRunner, profiles []config.Profile, limit int) (map[string]*pipeline.RunReport, error) {
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		mu      sync.Mutex
		reports = make(map[string]*pipeline.RunReport, len(profiles))
		failed  atomic.Int64
	)
	for _, prof := range profiles {
		g.Go(func() error {
			log := zap.L().With(zap.String("profile", prof.Name))

			report, err := p.RunAll(gctx, prof)
			if err != nil {
				failed.Add(1)
				log.Error("profile run failed", zap.Error(err))
				return nil // don't abort other profiles
			}

			mu.Lock()
			reports[prof.Name] = report
			mu.Unlock()
			log.Info("profile run complete")
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return reports, eris.Errorf("%d of %d profiles failed", n, len(profiles))
	}
	return reports, nil
}

// profileLister is the part of the store knownProfiles reads.
type profileLister interface {
	ListProfiles(ctx context.Context) ([]string, error)
}

// knownProfiles merges the profiles found in the store, the scheduled
// profiles and the override files, sorted and without duplicates.
func knownProfiles(ctx context.Context, st profileLister) ([]string, error) {
	stored, err := st.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	files, err := config.OverrideNames(cfg.Profiles.Dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{stored, cfg.Schedule.Profiles, files} {
		for _, name := range group {
			if name != "" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
