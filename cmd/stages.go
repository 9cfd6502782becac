package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/pipeline"
)

// stageFunc runs one stage for a resolved profile and returns its report.
type stageFunc func(ctx context.Context, p *pipeline.Pipeline, prof config.Profile) (any, error)

// stageCommand builds a command that runs fn for the --feed profile and
// prints the report as JSON.
func stageCommand(use, short string, fn stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			prof, err := cfg.ResolveProfile(feedName)
			if err != nil {
				return err
			}

			env, err := initPipeline(ctx, prof)
			if err != nil {
				return err
			}
			defer env.Close()

			report, err := fn(ctx, env.Pipeline, prof)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

var (
	ingestCmd = stageCommand("ingest", "Fetch feeds and store new articles",
		func(ctx context.Context, p *pipeline.Pipeline, prof config.Profile) (any, error) {
			return p.Ingest(ctx, prof)
		})
	processCmd = stageCommand("process", "Summarize and embed unprocessed articles",
		func(ctx context.Context, p *pipeline.Pipeline, prof config.Profile) (any, error) {
			return p.Process(ctx, prof)
		})
	rateCmd = stageCommand("rate", "Score the impact of processed articles",
		func(ctx context.Context, p *pipeline.Pipeline, prof config.Profile) (any, error) {
			return p.Rate(ctx, prof)
		})
	briefCmd = stageCommand("brief", "Cluster rated articles and synthesize a briefing",
		func(ctx context.Context, p *pipeline.Pipeline, prof config.Profile) (any, error) {
			return p.Brief(ctx, prof)
		})
	prepareCmd = stageCommand("prepare", "Run ingest, process and rate",
		func(ctx context.Context, p *pipeline.Pipeline, prof config.Profile) (any, error) {
			return p.Prepare(ctx, prof)
		})
)

func init() {
	rootCmd.AddCommand(ingestCmd, processCmd, rateCmd, briefCmd, prepareCmd)
}
