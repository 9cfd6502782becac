package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/briefing-cli/internal/pipeline"
)

var (
	sweepLive        bool
	sweepAllProfiles bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-validate unprocessed articles and demote rejected content",
	Long:  "Runs the content quality gate over stored, unprocessed articles. Without --live it only reports what would be demoted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		opts := pipeline.SweepOptions{Profile: feedName, Live: sweepLive}
		if sweepAllProfiles {
			opts.Profile = ""
		}

		// The sweep touches only the store.
		p := pipeline.New(pipeline.Deps{Store: st}, pipeline.OptionsFromConfig(cfg))
		report, err := p.Sweep(ctx, opts)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepLive, "live", false, "demote rejected articles instead of only reporting")
	sweepCmd.Flags().BoolVar(&sweepAllProfiles, "all-profiles", false, "sweep every profile instead of --feed")
	rootCmd.AddCommand(sweepCmd)
}
