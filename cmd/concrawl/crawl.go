package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/phrazzld/concrawl/internal/config"
	"github.com/phrazzld/concrawl/internal/platform/logger"
	"github.com/spf13/cobra"
)

func newCrawlCmd(root *rootOptions) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a full crawl",
		Long: `Runs the event listing and vendor crawl once, printing progress as tasks
finish and a summary at the end. The command fails when the vendor page
cannot be read; every other failure is reported in the summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log, err := logger.SetupWithWriter(cfg.Server, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, log, opts)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.cleanup()

			_, err = app.run(ctx, cmd.OutOrStdout(), opts)
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.resume, "resume", false, "reuse checkpoints from a previous run")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print task starts and work progress")
	cmd.Flags().BoolVar(&opts.details, "details", false, "print the error chain of every failure")
	return cmd
}
