package main

import (
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "concrawl",
		Short: "Convention event and vendor crawler",
		Long: `Concrawl reads a convention's event listing and vendor registration page,
then crawls every vendor's social timeline and classifies their images.

Configuration is read from concrawl.yaml and CONCRAWL_* environment variables,
e.g. CONCRAWL_CRAWL_EVENT_API_URL for crawl.event_api_url.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is ./concrawl.yaml)")

	cmd.AddCommand(
		newCrawlCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}
