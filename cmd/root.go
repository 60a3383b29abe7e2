// Package cmd defines and implements the CLI commands for the
// picklist-crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "picklist-crawler",
		Short: "Crawls a paginated form catalog and downloads prior-year PDFs",
		Long: `picklist-crawler walks a paginated HTML form catalog, aggregates the
distinct forms it finds together with the range of years each form has been
published, and downloads the PDF artifacts for revisions inside a configured
year window.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus PICKLIST_* env)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
