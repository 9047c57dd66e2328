package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "procwatchd",
	Short: "A process supervisor daemon",
	Long: `procwatchd supervises a small fleet of co-deployed programs: it launches
each one from a declarative config file, restarts it under an exponential
backoff budget when it exits or faults, and shuts the whole fleet down
cleanly on operator signal.

Examples:
  procwatchd serve               # start the daemon in the foreground
  procwatchd list                # validate the config and print what would run
  procwatchd tui                 # start the daemon with a read-only status viewer`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute runs the root command, exiting with status 1 on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "daemon.dat", "path to the process list config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}
