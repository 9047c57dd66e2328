package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatchd/internal/childmonitor"
	"github.com/procwatch/procwatchd/internal/config"
	"github.com/procwatch/procwatchd/internal/registry"
	"github.com/procwatch/procwatchd/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the daemon with an attached read-only status viewer",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	// The status viewer redirects the daemon's own log output to a file
	// instead of the terminal, since both would otherwise fight over the
	// same screen.
	logFile, err := os.OpenFile("procwatchd.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	log := slog.New(slog.NewTextHandler(logFile, nil))

	specs, err := config.LoadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfgFile, err)
	}

	reg := registry.New(log, nil)
	spawner := childmonitor.NewSpawner(reg, log, nil, nil)
	for _, spec := range specs {
		if _, err := spawner.Spawn(spec); err != nil {
			log.Error("failed to register worker", "worker", spec.Name, "error", err)
		}
	}
	defer reg.StopAll()

	return tui.Run(reg)
}
