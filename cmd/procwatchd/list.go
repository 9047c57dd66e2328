package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatchd/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Parse and validate the config file, printing what would run",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	specs, err := config.LoadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfgFile, err)
	}

	if len(specs) == 0 {
		fmt.Println("no workers configured")
		return nil
	}

	fmt.Printf("%-24s %-40s %s\n", "NAME", "EXECUTABLE", "STATUS")
	for _, spec := range specs {
		status := "ok"
		if err := config.Validate(spec); err != nil {
			status = "invalid: " + err.Error()
		}
		fmt.Printf("%-24s %-40s %s\n", spec.Name, spec.ExecutablePath, status)
	}
	return nil
}
