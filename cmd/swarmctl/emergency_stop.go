package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskswarm/swarmctl/pkg/coordinator"
)

var emergencyStopCmd = &cobra.Command{
	Use:   "emergency-stop",
	Short: "Signal every running worker across every active run and mark those runs interrupted",
	Long: `emergency-stop sends SIGTERM to every non-stopped worker process
recorded against a running run, force-stops their store records
(requeuing whatever task each was holding), and marks the run
interrupted so a later resume picks the work back up.`,
	RunE: runEmergencyStop,
}

func runEmergencyStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return newCliError(exitUsage, err)
	}
	s, err := openStore(cfg)
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}
	defer s.Close()

	c := coordinator.New(cfg, s)
	defer c.Close()

	stopped, err := c.EmergencyStop()
	if err != nil {
		return newCliError(exitUnrecoverable, err)
	}

	fmt.Printf("✓ Stopped %d worker(s)\n", stopped)
	return nil
}
