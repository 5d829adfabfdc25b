package cmd

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vectorfs/internal/daemon"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal a running vectorfsd to shut down",
		RunE:  runStop,
	}
}

func runStop(cmd *cobra.Command, _ []string) error {
	pidCfg := daemon.DefaultConfig()
	pidFile := daemon.NewPIDFile(pidCfg.PIDPath)

	if !pidFile.IsRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "vectorfsd is not running")
		return nil
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal vectorfsd: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "sent shutdown signal to vectorfsd")
	return nil
}
