package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vectorfs/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether vectorfsd is running",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	pidCfg := daemon.DefaultConfig()
	pidFile := daemon.NewPIDFile(pidCfg.PIDPath)

	if !pidFile.IsRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "vectorfsd is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read pid file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "vectorfsd is running (pid %d)\n", pid)
	return nil
}
