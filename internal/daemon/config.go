// Package daemon manages vectorfsd's background process lifecycle: the
// PID file used by `vectorfsd status`/`vectorfsd stop` to find and
// signal a running mount.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon process itself.
type Config struct {
	// PIDPath is the file path storing the daemon's process ID.
	// Default: ~/.vectorfs/vectorfsd.pid
	PIDPath string

	// ShutdownGracePeriod is how long to wait for the HTTP edge server to
	// shut down after SIGINT/SIGTERM. The unmount and container stop that
	// follow are not bounded by it.
	// Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	dir := filepath.Join(home, ".vectorfs")

	return Config{
		PIDPath:             filepath.Join(dir, "vectorfsd.pid"),
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directory holding the PID file if it doesn't exist.
func (c Config) EnsureDir() error {
	dir := filepath.Dir(c.PIDPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	return nil
}
