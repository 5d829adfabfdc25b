// Package main provides the entry point for the vectorfsd daemon.
package main

import (
	"os"

	"github.com/Aman-CERP/vectorfs/cmd/vectorfsd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
