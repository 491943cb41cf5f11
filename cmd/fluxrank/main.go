// Package main provides the entry point for the fluxrank CLI.
package main

import (
	"os"

	"github.com/fluxrank/fluxrank/cmd/fluxrank/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
