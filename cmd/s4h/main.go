// Package main is the entry point of the s4h workbench CLI.
package main

import (
	"os"

	"github.com/harmonize-tools/s4h-workbench/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
