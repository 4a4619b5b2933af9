// Package main is the entry point for the feedline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/quartzchat/feedline/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var _ = []string{commit, date}

func main() {
	// Local development keeps FEEDLINE_* variables in a .env file.
	// Missing files are fine; the environment wins over defaults either way.
	_ = godotenv.Load()

	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
