// Package main provides the entry point for the readtrack CLI.
package main

import (
	"fmt"
	"os"

	"github.com/readtrackapp/readtrack-server/cmd/readtrack/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
