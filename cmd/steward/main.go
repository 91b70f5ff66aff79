// Package main is the steward daemon entry point.
package main

import (
	"fmt"
	"os"

	"steward/internal/cli"
	"steward/internal/server"
)

func main() {
	server.Version = cli.Version

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
