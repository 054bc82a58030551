// Package main is the entry point for the mucbot CLI.
package main

import (
	"os"

	"github.com/mucbot/mucbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
