// Package main is the entry point for the arenalive application.
package main

import (
	"os"

	"github.com/arenalive/arenalive/cmd/arenalive/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
