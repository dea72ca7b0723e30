// Package main is the entry point for the stencil CLI.
package main

import (
	"os"

	"github.com/stencildev/stencil/cmd/stencil/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
