// Package main is the entry point of the screenctl operator command.
package main

import (
	"os"

	"github.com/screening-server/internal/cli"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := cli.NewRootCommand(Version).Execute(); err != nil {
		os.Exit(1)
	}
}
