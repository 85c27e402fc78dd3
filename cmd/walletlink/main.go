// Package main is the entry point for the walletlink CLI.
package main

import (
	"os"

	"github.com/mrz1836/walletlink/internal/cli"
)

// Set by the linker.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	if err := cli.Execute(cli.BuildInfo{Version: version, Commit: commit, Date: date}); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
