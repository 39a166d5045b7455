package main

import (
	"os"

	"github.com/3leaps/commundetect/internal/cmd"
)

// Populated via -ldflags at build time.
var (
	version   = ""
	commit    = ""
	buildDate = ""
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
