package main

import (
	"patchrunner/internal/cli"

	_ "patchrunner/internal/badguys"
)

// Populated via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.SetBuildInfo(version, commit, date)
	cli.Execute()
}
