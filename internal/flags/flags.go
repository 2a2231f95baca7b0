package flags

// Package flags defines canonical CLI flag names shared by the cobra wiring and
// the config-file overlay. Names carry no leading dashes.
//
//	cmd.Flags().StringVar(&cfg.Patches.Root, flags.FlagPatches, "", "...")
const (
	FlagConfig = "config"

	// Inputs
	FlagPatches   = "patches"
	FlagWorkspace = "workspace"
	FlagExclude   = "exclude"
	FlagDryRun    = "dry-run"

	// Version control
	FlagBackend     = "backend"
	FlagRemote      = "remote"
	FlagBranch      = "branch"
	FlagPush        = "push"
	FlagAuthorName  = "author-name"
	FlagAuthorEmail = "author-email"
	FlagOpenPR      = "open-pr"
	FlagRepo        = "repo"
	FlagBase        = "base"

	// Policy
	FlagOnFailure = "on-failure"
	FlagRollback  = "rollback"

	// Output
	FlagConsoleFormat        = "console-format"
	FlagConsoleFilterOutcome = "console-filter-outcome"
	FlagReport               = "report"
	FlagOut                  = "out"
	FlagOutFormat            = "out-format"
	FlagEmit                 = "emit"
	FlagNoConsole            = "no-console"

	// Runtime
	FlagConcurrency  = "concurrency"
	FlagTimeout      = "timeout"
	FlagPatchTimeout = "patch-timeout"
	FlagVerbose      = "verbose"
)
