package cli

import (
	"patchrunner/internal/config"
	"patchrunner/internal/flags"

	"github.com/spf13/pflag"
)

// flagOverlay copies one flag-backed field from src to dst. A config file is
// decoded first; every flag the user set explicitly then wins over it.
var flagOverlay = map[string]func(dst, src *config.Config){
	flags.FlagPatches:   func(d, s *config.Config) { d.Patches.Root = s.Patches.Root },
	flags.FlagWorkspace: func(d, s *config.Config) { d.Workspace.Root = s.Workspace.Root },
	flags.FlagExclude:   func(d, s *config.Config) { d.Workspace.Exclude = s.Workspace.Exclude },
	flags.FlagDryRun:    func(d, s *config.Config) { d.Runtime.DryRun = s.Runtime.DryRun },

	flags.FlagBackend:     func(d, s *config.Config) { d.Git.Backend = s.Git.Backend },
	flags.FlagRemote:      func(d, s *config.Config) { d.Git.Remote = s.Git.Remote },
	flags.FlagBranch:      func(d, s *config.Config) { d.Git.Branch = s.Git.Branch },
	flags.FlagPush:        func(d, s *config.Config) { d.Git.Push = s.Git.Push },
	flags.FlagAuthorName:  func(d, s *config.Config) { d.Git.AuthorName = s.Git.AuthorName },
	flags.FlagAuthorEmail: func(d, s *config.Config) { d.Git.AuthorEmail = s.Git.AuthorEmail },
	flags.FlagOpenPR:      func(d, s *config.Config) { d.Git.OpenPR = s.Git.OpenPR },
	flags.FlagRepo:        func(d, s *config.Config) { d.Git.Repo = s.Git.Repo },
	flags.FlagBase:        func(d, s *config.Config) { d.Git.Base = s.Git.Base },

	flags.FlagOnFailure: func(d, s *config.Config) { d.Policy.OnFailure = s.Policy.OnFailure },
	flags.FlagRollback:  func(d, s *config.Config) { d.Policy.Rollback = s.Policy.Rollback },

	flags.FlagConsoleFormat:        func(d, s *config.Config) { d.Output.ConsoleFormat = s.Output.ConsoleFormat },
	flags.FlagConsoleFilterOutcome: func(d, s *config.Config) { d.Output.ConsoleFilterOutcome = s.Output.ConsoleFilterOutcome },
	flags.FlagReport:               func(d, s *config.Config) { d.Output.Report = s.Output.Report },
	flags.FlagOut:                  func(d, s *config.Config) { d.Output.Out = s.Output.Out },
	flags.FlagOutFormat:            func(d, s *config.Config) { d.Output.OutFormat = s.Output.OutFormat },
	flags.FlagEmit:                 func(d, s *config.Config) { d.Output.Emit = s.Output.Emit },
	flags.FlagNoConsole:            func(d, s *config.Config) { d.Output.NoConsole = s.Output.NoConsole },

	flags.FlagConcurrency:  func(d, s *config.Config) { d.Runtime.Concurrency = s.Runtime.Concurrency },
	flags.FlagTimeout:      func(d, s *config.Config) { d.Runtime.Timeout = s.Runtime.Timeout },
	flags.FlagPatchTimeout: func(d, s *config.Config) { d.Runtime.PatchTimeout = s.Runtime.PatchTimeout },
	flags.FlagVerbose:      func(d, s *config.Config) { d.Runtime.Verbose = s.Runtime.Verbose },
}

// applyFlagOverrides copies every explicitly set flag's value from src into dst.
func applyFlagOverrides(fs *pflag.FlagSet, dst, src *config.Config) {
	fs.Visit(func(f *pflag.Flag) {
		if set, ok := flagOverlay[f.Name]; ok {
			set(dst, src)
		}
	})
}
