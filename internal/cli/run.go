package cli

import (
	"context"
	"fmt"
	"io"

	"patchrunner/internal/config"
	"patchrunner/internal/engine"
	"patchrunner/internal/flags"
	"patchrunner/internal/report"

	"github.com/spf13/cobra"
)

var (
	cfg        = config.New()
	configPath string
)

const runHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	--open-pr authenticates to GitHub using an access token.

	Sources (in order):
	1) GITHUB_TOKEN environment variable
	2) GH_TOKEN environment variable
	3) GitHub CLI (gh) authentication via gh auth token (if gh is installed and logged in)

	A token needs write access to pull requests on the --repo repository.

	Commit identity defaults to the git configuration of the workspace; use
	--author-name/--author-email to override it for the run.
`

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply the patch sequence to a workspace",
	Long: `Apply the patch sequence under --patches to the workspace under --workspace.

Patches are applied in order: by category (lexical), then by numeric sequence.
Each patch goes through:
  1) path check: the script must resolve inside the patches root
  2) cleanliness check: no uncommitted changes outside its declared files
  3) body
  4) scope check: the body may only touch its declared files
  5) commit (one commit per patch; a patch that changes nothing is skipped)

Commits are pushed once at the end of the run when at least one patch
committed and no halting failure occurred (see --push).

Configuration:
	--config loads a YAML file whose keys mirror the flag names, grouped by
	section (patches, workspace, git, policy, output, runtime). Flags given on the
	command line override values from the file.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON document or NDJSON stream to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --report: write a Markdown summary
	- --no-console: suppress the console sink (use with --emit/--out for machine output)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events with a
	"type" field (run.started, patch.result, run.finished).

Exit codes:
	0 = every patch applied or skipped
	1 = at least one patch rejected, violated or failed
	2 = version control failure (commit or push)
	3 = fatal error (invalid configuration, malformed patch, I/O failure)

Examples:
  # Apply to the current git working tree, pushing once at the end
  patchrunner run --patches badguys/patches

  # Keep going past failures and record commits in memory only
  patchrunner run --backend record --on-failure continue

  # Print the plan without running any body
  patchrunner run --dry-run

  # AI Agent: stream machine-readable events to stdout
  patchrunner run --no-console --emit ndjson
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		code := runPatches(cmd, cfg, engine.Streams{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()})
		if code != report.ExitClean {
			return &ExitError{Code: code}
		}
		return nil
	},
}

// ExitError carries a run's exit code to main.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

func runPatches(cmd *cobra.Command, flagCfg *config.Config, streams engine.Streams) int {
	c, err := resolveConfig(cmd, flagCfg)
	if err != nil {
		fmt.Fprintf(stderrOf(streams), "Error: %v\n", err)
		return report.ExitFatal
	}
	return engine.Execute(cmdContext(cmd), c, streams)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolveConfig returns the effective configuration: defaults, then the
// --config file, then explicitly set flags.
func resolveConfig(cmd *cobra.Command, flagCfg *config.Config) (*config.Config, error) {
	c := flagCfg
	if configPath != "" {
		c = config.New()
		if err := config.LoadFile(configPath, c); err != nil {
			return nil, err
		}
		applyFlagOverrides(cmd.Flags(), c, flagCfg)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func stderrOf(s engine.Streams) io.Writer {
	if s.Stderr != nil {
		return s.Stderr
	}
	return io.Discard
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.SetHelpTemplate(runHelpTemplate)

	// MAINTAINER NOTE: every flag bound to cfg below needs an entry in
	// flagOverlay (overlay.go) so it can override a --config file value.

	runCmd.Flags().StringVar(&configPath, flags.FlagConfig, "", "YAML config file; explicit flags override its values")

	// Inputs
	runCmd.Flags().StringVar(&cfg.Patches.Root, flags.FlagPatches, cfg.Patches.Root, "Patch tree laid out as <category>/<NN>_<slug>.yaml")
	runCmd.Flags().StringVar(&cfg.Workspace.Root, flags.FlagWorkspace, cfg.Workspace.Root, "Workspace the patches mutate")
	runCmd.Flags().StringSliceVar(&cfg.Workspace.Exclude, flags.FlagExclude, nil, "Workspace-relative paths ignored by snapshots (repeatable; comma-separated accepted; .git is always ignored)")
	runCmd.Flags().BoolVar(&cfg.Runtime.DryRun, flags.FlagDryRun, false, "Load and path-check patches, print the plan, run nothing")

	// Version control
	runCmd.Flags().StringVar(&cfg.Git.Backend, flags.FlagBackend, cfg.Git.Backend, "Version control backend: git|record (default: git)")
	runCmd.Flags().StringVar(&cfg.Git.Remote, flags.FlagRemote, cfg.Git.Remote, "Remote pushed to (default: origin)")
	runCmd.Flags().StringVar(&cfg.Git.Branch, flags.FlagBranch, "", "Remote branch pushed to (default: current branch)")
	runCmd.Flags().StringVar(&cfg.Git.Push, flags.FlagPush, cfg.Git.Push, "When to push: end|each|never (default: end)")
	runCmd.Flags().StringVar(&cfg.Git.AuthorName, flags.FlagAuthorName, "", "Commit author name")
	runCmd.Flags().StringVar(&cfg.Git.AuthorEmail, flags.FlagAuthorEmail, "", "Commit author email")
	runCmd.Flags().BoolVar(&cfg.Git.OpenPR, flags.FlagOpenPR, false, "Open a GitHub pull request after a successful push")
	runCmd.Flags().StringVar(&cfg.Git.Repo, flags.FlagRepo, "", "GitHub repository for --open-pr as OWNER/REPO or URL")
	runCmd.Flags().StringVar(&cfg.Git.Base, flags.FlagBase, cfg.Git.Base, "Pull request base branch (default: main)")

	// Policy
	runCmd.Flags().StringVar(&cfg.Policy.OnFailure, flags.FlagOnFailure, cfg.Policy.OnFailure, "On a rejected, violated or failed patch: halt|continue (default: halt)")
	runCmd.Flags().StringVar(&cfg.Policy.Rollback, flags.FlagRollback, cfg.Policy.Rollback, "After a halting failure: keep|rewind the run's unpushed commits (default: keep)")

	// Output
	runCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, cfg.Output.ConsoleFormat, "Console output format: text|json|ndjson (default: text)")
	runCmd.Flags().StringSliceVar(&cfg.Output.ConsoleFilterOutcome, flags.FlagConsoleFilterOutcome, nil, "Filter console output by outcome (applied, rejected, violated, failed, skipped). Comma-separated.")
	runCmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	runCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	runCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	runCmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	runCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")

	// Runtime
	runCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Parallel file hashing workers during snapshots (default: 8)")
	runCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout (default: 30m)")
	runCmd.Flags().DurationVar(&cfg.Runtime.PatchTimeout, flags.FlagPatchTimeout, 0, "Per-patch body timeout; exceeding it fails the patch (0 = none)")
}
