package cli

import (
	"errors"
	"fmt"
	"os"

	"patchrunner/internal/flags"
	"patchrunner/internal/report"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "patchrunner",
	Short: "Apply an ordered sequence of scoped patches to a workspace",
	Long: `patchrunner applies an ordered sequence of patch scripts to a workspace.

Every patch declares the files it may touch. A patch is path-checked and
cleanliness-checked before it runs, scope-checked after it runs, and committed
only when it stayed inside its declared files.

Examples:
	# Show available commands and global flags
	patchrunner --help

	# Apply the patch sequence to the current git working tree
	patchrunner run --patches badguys/patches

	# List patches in application order
	patchrunner patches list

	# Print build info
	patchrunner version

Output:
	By default, commands write human-readable output to stdout and progress logs
	to stderr. The run command supports structured output (see "patchrunner run --help").`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (debug level, including declared-but-untouched files)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		os.Exit(exit.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(report.ExitFatal)
}
