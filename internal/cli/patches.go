package cli

import (
	"fmt"
	"io"

	"patchrunner/internal/flags"
	"patchrunner/internal/loader"
	"patchrunner/internal/patch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	patchesListQuiet bool
	patchesRoot      = cfg.Patches.Root

	// patchRegistry supplies bodies for the listing; nil means patch.Default.
	patchRegistry *patch.Registry
)

var patchesCmd = &cobra.Command{
	Use:   "patches",
	Short: "List and inspect patches",
	Long: `Inspect the patch sequence.

This command group shows which patches exist under --patches, the order they
would be applied in, and the files each one declares. Nothing is executed.

Examples:
  # List patches in application order
  patchrunner patches list
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var patchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patches in application order",
	Long: `List every patch discovered under --patches, in application order:
by category (lexical), then by numeric sequence.

Examples:
  patchrunner patches list --patches badguys/patches

Output:
  A vertical list of patches:
    ----------------------------------------
    PATCH: {CATEGORY}/{NN}_{SLUG}
    ----------------------------------------
    {DESCRIPTION}
    Files:
      {DECLARED FILE}

  A patch that fails the path check is listed with its violations instead.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest(cmd)
		if err != nil {
			return err
		}
		for _, e := range m.Entries {
			if patchesListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), e.Script.ID.String())
			} else {
				printPatch(cmd.OutOrStdout(), e)
			}
		}
		return nil
	},
}

var patchesShowCmd = &cobra.Command{
	Use:   "show [patch-id]",
	Short: "Show details of a specific patch",
	Long: `Show details of a specific patch by its ID.

Examples:
  patchrunner patches show git/00_simple_change
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := patch.ParseID(args[0])
		if err != nil {
			return err
		}
		m, err := loadManifest(cmd)
		if err != nil {
			return err
		}
		for _, e := range m.Entries {
			if e.Script.ID.String() == id.String() {
				printPatch(cmd.OutOrStdout(), e)
				return nil
			}
		}
		return fmt.Errorf("patch not found: %s", args[0])
	},
}

func loadManifest(cmd *cobra.Command) (*loader.Manifest, error) {
	return loader.New(patchRegistry, nil).Load(cmdContext(cmd), patchesRoot)
}

func printPatch(w io.Writer, e loader.Entry) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "PATCH: %s\n", e.Script.ID)
	fmt.Fprintln(w, "----------------------------------------")

	if e.Rejected() {
		red := color.New(color.FgRed)
		red.Fprintln(w, "REJECTED")
		for _, v := range e.Violations {
			fmt.Fprintf(w, "  %s\n", v)
		}
		fmt.Fprintln(w)
		return
	}

	if e.Patch.Description != "" {
		fmt.Fprintln(w, e.Patch.Description)
	}
	fmt.Fprintln(w, "Files:")
	for _, f := range e.Patch.DeclaredFiles() {
		fmt.Fprintf(w, "  %s\n", f)
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(patchesCmd)
	patchesCmd.PersistentFlags().StringVar(&patchesRoot, flags.FlagPatches, patchesRoot, "Patch tree laid out as <category>/<NN>_<slug>.yaml")
	patchesCmd.AddCommand(patchesListCmd)
	patchesListCmd.Flags().BoolVarP(&patchesListQuiet, "quiet", "q", false, "Only print patch IDs")
	patchesCmd.AddCommand(patchesShowCmd)
}
