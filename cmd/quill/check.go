package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quill/internal/diag"
	"quill/internal/diagfmt"
	"quill/internal/driver"
	"quill/internal/source"
)

var checkFormat string

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "pretty", "output format (pretty|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compile the project and report diagnostics without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := findProject()
		if err != nil {
			return err
		}
		profile, err := resolveProfile(proj)
		if err != nil {
			return err
		}

		diags, fset, err := driver.Check(proj, driver.Options{
			Profile:        profile,
			MaxDiagnostics: flagMaxDiag,
			Jobs:           flagJobs,
			NoCache:        flagNoCache,
		})
		if err != nil {
			return err
		}

		if err := renderDiags(diags, fset); err != nil {
			return err
		}
		for _, d := range diags {
			if d.Severity == diag.SevError {
				os.Exit(1)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "no errors")
		return nil
	},
}

func renderDiags(diags []diag.Diagnostic, fset *source.FileSet) error {
	bag := diag.NewBag(len(diags) + 1)
	for _, d := range diags {
		bag.Add(d)
	}
	switch checkFormat {
	case "json":
		return diagfmt.JSON(os.Stderr, bag, fset, diagfmt.JSONOpts{IncludeNotes: true})
	case "pretty", "":
		diagfmt.Pretty(os.Stderr, bag, fset, diagfmt.PrettyOpts{
			Color:     colorOn(),
			ShowNotes: true,
			Context:   1,
		})
		return nil
	}
	return fmt.Errorf("unsupported format %q (must be pretty or json)", checkFormat)
}
