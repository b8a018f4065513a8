package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"quill/internal/diagfmt"
	"quill/internal/project"
	"quill/internal/target"
	"quill/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Quill quantum language compiler and simulator",
	Long:  `Quill compiles, checks, and simulates quantum programs`,
}

var (
	flagColor   string
	flagProfile string
	flagMaxDiag int
	flagJobs    int
	flagNoCache bool
)

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(tokenizeCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "target profile (base|adaptive_ri|adaptive_rif|unrestricted)")
	rootCmd.PersistentFlags().IntVar(&flagMaxDiag, "max-diagnostics", 100, "maximum number of diagnostics to show")
	rootCmd.PersistentFlags().IntVar(&flagJobs, "jobs", 0, "parse parallelism, 0 for all CPUs")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "skip the on-disk check cache")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// colorOn resolves the --color tri-state, and aligns the fatih/color
// global so every styled print respects it.
func colorOn() bool {
	var on bool
	switch flagColor {
	case "on", "always":
		on = true
	case "off", "never":
		on = false
	default:
		on = diagfmt.ColorEnabled()
	}
	color.NoColor = !on
	return on
}

// findProject locates the enclosing project from the working directory.
func findProject() (*project.Project, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	proj, ok, err := project.Find(wd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no %s found in %s or any parent", project.ManifestName, wd)
	}
	return proj, nil
}

// resolveProfile applies the --profile override on top of the manifest.
func resolveProfile(proj *project.Project) (target.CapabilityFlags, error) {
	if flagProfile != "" {
		return target.ParseProfile(flagProfile)
	}
	if proj != nil {
		return proj.Profile(), nil
	}
	return target.Unrestricted, nil
}
