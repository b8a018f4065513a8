package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quill/internal/diagfmt"
	"quill/internal/driver"
	"quill/internal/eval"
)

var (
	runSeed  int64
	runEntry string
)

func init() {
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "simulator seed, 0 uses the manifest's run.seed")
	runCmd.Flags().StringVar(&runEntry, "entry", "", "entry point name when the project has several")
}

// consoleReceiver prints program output as it happens.
type consoleReceiver struct{}

func (consoleReceiver) Message(msg string) error {
	_, err := fmt.Println(msg)
	return err
}

func (consoleReceiver) State(entries []eval.StateEntry, qubitCount int) error {
	fmt.Printf("STATE (%d qubits):\n", qubitCount)
	for _, e := range entries {
		fmt.Printf("  |%0*b>: %v\n", qubitCount, e.Basis, e.Amp)
	}
	return nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compile the project and execute its entry point on the simulator",
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := findProject()
		if err != nil {
			return err
		}
		profile, err := resolveProfile(proj)
		if err != nil {
			return err
		}
		if runEntry != "" {
			proj.Manifest.Package.Entry = runEntry
		}
		seed := runSeed
		if seed == 0 {
			seed = proj.Seed()
		}

		out, err := driver.Run(proj, driver.Options{
			Profile:        profile,
			MaxDiagnostics: flagMaxDiag,
			Jobs:           flagJobs,
		}, consoleReceiver{}, seed)
		if err != nil {
			return err
		}

		if !out.Ran {
			out.Compilation.Bag.Sort()
			diagfmt.Pretty(os.Stderr, out.Compilation.Bag, out.Compilation.FileSet, diagfmt.PrettyOpts{
				Color:     colorOn(),
				ShowNotes: true,
				Context:   1,
			})
			os.Exit(1)
		}
		if out.RunErr != nil {
			fmt.Fprintln(os.Stderr, out.RunErr.Render(out.Compilation.FileSet))
			os.Exit(2)
		}
		if out.Value.Kind != eval.VKUnit {
			fmt.Fprintln(cmd.OutOrStdout(), out.Value.Display())
		}
		return nil
	},
}
