package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"quill/internal/diag"
	"quill/internal/diagfmt"
	"quill/internal/driver"
	"quill/internal/eval"
	"quill/internal/target"
	"quill/internal/ui"
)

var replSeed int64

func init() {
	replCmd.Flags().Int64Var(&replSeed, "seed", 1, "simulator seed")
}

// replReceiver queues Message and DumpMachine output so it renders in
// order with the line's value inside the scrollback.
type replReceiver struct {
	lines []string
}

func (r *replReceiver) Message(msg string) error {
	r.lines = append(r.lines, msg)
	return nil
}

func (r *replReceiver) State(entries []eval.StateEntry, qubitCount int) error {
	r.lines = append(r.lines, fmt.Sprintf("STATE (%d qubits):", qubitCount))
	for _, e := range entries {
		r.lines = append(r.lines, fmt.Sprintf("  |%0*b>: %v", qubitCount, e.Basis, e.Amp))
	}
	return nil
}

func (r *replReceiver) drain() []string {
	out := r.lines
	r.lines = nil
	return out
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile := target.Unrestricted
		if flagProfile != "" {
			p, err := target.ParseProfile(flagProfile)
			if err != nil {
				return err
			}
			profile = p
		}

		recv := &replReceiver{}
		session, err := driver.NewSession(driver.Options{
			Profile:        profile,
			MaxDiagnostics: flagMaxDiag,
		}, recv, replSeed)
		if err != nil {
			return err
		}

		banner := "quill interactive (:quit to leave)"
		model := ui.NewRepl(banner, func(line string) ui.Reply {
			res := session.Eval(line)
			reply := ui.Reply{Output: recv.drain()}
			switch {
			case len(res.Diags) > 0:
				reply.IsErr = true
				reply.Output = append(reply.Output, renderLineDiags(res.Diags, session)...)
			case res.RunErr != nil:
				reply.IsErr = true
				reply.Output = append(reply.Output, strings.Split(res.RunErr.Render(session.FileSet()), "\n")...)
			case res.HasValue:
				reply.Output = append(reply.Output, res.Value.Display())
			}
			return reply
		})

		program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
		_, err = program.Run()
		return err
	},
}

func renderLineDiags(diags []diag.Diagnostic, session *driver.Session) []string {
	bag := diag.NewBag(len(diags) + 1)
	for _, d := range diags {
		bag.Add(d)
	}
	var sb strings.Builder
	diagfmt.Pretty(&sb, bag, session.FileSet(), diagfmt.PrettyOpts{
		PathMode:  diagfmt.PathModeBasename,
		ShowNotes: true,
	})
	return strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
}
