package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quill/internal/diag"
	"quill/internal/diagfmt"
	"quill/internal/lexer"
	"quill/internal/source"
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize <file>",
	Short: "Print the token stream of one source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fset := source.NewFileSet()
		fid, err := fset.Load(0, args[0])
		if err != nil {
			return err
		}

		bag := diag.NewBag(flagMaxDiag)
		toks := lexer.Tokenize(fset.Get(fid), diag.BagReporter{Bag: bag})

		out := cmd.OutOrStdout()
		for _, tok := range toks {
			start, _ := fset.Resolve(tok.Span)
			fmt.Fprintf(out, "%4d:%-3d %-18s %q\n", start.Line, start.Col, tok.Kind, tok.Text)
		}
		if bag.HasErrors() {
			bag.Sort()
			diagfmt.Pretty(cmd.ErrOrStderr(), bag, fset, diagfmt.PrettyOpts{Color: colorOn()})
		}
		return nil
	},
}
