package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"quill/internal/project"
)

const initMainSource = `namespace Main {

    @EntryPoint()
    operation Main() : Result {
        use q = Qubit();
        H(q);
        let r = M(q);
        Reset(q);
        return r;
    }
}
`

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		name := filepath.Base(wd)
		if len(args) == 1 {
			name = args[0]
		}

		manifestPath := filepath.Join(wd, project.ManifestName)
		if _, err := os.Stat(manifestPath); err == nil {
			return fmt.Errorf("%s already exists", project.ManifestName)
		}

		manifest := fmt.Sprintf("[package]\nname = %q\n\n[target]\nprofile = \"unrestricted\"\n", name)
		if err := os.WriteFile(manifestPath, []byte(manifest), 0o644); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(wd, "src"), 0o755); err != nil {
			return err
		}
		mainPath := filepath.Join(wd, "src", "main.qs")
		if _, err := os.Stat(mainPath); err == nil {
			return fmt.Errorf("src/main.qs already exists")
		}
		if err := os.WriteFile(mainPath, []byte(initMainSource), 0o644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s and src/main.qs\n", project.ManifestName)
		return nil
	},
}
