package driver

import (
	"embed"
	"io/fs"
	"sort"

	"quill/internal/source"
)

// Package ids are fixed by convention: the standard library always
// compiles as package 0, user sources as package 1, and REPL fragments
// as package 2.
const (
	StdPackageID  source.PackageID = 0
	UserPackageID source.PackageID = 1
	ReplPackageID source.PackageID = 2
)

//go:embed std/*.qs
var stdFS embed.FS

type namedSource struct {
	name    string
	content []byte
}

// stdSources returns the embedded standard library files in a stable
// order. Name order keeps NodeID assignment deterministic across runs.
func stdSources() ([]namedSource, error) {
	entries, err := fs.ReadDir(stdFS, "std")
	if err != nil {
		return nil, err
	}
	out := make([]namedSource, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := fs.ReadFile(stdFS, "std/"+e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, namedSource{name: "std/" + e.Name(), content: content})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}
