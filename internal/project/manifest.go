// Package project locates and loads quill.toml manifests: the project
// root, its source file list, and the target capability profile.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"quill/internal/target"
)

// ManifestName is the file the walk-up search looks for.
const ManifestName = "quill.toml"

var (
	// ErrPackageSectionMissing indicates that [package] is missing.
	ErrPackageSectionMissing = errors.New("missing [package]")
	// ErrPackageNameMissing indicates that [package].name is missing.
	ErrPackageNameMissing = errors.New("missing [package].name")
)

// Manifest is the decoded quill.toml.
type Manifest struct {
	Package PackageTable `toml:"package"`
	Target  TargetTable  `toml:"target"`
	Run     RunTable     `toml:"run"`
}

// PackageTable is the [package] section.
type PackageTable struct {
	Name string `toml:"name"`
	// Sources lists files or directories relative to the project root;
	// directories are walked for .qs files. Defaults to ["src"].
	Sources []string `toml:"sources"`
	// Entry optionally names the entry point callable when more than one
	// item carries @EntryPoint().
	Entry string `toml:"entry"`
}

// TargetTable is the [target] section.
type TargetTable struct {
	// Profile is one of base, adaptive_ri, adaptive_rif, unrestricted.
	// Empty means unrestricted.
	Profile string `toml:"profile"`
}

// RunTable is the [run] section.
type RunTable struct {
	// Seed fixes the evaluator RNG. Zero means seed 1.
	Seed int64 `toml:"seed"`
}

// Project is a loaded manifest with its root directory.
type Project struct {
	Root     string
	Manifest Manifest
}

// Load reads and validates a manifest file.
func Load(manifestPath string) (*Project, error) {
	var m Manifest
	meta, err := toml.DecodeFile(manifestPath, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", manifestPath, err)
	}
	if !meta.IsDefined("package") {
		return nil, fmt.Errorf("%s: %w", manifestPath, ErrPackageSectionMissing)
	}
	if m.Package.Name == "" {
		return nil, fmt.Errorf("%s: %w", manifestPath, ErrPackageNameMissing)
	}
	if _, err := target.ParseProfile(m.Target.Profile); err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}
	root, err := filepath.Abs(filepath.Dir(manifestPath))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	return &Project{Root: root, Manifest: m}, nil
}

// Profile returns the manifest's target capability set.
func (p *Project) Profile() target.CapabilityFlags {
	caps, err := target.ParseProfile(p.Manifest.Target.Profile)
	if err != nil {
		// Load validated the name already
		return target.Unrestricted
	}
	return caps
}

// Seed returns the configured RNG seed, defaulting to 1.
func (p *Project) Seed() int64 {
	if p.Manifest.Run.Seed != 0 {
		return p.Manifest.Run.Seed
	}
	return 1
}

// SourceFiles resolves the manifest's source entries to a sorted list of
// .qs files. Directory entries are walked recursively.
func (p *Project) SourceFiles() ([]string, error) {
	entries := p.Manifest.Package.Sources
	if len(entries) == 0 {
		entries = []string{"src"}
	}
	var files []string
	for _, entry := range entries {
		path := entry
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Root, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("source entry %q: %w", entry, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(sub string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(sub, ".qs") {
				files = append(files, sub)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("source entry %q: %w", entry, err)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .qs files under %s", strings.Join(entries, ", "))
	}
	sort.Strings(files)
	return files, nil
}
