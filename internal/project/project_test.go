package project

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "quill.toml"), `
[package]
name = "demo"
[target]
profile = "adaptive_ri"
`)
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	p, ok, err := Find(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("manifest not found")
	}
	if p.Manifest.Package.Name != "demo" {
		t.Fatalf("name %q", p.Manifest.Package.Name)
	}
	if got := p.Profile().String(); got != "ForwardBranching+IntegerComputations+QubitReset" {
		t.Fatalf("profile %q", got)
	}
}

func TestFindMisses(t *testing.T) {
	_, ok, err := Find(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no manifest")
	}
}

func TestLoadRejectsMissingName(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "quill.toml")
	write(t, path, "[package]\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected missing name error")
	}
}

func TestLoadRejectsUnknownProfile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "quill.toml")
	write(t, path, "[package]\nname = \"x\"\n[target]\nprofile = \"quantum_supreme\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown profile error")
	}
}

func TestSourceFilesWalksDirectories(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "quill.toml")
	write(t, path, "[package]\nname = \"x\"\n")
	write(t, filepath.Join(root, "src", "b.qs"), "namespace B { }")
	write(t, filepath.Join(root, "src", "sub", "a.qs"), "namespace A { }")
	write(t, filepath.Join(root, "src", "notes.txt"), "ignored")

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	files, err := p.SourceFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	if filepath.Base(files[0]) != "b.qs" || filepath.Base(files[1]) != "a.qs" {
		t.Fatalf("unexpected order: %v", files)
	}
}

func TestSeedDefaultsToOne(t *testing.T) {
	p := &Project{}
	if p.Seed() != 1 {
		t.Fatalf("default seed %d", p.Seed())
	}
	p.Manifest.Run.Seed = 99
	if p.Seed() != 99 {
		t.Fatalf("seed %d", p.Seed())
	}
}
