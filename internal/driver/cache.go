package driver

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"quill/internal/diag"
	"quill/internal/project"
	"quill/internal/source"
	"quill/internal/target"
)

// cacheSchema is bumped whenever the payload layout or the diagnostics
// produced for identical input change incompatibly.
const cacheSchema uint16 = 1

const cacheApp = "quill"

// DiskCache is a content-addressed store under the user cache directory.
// Writes go through a temp file and an atomic rename, so concurrent
// processes never observe a half-written entry.
type DiskCache struct {
	dir string
}

// OpenCache opens (and creates if needed) the cache directory, honoring
// XDG_CACHE_HOME with a ~/.cache fallback.
func OpenCache() (*DiskCache, error) {
	root := os.Getenv("XDG_CACHE_HOME")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		root = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(root, cacheApp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key project.Digest) string {
	return filepath.Join(c.dir, hex.EncodeToString(key[:])+".mp")
}

// Get decodes the entry for key into out. A missing or corrupt entry is a
// miss, not an error; corrupt entries are removed.
func (c *DiskCache) Get(key project.Digest, out any) (bool, error) {
	path := c.pathFor(key)
	data, err := os.ReadFile(path) // #nosec G304 -- path derives from a hex digest
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		_ = os.Remove(path)
		return false, nil
	}
	return true, nil
}

// Put stores val under key atomically.
func (c *DiskCache) Put(key project.Digest, val any) error {
	tmp, err := os.CreateTemp(c.dir, "put-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	enc := msgpack.NewEncoder(tmp)
	if err := enc.Encode(val); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.pathFor(key))
}

// DropAll removes every cached entry.
func (c *DiskCache) DropAll() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// checkPayload is the cached outcome of a `quill check` run.
type checkPayload struct {
	Schema uint16
	Diags  []diag.Diagnostic
}

// checkKey digests everything the diagnostics depend on: the schema, the
// target profile, and each file's content hash in file-set order.
func checkKey(fset *source.FileSet, ids []source.FileID, profile target.CapabilityFlags) project.Digest {
	var head [6]byte
	binary.LittleEndian.PutUint16(head[0:2], cacheSchema)
	binary.LittleEndian.PutUint32(head[2:6], uint32(profile))
	rest := make([]project.Digest, 0, len(ids))
	for _, id := range ids {
		rest = append(rest, project.Digest(fset.Get(id).Hash))
	}
	return project.Combine(project.HashContent(head[:]), rest...)
}

// Check compiles proj and returns its sorted diagnostics together with
// the file set their spans refer to. Results are served from and stored
// in the disk cache keyed by source content and profile, unless
// opts.NoCache is set. Cache failures degrade to a full compile; they
// are never fatal.
func Check(proj *project.Project, opts Options) ([]diag.Diagnostic, *source.FileSet, error) {
	fset, ids, stdCount, err := loadProject(proj)
	if err != nil {
		return nil, nil, err
	}

	var cache *DiskCache
	var key project.Digest
	if !opts.NoCache {
		if c, err := OpenCache(); err == nil {
			cache = c
			key = checkKey(fset, ids, opts.Profile)
			var payload checkPayload
			if hit, err := cache.Get(key, &payload); err == nil && hit && payload.Schema == cacheSchema {
				return payload.Diags, fset, nil
			}
		}
	}

	c := compileFiles(fset, ids, stdCount, opts)
	c.Bag.Sort()
	c.Bag.Dedup()
	diags := c.Bag.Items()

	if cache != nil {
		// A read-only cache dir is not worth failing the check.
		_ = cache.Put(key, checkPayload{Schema: cacheSchema, Diags: diags})
	}
	return diags, fset, nil
}
