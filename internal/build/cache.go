package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/997R8V10/aviation-calc-util/internal/collect"
	"github.com/997R8V10/aviation-calc-util/mod/module"
)

// Workspace package layout:
//
//	pkgs/
//	  <escaped name>/                          # package-level dir (cacheDir)
//	    .cache.json                            # maps "version|signature" to buildEntry
//	  <escaped name>@<escaped version>-<hash>/ # collected layout (installDir)
//	    include/
//	    lib/
//	    avpkg-buildinfo.json
//	    Find<Name>.cmake
const cacheFile = ".cache.json"

// buildEntry records one successful build.
type buildEntry struct {
	Signature string         `json:"signature"`
	Dir       string         `json:"dir"`
	Files     []collect.File `json:"files"`
	Digest    string         `json:"digest"`
	BuildTime time.Time      `json:"build_time"`
}

func (e *buildEntry) manifest() *collect.Manifest {
	return &collect.Manifest{Files: e.Files, Digest: e.Digest}
}

// buildCache maps "version|signature" keys to their build entries.
type buildCache struct {
	Cache map[string]*buildEntry `json:"cache"`
}

func cacheKey(version, signature string) string {
	return version + "|" + signature
}

func (c *buildCache) get(version, signature string) (*buildEntry, bool) {
	entry, ok := c.Cache[cacheKey(version, signature)]
	return entry, ok
}

func (c *buildCache) set(version, signature string, entry *buildEntry) {
	if c.Cache == nil {
		c.Cache = make(map[string]*buildEntry)
	}
	c.Cache[cacheKey(version, signature)] = entry
}

// signatureHash shortens a signature into a directory suffix.
func signatureHash(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])[:12]
}

// cacheDir returns the package-level directory holding the cache file.
func (b *Builder) cacheDir(name string) (string, error) {
	pkgs, err := b.Workspace.Packages()
	if err != nil {
		return "", err
	}
	escaped, err := module.EscapePath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(pkgs, escaped), nil
}

// installDir returns the collected layout directory of mod built with
// signature.
func (b *Builder) installDir(mod module.Version, signature string) (string, error) {
	pkgs, err := b.Workspace.Packages()
	if err != nil {
		return "", err
	}
	elem, err := mod.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(pkgs, elem+"-"+signatureHash(signature)), nil
}

// loadCache reads the cache file of a package. A missing file is an empty
// cache.
func (b *Builder) loadCache(name string) (*buildCache, error) {
	dir, err := b.cacheDir(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, cacheFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &buildCache{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cache buildCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

// saveCache writes the cache file of a package.
func (b *Builder) saveCache(name string, cache *buildCache) error {
	dir, err := b.cacheDir(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, cacheFile), data, 0o644)
}
