package collect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/mod/sumdb/dirhash"
)

// File is one collected file.
type File struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Manifest lists a collected layout.
type Manifest struct {
	Files []File `json:"files"`
	// Digest is the dirhash h1 digest of the listed files.
	Digest string `json:"digest"`
}

func newManifest(dir string, files []string) (*Manifest, error) {
	m := &Manifest{Files: make([]File, 0, len(files))}
	for _, f := range files {
		sum, size, err := hashFile(filepath.Join(dir, filepath.FromSlash(f)))
		if err != nil {
			return nil, err
		}
		m.Files = append(m.Files, File{Path: f, Size: size, SHA256: sum})
	}
	digest, err := digest(dir, files)
	if err != nil {
		return nil, err
	}
	m.Digest = digest
	return m, nil
}

func digest(dir string, files []string) (string, error) {
	return dirhash.Hash1(files, func(name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(dir, filepath.FromSlash(name)))
	})
}

func hashFile(name string) (string, int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Paths returns the slash paths of the listed files.
func (m *Manifest) Paths() []string {
	paths := make([]string, len(m.Files))
	for i, f := range m.Files {
		paths[i] = f.Path
	}
	return paths
}

// Verify reports whether the files of m under dir still hash to m.Digest.
func (m *Manifest) Verify(dir string) error {
	got, err := digest(dir, m.Paths())
	if err != nil {
		return err
	}
	if got != m.Digest {
		return fmt.Errorf("layout %s: digest %s, want %s", dir, got, m.Digest)
	}
	return nil
}
