// Package archive extracts uploaded archives into the Storage Root.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"

	"zipdrop/internal/storage"
)

// Ext is the filename suffix that marks an upload as an archive.
const Ext = ".zip"

// ErrUnsafePath is returned for archive entries that would land outside
// the target directory (zip slip).
var ErrUnsafePath = errors.New("archive entry escapes target directory")

// Entry is one extracted file.
type Entry struct {
	Path   string        `json:"path"` // relative to the target directory
	Size   int64         `json:"size"`
	Digest digest.Digest `json:"digest"`
}

// Manifest describes what an extraction wrote.
type Manifest struct {
	Target  string   `json:"target"`
	Entries []Entry  `json:"entries"`
	Dirs    []string `json:"dirs,omitempty"`
}

// TotalBytes is the sum of all extracted file sizes.
func (m Manifest) TotalBytes() int64 {
	var n int64
	for _, e := range m.Entries {
		n += e.Size
	}
	return n
}

// Extractor decodes an archive and writes its entries under target.
//
// Extract is synchronous: when it returns nil every entry has been fully
// written. On error, entries written so far are left in place.
type Extractor interface {
	Extract(ctx context.Context, src io.ReaderAt, size int64, root storage.Root, target string) (Manifest, error)
}

// IsArchive reports whether name carries the archive suffix.
// The match is case-sensitive.
func IsArchive(name string) bool {
	return strings.HasSuffix(name, Ext)
}

// TargetDir returns the directory an archive named name extracts into.
func TargetDir(name string) string {
	return strings.TrimSuffix(name, Ext)
}

// ZipExtractor extracts zip archives.
type ZipExtractor struct{}

func (ZipExtractor) Extract(ctx context.Context, src io.ReaderAt, size int64, root storage.Root, target string) (Manifest, error) {
	m := Manifest{Target: target, Entries: []Entry{}}

	// NewReader can hand back a usable reader together with an insecure
	// path error; every entry name is checked by entryPath anyway.
	zr, err := zip.NewReader(src, size)
	if zr == nil {
		return m, fmt.Errorf("open zip: %w", err)
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		if err := extractFile(ctx, f, root, target, &m); err != nil {
			return m, fmt.Errorf("extract %q: %w", f.Name, err)
		}
	}
	return m, nil
}

// entryPath resolves an archive entry name to a Storage Root name under target.
// rel is empty for entries that resolve to target itself.
func entryPath(target, name string) (full, rel string, err error) {
	name = strings.TrimSuffix(name, "/")
	if name == "" {
		return target, "", nil
	}
	if strings.ContainsAny(name, "\\\x00") || path.IsAbs(name) {
		return "", "", ErrUnsafePath
	}
	rel = path.Clean(name)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", "", ErrUnsafePath
	}
	if rel == "." {
		return target, "", nil
	}
	full = path.Join(target, rel)
	if err := storage.ValidateName(full); err != nil {
		return "", "", ErrUnsafePath
	}
	return full, rel, nil
}

func extractFile(ctx context.Context, f *zip.File, root storage.Root, target string, m *Manifest) error {
	full, rel, err := entryPath(target, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		if err := root.MkdirAll(ctx, full); err != nil {
			return err
		}
		if rel != "" {
			m.Dirs = append(m.Dirs, rel)
		}
		return nil
	}
	if rel == "" {
		return ErrUnsafePath
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	w, err := root.Create(ctx, full)
	if err != nil {
		return fmt.Errorf("create %s: %w", full, err)
	}

	digester := digest.Canonical.Digester()
	n, err := io.Copy(io.MultiWriter(w, digester.Hash()), rc)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", full, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", full, err)
	}

	m.Entries = append(m.Entries, Entry{Path: rel, Size: n, Digest: digester.Digest()})
	return nil
}
