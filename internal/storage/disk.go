package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Disk is a Storage Root backed by a directory on the local filesystem.
type Disk struct {
	dir string
}

type diskObject struct {
	*os.File
	info EntryInfo
}

func (o *diskObject) Info() EntryInfo { return o.info }

// NewDisk returns a Disk rooted at dir, creating the directory if needed.
func NewDisk(dir string) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("storage dir is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Disk{dir: abs}, nil
}

// Dir returns the absolute path of the root directory.
func (d *Disk) Dir() string { return d.dir }

func (d *Disk) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	return filepath.Join(d.dir, filepath.FromSlash(name)), nil
}

func mapErr(name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		return err
	}
}

func entryInfo(name string, fi fs.FileInfo) EntryInfo {
	return EntryInfo{
		Name:    name,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		IsDir:   fi.IsDir(),
	}
}

func (d *Disk) List(ctx context.Context) ([]EntryInfo, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	out := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, entryInfo(e.Name(), fi))
	}
	return out, nil
}

func (d *Disk) Stat(ctx context.Context, name string) (EntryInfo, error) {
	p, err := d.path(name)
	if err != nil {
		return EntryInfo{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return EntryInfo{}, mapErr(name, err)
	}
	return entryInfo(name, fi), nil
}

func (d *Disk) Open(ctx context.Context, name string) (Object, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapErr(name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	return &diskObject{File: f, info: entryInfo(name, fi)}, nil
}

func (d *Disk) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create parent of %s: %w", name, err)
	}
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *Disk) MkdirAll(ctx context.Context, name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, name)
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", name, err)
	}
	return nil
}

func (d *Disk) Remove(ctx context.Context, name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return mapErr(name, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	return mapErr(name, os.Remove(p))
}

func (d *Disk) RemoveAll(ctx context.Context, name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}
