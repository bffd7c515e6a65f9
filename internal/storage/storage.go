// Package storage implements the Storage Root: a tree of named entries
// (files and directories) that uploads are written into and extracted
// archives are materialized under.
//
// Entry names are slash-separated paths relative to the root ("report.txt",
// "bundle/sub/b.txt"). Every backend validates names with ValidateName before
// touching the underlying store, so callers can pass user input straight
// through and rely on ErrInvalidName for traversal attempts.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the named entry does not exist.
	ErrNotFound = errors.New("entry not found")
	// ErrInvalidName is returned for empty names and names that would escape the root.
	ErrInvalidName = errors.New("invalid entry name")
	// ErrIsDirectory is returned when a file operation targets a directory.
	ErrIsDirectory = errors.New("entry is a directory")
	// ErrNotDirectory is returned when a path segment that must be a directory is a file.
	ErrNotDirectory = errors.New("entry is not a directory")
)

// EntryInfo describes a single StoredEntry.
type EntryInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	IsDir   bool      `json:"is_dir"`
}

// Object is an open file in the Storage Root. It supports random access so
// archive decoders can read the central directory without buffering.
type Object interface {
	io.ReadSeekCloser
	io.ReaderAt
	Info() EntryInfo
}

// Root is the Storage Root abstraction shared by the disk, memory and
// object-storage backends.
type Root interface {
	// List returns the direct children of the root (non-recursive).
	List(ctx context.Context) ([]EntryInfo, error)

	// Stat describes the named entry or returns ErrNotFound.
	Stat(ctx context.Context, name string) (EntryInfo, error)

	// Open opens the named file for reading.
	// Returns ErrIsDirectory for directories.
	Open(ctx context.Context, name string) (Object, error)

	// Create opens the named file for writing, truncating any existing file
	// and creating missing parent directories. Content becomes visible once
	// the returned writer is closed without error.
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// MkdirAll creates the named directory and any missing parents.
	MkdirAll(ctx context.Context, name string) error

	// Remove deletes a single file. Returns ErrNotFound if it does not exist.
	Remove(ctx context.Context, name string) error

	// RemoveAll deletes the named entry and everything below it.
	// Missing children are ignored.
	RemoveAll(ctx context.Context, name string) error
}

// ValidateName rejects names that are empty, absolute, contain parent or
// current directory segments, empty segments, backslashes or NUL bytes.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "\\\x00") || path.IsAbs(name) {
		return ErrInvalidName
	}
	// Windows drive letters ("C:") are absolute on some hosts.
	if len(name) >= 2 && name[1] == ':' {
		return ErrInvalidName
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidName
		}
	}
	return nil
}

// TopLevel returns the first path segment of name.
func TopLevel(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return name
}
