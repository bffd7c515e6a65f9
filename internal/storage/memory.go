package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Storage Root. It is used by tests and by
// ZD_STORAGE_BACKEND=memory for throwaway instances.
type Memory struct {
	mu    sync.RWMutex
	files map[string]memFile
	dirs  map[string]time.Time
	now   func() time.Time
}

type memFile struct {
	data    []byte
	modTime time.Time
}

type memObject struct {
	*bytes.Reader
	info EntryInfo
}

func (o *memObject) Close() error    { return nil }
func (o *memObject) Info() EntryInfo { return o.info }

// NewMemory returns an empty Memory root.
func NewMemory() *Memory {
	return &Memory{
		files: make(map[string]memFile),
		dirs:  make(map[string]time.Time),
		now:   time.Now,
	}
}

// parents returns every proper ancestor of name, shortest first.
func parents(name string) []string {
	var out []string
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			out = append(out, name[:i])
		}
	}
	return out
}

// mkdirs must be called with m.mu held for writing.
func (m *Memory) mkdirs(dirs ...string) error {
	for _, d := range dirs {
		if _, ok := m.files[d]; ok {
			return fmt.Errorf("%w: %s", ErrNotDirectory, d)
		}
	}
	now := m.now()
	for _, d := range dirs {
		if _, ok := m.dirs[d]; !ok {
			m.dirs[d] = now
		}
	}
	return nil
}

func (m *Memory) List(ctx context.Context) ([]EntryInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]EntryInfo, 0)
	for name, f := range m.files {
		if !strings.Contains(name, "/") {
			out = append(out, EntryInfo{Name: name, Size: int64(len(f.data)), ModTime: f.modTime})
		}
	}
	for name, t := range m.dirs {
		if !strings.Contains(name, "/") {
			out = append(out, EntryInfo{Name: name, ModTime: t, IsDir: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Stat(ctx context.Context, name string) (EntryInfo, error) {
	if err := ValidateName(name); err != nil {
		return EntryInfo{}, fmt.Errorf("%w: %q", err, name)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if f, ok := m.files[name]; ok {
		return EntryInfo{Name: name, Size: int64(len(f.data)), ModTime: f.modTime}, nil
	}
	if t, ok := m.dirs[name]; ok {
		return EntryInfo{Name: name, ModTime: t, IsDir: true}, nil
	}
	return EntryInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (m *Memory) Open(ctx context.Context, name string) (Object, error) {
	info, err := m.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	m.mu.RLock()
	data := m.files[name].data
	m.mu.RUnlock()
	return &memObject{Reader: bytes.NewReader(data), info: info}, nil
}

type memWriter struct {
	m      *Memory
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed entry %s", w.name)
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	if _, ok := w.m.dirs[w.name]; ok {
		return fmt.Errorf("%w: %s", ErrIsDirectory, w.name)
	}
	if err := w.m.mkdirs(parents(w.name)...); err != nil {
		return err
	}
	w.m.files[w.name] = memFile{data: bytes.Clone(w.buf.Bytes()), modTime: w.m.now()}
	return nil
}

func (m *Memory) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}
	m.mu.RLock()
	_, isDir := m.dirs[name]
	m.mu.RUnlock()
	if isDir {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	return &memWriter{m: m, name: name}, nil
}

func (m *Memory) MkdirAll(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mkdirs(append(parents(name), name)...)
}

func (m *Memory) Remove(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[name]; ok {
		return fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(m.files, name)
	return nil
}

func (m *Memory) RemoveAll(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := name + "/"
	for k := range m.files {
		if k == name || strings.HasPrefix(k, prefix) {
			delete(m.files, k)
		}
	}
	for k := range m.dirs {
		if k == name || strings.HasPrefix(k, prefix) {
			delete(m.dirs, k)
		}
	}
	return nil
}
