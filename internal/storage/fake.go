package storage

import (
	"errors"
	"fmt"
	"os"
)

// FakeMedium is an in-memory Medium with failure injection.
type FakeMedium struct {
	Files map[string][]byte

	// OpenError, if set, is returned by OpenAppend.
	OpenError error
	// WriteError, if set, is returned by Write after PartialBytes bytes
	// of the record have been stored.
	WriteError   error
	PartialBytes int
	// CloseError, if set, is returned by Close.
	CloseError error
	// SyncError, if set, is returned by Sync.
	SyncError error

	// Opens counts OpenAppend calls; OpenHandles counts handles not yet closed.
	Opens       int
	OpenHandles int
	// Syncs lists the paths passed to successful Sync calls.
	Syncs []string
	// SyncAttempts counts every Sync call.
	SyncAttempts int
}

// NewFakeMedium creates an empty FakeMedium.
func NewFakeMedium() *FakeMedium {
	return &FakeMedium{Files: make(map[string][]byte)}
}

type fakeFile struct {
	m      *FakeMedium
	path   string
	closed bool
}

func (m *FakeMedium) OpenAppend(path string) (File, error) {
	if m.OpenError != nil {
		return nil, m.OpenError
	}
	if _, ok := m.Files[path]; !ok {
		m.Files[path] = nil
	}
	m.Opens++
	m.OpenHandles++
	return &fakeFile{m: m, path: path}, nil
}

func (f *fakeFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.m.WriteError != nil {
		n := f.m.PartialBytes
		if n > len(p) {
			n = len(p)
		}
		f.m.Files[f.path] = append(f.m.Files[f.path], p[:n]...)
		return n, f.m.WriteError
	}
	f.m.Files[f.path] = append(f.m.Files[f.path], p...)
	return len(p), nil
}

func (f *fakeFile) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	f.m.OpenHandles--
	return f.m.CloseError
}

func (f *fakeFile) Size() (int64, error) {
	return int64(len(f.m.Files[f.path])), nil
}

func (f *fakeFile) Truncate(size int64) error {
	b := f.m.Files[f.path]
	if size < 0 || size > int64(len(b)) {
		return errors.New("fake: bad truncate size")
	}
	f.m.Files[f.path] = b[:size]
	return nil
}

func (m *FakeMedium) Sync(path string) error {
	m.SyncAttempts++
	if m.SyncError != nil {
		return m.SyncError
	}
	if _, ok := m.Files[path]; !ok {
		return fmt.Errorf("sync %s: %w", path, os.ErrNotExist)
	}
	m.Syncs = append(m.Syncs, path)
	return nil
}

func (m *FakeMedium) Tail(path string) (Tail, error) {
	b, ok := m.Files[path]
	if !ok {
		return Tail{}, os.ErrNotExist
	}
	line, end := lastLine(b)
	return Tail{Line: line, Complete: int64(end), Size: int64(len(b))}, nil
}
