// Package storage appends log records to the SD card and bounds how much
// unflushed data a power loss can destroy.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// File is an open append-only log file.
type File interface {
	io.Writer
	io.Closer
	// Size returns the current file length.
	Size() (int64, error)
	// Truncate cuts the file back to size bytes.
	Truncate(size int64) error
}

// Medium is the filesystem collaborator used by Writer.
type Medium interface {
	// OpenAppend opens path for appending, creating it if needed.
	OpenAppend(path string) (File, error)
	// Sync commits path (and its directory entry) to stable storage.
	Sync(path string) error
	// Tail describes the end of path. It returns an error satisfying
	// errors.Is(err, os.ErrNotExist) if the file does not exist.
	Tail(path string) (Tail, error)
}

// Tail is the end of an existing log file.
type Tail struct {
	// Line is the final newline-terminated line, without its newline, or
	// "" if there is none.
	Line string
	// Complete is the length of the file up to and including its last
	// newline. Bytes beyond it are a torn record.
	Complete int64
	// Size is the file length.
	Size int64
}

// Torn reports whether the file ends in an unterminated fragment.
func (t Tail) Torn() bool { return t.Size > t.Complete }

// OSMedium is the real filesystem.
type OSMedium struct{}

type osFile struct{ *os.File }

func (f osFile) Size() (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (OSMedium) OpenAppend(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return osFile{f}, nil
}

func (OSMedium) Sync(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return syncDir(filepath.Dir(path))
}

// syncDir commits directory entries so a newly created file survives power
// loss. Filesystems that cannot fsync a directory (EINVAL) are tolerated.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		return fmt.Errorf("fsync dir %s: %w", dir, err)
	}
	return nil
}

// tailChunk bounds how much of a file Tail reads in the common case.
const tailChunk = 4096

func (OSMedium) Tail(path string) (Tail, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tail{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Tail{}, err
	}
	size := st.Size()
	off := size - tailChunk
	if off < 0 {
		off = 0
	}
	for {
		buf := make([]byte, size-off)
		if _, err := f.ReadAt(buf, off); err != nil && err != io.EOF {
			return Tail{}, err
		}
		line, end := lastLine(buf)
		// No newline in the chunk: widen to the whole file once.
		if end == 0 && off > 0 {
			off = 0
			continue
		}
		return Tail{Line: line, Complete: off + int64(end), Size: size}, nil
	}
}

// lastLine returns the last newline-terminated line in buf and the offset
// just past its newline. A trailing fragment without a newline is not
// part of either.
func lastLine(buf []byte) (string, int) {
	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		return "", 0
	}
	start := bytes.LastIndexByte(buf[:end], '\n') + 1
	return string(buf[start:end]), end + 1
}
