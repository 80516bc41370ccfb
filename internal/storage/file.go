package storage

import (
	"errors"
	"fmt"
	"os"
)

// File is the untyped byte layer under the pager: positioned reads and
// writes of whole byte ranges against a single handle.

type File struct {
	f        *os.File
	path     string
	size     int64
	readOnly bool
}

func OpenFile(path string, flags Flags) (*File, error) {
	if flags.unknown() {
		return nil, fmt.Errorf("open %s: unknown flag bits: %w", path, ErrLogic)
	}

	mode := os.O_RDONLY
	readOnly := true
	if flags.readWrite() {
		mode = os.O_RDWR | os.O_CREATE
		readOnly = false
	}
	if flags.truncate() {
		if readOnly {
			return nil, fmt.Errorf("open %s: truncate without read_write: %w", path, ErrLogic)
		}
		mode |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, mode, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, ErrIO)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %v: %w", path, err, ErrIO)
	}

	return &File{
		f:        f,
		path:     path,
		size:     info.Size(),
		readOnly: readOnly,
	}, nil
}

func (bf *File) Path() string { return bf.path }
func (bf *File) Size() int64  { return bf.size }

// ReadAt fills buf from offset off. Reading past EOF is an error, not
// a short read.
func (bf *File) ReadAt(buf []byte, off int64) error {
	if off+int64(len(buf)) > bf.size {
		return fmt.Errorf("read %s at %d: %w", bf.path, off, ErrShortRead)
	}
	if _, err := bf.f.ReadAt(buf, off); err != nil {
		return fmt.Errorf("read %s at %d: %v: %w", bf.path, off, err, ErrIO)
	}
	return nil
}

// WriteAt writes buf at offset off, extending the file when the range
// ends past EOF.
func (bf *File) WriteAt(buf []byte, off int64) error {
	if bf.readOnly {
		return fmt.Errorf("write %s: %w", bf.path, ErrReadOnly)
	}
	if _, err := bf.f.WriteAt(buf, off); err != nil {
		return fmt.Errorf("write %s at %d: %v: %w", bf.path, off, err, ErrIO)
	}
	if end := off + int64(len(buf)); end > bf.size {
		bf.size = end
	}
	return nil
}

func (bf *File) Sync() error {
	if bf.readOnly {
		return nil
	}
	if err := bf.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %v: %w", bf.path, err, ErrIO)
	}
	return nil
}

func (bf *File) Close() error {
	err := bf.f.Close()
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close %s: %v: %w", bf.path, err, ErrIO)
	}
	return nil
}
