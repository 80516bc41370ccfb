package index

import (
	"fmt"

	"go.bptree/internal/storage"
)

// Position is a byte offset of a record in a flat file. The top bit is
// reserved: positions carrying it resolve to an index's probe buffer
// during search and never reach disk.
type Position uint64

const probeBit Position = 1 << 63

// File is an append-only flat file of fixed-size records. One file may
// back any number of indices.
type File struct {
	bf         *storage.File
	recordSize int
}

func OpenFile(path string, flags storage.Flags, recordSize int) (*File, error) {
	if recordSize <= 0 {
		return nil, fmt.Errorf("record size %d: %w", recordSize, storage.ErrLogic)
	}
	bf, err := storage.OpenFile(path, flags)
	if err != nil {
		return nil, err
	}
	if bf.Size()%int64(recordSize) != 0 {
		bf.Close()
		return nil, fmt.Errorf("%s size %d not a record multiple: %w", path, bf.Size(), storage.ErrFormat)
	}
	return &File{bf: bf, recordSize: recordSize}, nil
}

func (f *File) RecordSize() int { return f.recordSize }

// Count is the number of records currently in the file.
func (f *File) Count() uint64 {
	return uint64(f.bf.Size()) / uint64(f.recordSize)
}

// PushBack appends a record and returns its position.
func (f *File) PushBack(rec []byte) (Position, error) {
	if len(rec) != f.recordSize {
		return 0, fmt.Errorf("record length %d, want %d: %w", len(rec), f.recordSize, storage.ErrLogic)
	}
	pos := Position(f.bf.Size())
	if pos&probeBit != 0 {
		return 0, fmt.Errorf("file exceeds addressable range: %w", storage.ErrLogic)
	}
	if err := f.bf.WriteAt(rec, int64(pos)); err != nil {
		return 0, err
	}
	return pos, nil
}

// ReadAt fills buf with the record at pos.
func (f *File) ReadAt(pos Position, buf []byte) error {
	if uint64(pos)%uint64(f.recordSize) != 0 {
		return fmt.Errorf("position %d not record aligned: %w", pos, storage.ErrLogic)
	}
	return f.bf.ReadAt(buf[:f.recordSize], int64(pos))
}

func (f *File) Sync() error  { return f.bf.Sync() }
func (f *File) Close() error { return f.bf.Close() }
