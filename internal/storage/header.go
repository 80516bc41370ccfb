package storage

import (
	"encoding/binary"
	"fmt"
)

// File header, stored at the front of page 0. All fields are
// little-endian; keys and values elsewhere keep their raw in-memory
// byte order.
//
//	magic:8 signature:8 major:2 minor:2 page_size:4 key_size:4
//	value_size:4 flags:4 root:8 root_level:2 count:8 free_head:8

var magic = []byte{'G', 'o', 'B', 'P', 'T', 'r', 'e', 'e'}

const (
	versionMajor = 1
	versionMinor = 0
)

// SigAny skips the signature check on reopen.
const SigAny = ^uint64(0)

const (
	hdrMagic     = 0
	hdrSignature = 8
	hdrMajor     = 16
	hdrMinor     = 18
	hdrPageSize  = 20
	hdrKeySize   = 24
	hdrValueSize = 28
	hdrFlags     = 32
	hdrRoot      = 36
	hdrRootLevel = 44
	hdrCount     = 46
	hdrFreeHead  = 54

	headerSize = 62
)

const (
	hdrFlagUnique = 1 << 0
	hdrFlagMulti  = 1 << 1
)

// ReadHeader decodes the header of an existing tree file without
// opening the tree. Used by inspection tools.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := OpenFile(path, ReadOnly)
	if err != nil {
		return h, err
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	if err := f.ReadAt(buf, 0); err != nil {
		return h, err
	}
	err = h.decode(buf)
	return h, err
}

type Header struct {
	Signature uint64
	PageSize  int
	KeySize   int
	ValueSize int
	Unique    bool
	RootID    PageID
	RootLevel int
	Count     uint64
	FreeHead  PageID
}

func (h *Header) encode(buf []byte) {
	copy(buf[hdrMagic:], magic)
	binary.LittleEndian.PutUint64(buf[hdrSignature:], h.Signature)
	binary.LittleEndian.PutUint16(buf[hdrMajor:], versionMajor)
	binary.LittleEndian.PutUint16(buf[hdrMinor:], versionMinor)
	binary.LittleEndian.PutUint32(buf[hdrPageSize:], uint32(h.PageSize))
	binary.LittleEndian.PutUint32(buf[hdrKeySize:], uint32(h.KeySize))
	binary.LittleEndian.PutUint32(buf[hdrValueSize:], uint32(h.ValueSize))

	var fl uint32 = hdrFlagMulti
	if h.Unique {
		fl = hdrFlagUnique
	}
	binary.LittleEndian.PutUint32(buf[hdrFlags:], fl)

	binary.LittleEndian.PutUint64(buf[hdrRoot:], uint64(h.RootID))
	binary.LittleEndian.PutUint16(buf[hdrRootLevel:], uint16(h.RootLevel))
	binary.LittleEndian.PutUint64(buf[hdrCount:], h.Count)
	binary.LittleEndian.PutUint64(buf[hdrFreeHead:], uint64(h.FreeHead))
}

func (h *Header) decode(buf []byte) error {
	for i, b := range magic {
		if buf[hdrMagic+i] != b {
			return fmt.Errorf("bad magic: %w", ErrFormat)
		}
	}
	if v := binary.LittleEndian.Uint16(buf[hdrMajor:]); v != versionMajor {
		return fmt.Errorf("unsupported format version %d: %w", v, ErrFormat)
	}

	h.Signature = binary.LittleEndian.Uint64(buf[hdrSignature:])
	h.PageSize = int(binary.LittleEndian.Uint32(buf[hdrPageSize:]))
	h.KeySize = int(binary.LittleEndian.Uint32(buf[hdrKeySize:]))
	h.ValueSize = int(binary.LittleEndian.Uint32(buf[hdrValueSize:]))

	fl := binary.LittleEndian.Uint32(buf[hdrFlags:])
	switch fl & (hdrFlagUnique | hdrFlagMulti) {
	case hdrFlagUnique:
		h.Unique = true
	case hdrFlagMulti:
		h.Unique = false
	default:
		return fmt.Errorf("bad policy flags %#x: %w", fl, ErrFormat)
	}

	h.RootID = PageID(binary.LittleEndian.Uint64(buf[hdrRoot:]))
	h.RootLevel = int(binary.LittleEndian.Uint16(buf[hdrRootLevel:]))
	h.Count = binary.LittleEndian.Uint64(buf[hdrCount:])
	h.FreeHead = PageID(binary.LittleEndian.Uint64(buf[hdrFreeHead:]))

	if h.PageSize < MinPageSize || h.PageSize&(h.PageSize-1) != 0 {
		return fmt.Errorf("bad page size %d: %w", h.PageSize, ErrFormat)
	}
	if h.KeySize <= 0 || h.ValueSize < 0 {
		return fmt.Errorf("bad record sizes %d/%d: %w", h.KeySize, h.ValueSize, ErrFormat)
	}
	return nil
}
