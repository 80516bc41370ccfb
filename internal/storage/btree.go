package storage

import (
	"fmt"

	"go.bptree/internal/logger"
)

// Compare orders two raw keys. It must be a strict weak ordering,
// stateless, and identical across every open of the same file; the
// engine stores no trace of it and cannot detect a mismatch.
type Compare func(a, b []byte) int

// Options configure a tree at open. PageSize and the record sizes are
// fixed at creation; on reopen they are checked against the header.
type Options struct {
	PageSize   int // power of two, >= MinPageSize; 0 means 4096
	CachePages int // resident page limit; 0 means 32
	KeySize    int
	ValueSize  int // 0 for the set variants
	Flags      Flags
	Signature  uint64
	Compare    Compare
	Log        *logger.Logger
}

const (
	DefaultPageSize   = 4096
	DefaultCachePages = 32
)

// Tree is a disk-resident B+ tree over fixed-size records. One writer
// at a time; not safe for concurrent use.
type Tree struct {
	pager *Pager
	log   *logger.Logger

	keySize   int
	valueSize int
	leafCap   int
	branchCap int
	unique    bool
	cmp       Compare
	readOnly  bool
	closed    bool
}

// Open opens or creates the tree file at path. Exactly one of the
// unique/multi policy bits must be set in opts.Flags; the container
// layer does this.
func Open(path string, opts Options) (*Tree, error) {
	if opts.Compare == nil {
		return nil, fmt.Errorf("open %s: nil comparator: %w", path, ErrLogic)
	}
	if opts.Flags.unknown() {
		return nil, fmt.Errorf("open %s: unknown flag bits: %w", path, ErrLogic)
	}
	if opts.Flags.unique() == opts.Flags.multi() {
		return nil, fmt.Errorf("open %s: need exactly one policy bit: %w", path, ErrLogic)
	}
	if opts.KeySize <= 0 || opts.ValueSize < 0 {
		return nil, fmt.Errorf("open %s: bad record sizes: %w", path, ErrLogic)
	}

	file, err := OpenFile(path, opts.Flags)
	if err != nil {
		return nil, err
	}

	t, err := openTree(file, opts)
	if err != nil {
		file.Close()
		return nil, err
	}
	return t, nil
}

func openTree(file *File, opts Options) (*Tree, error) {
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}

	cache := opts.CachePages
	if cache == 0 {
		cache = DefaultCachePages
	}

	t := &Tree{
		log:       log,
		keySize:   opts.KeySize,
		valueSize: opts.ValueSize,
		unique:    opts.Flags.unique(),
		cmp:       opts.Compare,
		readOnly:  !opts.Flags.readWrite(),
	}

	var hdr Header
	creating := file.Size() == 0
	if creating {
		if t.readOnly {
			return nil, fmt.Errorf("open %s: empty file read-only: %w", file.Path(), ErrIO)
		}
		pageSize := opts.PageSize
		if pageSize == 0 {
			pageSize = DefaultPageSize
		}
		if pageSize < MinPageSize || pageSize&(pageSize-1) != 0 {
			return nil, fmt.Errorf("open %s: page size %d: %w", file.Path(), pageSize, ErrLogic)
		}
		hdr = Header{
			Signature: opts.Signature,
			PageSize:  pageSize,
			KeySize:   opts.KeySize,
			ValueSize: opts.ValueSize,
			Unique:    t.unique,
		}
	} else {
		buf := make([]byte, headerSize)
		if err := file.ReadAt(buf, 0); err != nil {
			return nil, err
		}
		if err := hdr.decode(buf); err != nil {
			return nil, err
		}
		if hdr.KeySize != opts.KeySize || hdr.ValueSize != opts.ValueSize {
			return nil, fmt.Errorf("file has key/value %d/%d, caller wants %d/%d: %w",
				hdr.KeySize, hdr.ValueSize, opts.KeySize, opts.ValueSize, ErrSchemaMismatch)
		}
		if opts.PageSize != 0 && opts.PageSize != hdr.PageSize {
			return nil, fmt.Errorf("file has page size %d, caller wants %d: %w",
				hdr.PageSize, opts.PageSize, ErrSchemaMismatch)
		}
		if hdr.Unique != t.unique {
			return nil, fmt.Errorf("file policy does not match open flags: %w", ErrSchemaMismatch)
		}
		if opts.Signature != SigAny && opts.Signature != hdr.Signature {
			return nil, fmt.Errorf("signature %#x, file has %#x: %w",
				opts.Signature, hdr.Signature, ErrSignatureMismatch)
		}
	}

	t.leafCap = (hdr.PageSize - nodeHeaderSize) / (t.keySize + t.valueSize)
	t.branchCap = (hdr.PageSize - nodeHeaderSize - 8) / (t.keySize + 8)
	if t.leafCap < 2 || t.branchCap < 2 {
		return nil, fmt.Errorf("records too large for page size %d: %w", hdr.PageSize, ErrLogic)
	}

	if cache < hdr.RootLevel+2 {
		return nil, fmt.Errorf("cache %d pages, tree height needs %d: %w",
			cache, hdr.RootLevel+2, ErrCacheTooSmall)
	}

	pager, err := newPager(file, hdr, cache, log)
	if err != nil {
		return nil, err
	}
	t.pager = pager

	if creating {
		root, err := pager.Allocate(0)
		if err != nil {
			return nil, err
		}
		pager.Header().RootID = root.ID
		pager.Header().RootLevel = 0
		pager.MarkHeaderDirty()
		pager.Unpin(root.ID)
		if err := pager.Flush(); err != nil {
			return nil, err
		}
	}

	if opts.Flags.preload() {
		if err := pager.Preload(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) compare(a, b []byte) int { return t.cmp(a, b) }

// CompareKeys applies the tree's comparator to two raw keys.
func (t *Tree) CompareKeys(a, b []byte) int { return t.cmp(a, b) }

func (t *Tree) root() PageID   { return t.pager.Header().RootID }
func (t *Tree) rootLevel() int { return t.pager.Header().RootLevel }

func (t *Tree) minLeaf() int   { return (t.leafCap + 1) / 2 }
func (t *Tree) minBranch() int { return t.branchCap / 2 }

func (t *Tree) Size() uint64 { return t.pager.Header().Count }
func (t *Tree) Empty() bool  { return t.Size() == 0 }

func (t *Tree) KeySize() int   { return t.keySize }
func (t *Tree) ValueSize() int { return t.valueSize }
func (t *Tree) PageSize() int  { return t.pager.pageSize }
func (t *Tree) Unique() bool   { return t.unique }

// Flush writes all dirty state through to the file.
func (t *Tree) Flush() error {
	if t.closed {
		return fmt.Errorf("flush after close: %w", ErrLogic)
	}
	return t.pager.Flush()
}

// Close flushes and releases the file. Safe to call twice.
func (t *Tree) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.pager.Close()
}

func (t *Tree) mutable() error {
	if t.closed {
		return fmt.Errorf("use after close: %w", ErrLogic)
	}
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *Tree) checkKey(key []byte) error {
	if len(key) != t.keySize {
		return fmt.Errorf("key length %d, want %d: %w", len(key), t.keySize, ErrLogic)
	}
	return nil
}

func (t *Tree) checkRecord(key, value []byte) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	if len(value) != t.valueSize {
		return fmt.Errorf("value length %d, want %d: %w", len(value), t.valueSize, ErrLogic)
	}
	return nil
}
