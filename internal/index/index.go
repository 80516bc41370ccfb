// Package index layers ordered access over an append-only flat file:
// records live once in the file, a B+ tree holds only their positions,
// and the tree's comparator reads records back through a cache to
// order positions by a caller-supplied projection. Several indices
// with different projections can share one file.
package index

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"go.bptree/internal/logger"
	"go.bptree/internal/storage"
)

// CompareRecords orders two full records by the indexed projection.
type CompareRecords func(a, b []byte) int

type Options struct {
	PageSize   int
	CachePages int
	Flags      storage.Flags
	Signature  uint64
	Compare    CompareRecords

	// RecordCacheBytes bounds the read-through record cache in front
	// of the flat file; 0 means 1 MiB.
	RecordCacheBytes int64

	Log *logger.Logger
}

const defaultRecordCacheBytes = 1 << 20

// Index is a position-keyed tree over a shared flat file.
type Index struct {
	file  *File
	tree  *storage.Tree
	cmp   CompareRecords
	cache *ristretto.Cache[uint64, []byte]
	probe []byte
	log   *logger.Logger
}

// Open opens or creates the index tree at treePath over file. The
// comparator runs during every descent, so record reads it causes go
// through the cache.
func Open(file *File, treePath string, opts Options) (*Index, error) {
	if opts.Compare == nil {
		return nil, fmt.Errorf("open %s: nil comparator: %w", treePath, storage.ErrLogic)
	}

	cacheBytes := opts.RecordCacheBytes
	if cacheBytes == 0 {
		cacheBytes = defaultRecordCacheBytes
	}
	counters := 10 * cacheBytes / int64(file.RecordSize())
	if counters < 1024 {
		counters = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: counters,
		MaxCost:     cacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("record cache: %v: %w", err, storage.ErrLogic)
	}

	ix := &Index{
		file:  file,
		cmp:   opts.Compare,
		cache: cache,
		log:   opts.Log,
	}
	if ix.log == nil {
		ix.log = logger.Discard()
	}

	tree, err := storage.Open(treePath, storage.Options{
		PageSize:   opts.PageSize,
		CachePages: opts.CachePages,
		KeySize:    8,
		ValueSize:  0,
		Flags:      opts.Flags | storage.Multi,
		Signature:  opts.Signature,
		Compare:    ix.comparePositions,
		Log:        opts.Log,
	})
	if err != nil {
		cache.Close()
		return nil, err
	}
	ix.tree = tree
	return ix, nil
}

func (ix *Index) comparePositions(a, b []byte) int {
	ra := ix.resolve(Position(binary.LittleEndian.Uint64(a)))
	rb := ix.resolve(Position(binary.LittleEndian.Uint64(b)))
	return ix.cmp(ra, rb)
}

// resolve turns a position into record bytes. Probe positions name
// the in-flight search record; real positions read through the cache.
func (ix *Index) resolve(pos Position) []byte {
	if pos&probeBit != 0 {
		return ix.probe
	}
	if rec, ok := ix.cache.Get(uint64(pos)); ok {
		return rec
	}
	rec := make([]byte, ix.file.RecordSize())
	if err := ix.file.ReadAt(pos, rec); err != nil {
		// A position inside the tree always names a written record;
		// failing to read it back is corruption.
		panic(fmt.Sprintf("record at %d unreadable: %v", pos, err))
	}
	ix.cache.Set(uint64(pos), rec, int64(len(rec)))
	return rec
}

func posKey(pos Position) []byte {
	var k [8]byte
	binary.LittleEndian.PutUint64(k[:], uint64(pos))
	return k[:]
}

func (ix *Index) Size() uint64 { return ix.tree.Size() }
func (ix *Index) Empty() bool  { return ix.tree.Empty() }
func (ix *Index) File() *File  { return ix.file }

// PushBack appends a record to the flat file without indexing it.
func (ix *Index) PushBack(rec []byte) (Position, error) {
	return ix.file.PushBack(rec)
}

// InsertPosition indexes a record already in the file.
func (ix *Index) InsertPosition(pos Position) error {
	it, _, err := ix.tree.Insert(posKey(pos), nil)
	if err != nil {
		return err
	}
	it.Release()
	return nil
}

// Insert appends and indexes in one step.
func (ix *Index) Insert(rec []byte) (Position, error) {
	pos, err := ix.file.PushBack(rec)
	if err != nil {
		return 0, err
	}
	return pos, ix.InsertPosition(pos)
}

// withProbe runs a search with rec standing in for an unwritten
// record, addressed through the probe bit.
func (ix *Index) withProbe(rec []byte, fn func(key []byte) (*storage.Iterator, error)) (*Iter, error) {
	if len(rec) != ix.file.RecordSize() {
		return nil, fmt.Errorf("record length %d, want %d: %w", len(rec), ix.file.RecordSize(), storage.ErrLogic)
	}
	ix.probe = rec
	defer func() { ix.probe = nil }()

	it, err := fn(posKey(probeBit))
	if err != nil {
		return nil, err
	}
	return &Iter{it: it, ix: ix}, nil
}

// Find returns an iterator at the first indexed record comparing
// equal to rec under the projection, or end.
func (ix *Index) Find(rec []byte) (*Iter, error) {
	return ix.withProbe(rec, ix.tree.Find)
}

func (ix *Index) LowerBound(rec []byte) (*Iter, error) {
	return ix.withProbe(rec, ix.tree.LowerBound)
}

func (ix *Index) UpperBound(rec []byte) (*Iter, error) {
	return ix.withProbe(rec, ix.tree.UpperBound)
}

func (ix *Index) Begin() (*Iter, error) {
	it, err := ix.tree.Begin()
	if err != nil {
		return nil, err
	}
	return &Iter{it: it, ix: ix}, nil
}

func (ix *Index) Flush() error { return ix.tree.Flush() }

// Close releases the tree and the record cache; the flat file is
// shared and stays open.
func (ix *Index) Close() error {
	ix.cache.Close()
	return ix.tree.Close()
}

//  iterator  --------------------------------------------------------//

// Iter walks index entries in projection order.
type Iter struct {
	it *storage.Iterator
	ix *Index
}

func (i *Iter) Valid() bool { return i.it.Valid() }

func (i *Iter) Position() Position {
	return Position(binary.LittleEndian.Uint64(i.it.Key()))
}

// Record reads the record the current entry points at.
func (i *Iter) Record() ([]byte, error) {
	rec := make([]byte, i.ix.file.RecordSize())
	if err := i.ix.file.ReadAt(i.Position(), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (i *Iter) Next() error { return i.it.Next() }
func (i *Iter) Prev() error { return i.it.Prev() }
func (i *Iter) Release()    { i.it.Release() }
