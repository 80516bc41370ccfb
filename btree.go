// Package bptree provides disk-resident ordered containers backed by a
// paged B+ tree: Map and Set reject duplicate keys, Multimap and
// Multiset keep them in insertion order.
//
// Keys and values must be plain-bytes types: fixed size, position
// independent, no pointers, strings, slices or other indirection. The
// check runs at open and fails before any file I/O. Records are stored
// in their raw in-memory byte order, so files are not portable across
// architectures with a different byte order.
package bptree

import (
	"fmt"
	"reflect"
	"unsafe"

	"go.bptree/internal/storage"
)

// Flags and errors are re-exported so callers need only this package.
type Flags = storage.Flags

const (
	ReadOnly  = storage.ReadOnly
	ReadWrite = storage.ReadWrite
	Truncate  = storage.Truncate
	Preload   = storage.Preload
)

// SigAny skips the signature check when reopening an existing file.
const SigAny = storage.SigAny

var (
	ErrIO                = storage.ErrIO
	ErrSchemaMismatch    = storage.ErrSchemaMismatch
	ErrSignatureMismatch = storage.ErrSignatureMismatch
	ErrFormat            = storage.ErrFormat
	ErrCacheExhausted    = storage.ErrCacheExhausted
	ErrCacheTooSmall     = storage.ErrCacheTooSmall
	ErrInvalidIterator   = storage.ErrInvalidIterator
	ErrLogic             = storage.ErrLogic
)

// Options configure a container at open. The zero value of Less picks
// the natural ordering for the built-in fixed-width numeric kinds;
// every other key type must bring its own.
type Options[K any] struct {
	PageSize   int
	CachePages int
	Flags      Flags
	Signature  uint64
	Less       func(a, b K) bool
}

func rawBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}

func decode[T any](buf []byte) T {
	var v T
	copy(rawBytes(&v), buf)
	return v
}

// checkPlainBytes rejects any type whose representation is not a
// self-contained run of bytes.
func checkPlainBytes(rt reflect.Type) error {
	switch rt.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkPlainBytes(rt.Elem())
	case reflect.Struct:
		for i := 0; i < rt.NumField(); i++ {
			if err := checkPlainBytes(rt.Field(i).Type); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%s is not a plain-bytes type: %w", rt, ErrLogic)
	}
}

func defaultLess[K any]() (func(a, b K) bool, error) {
	switch any(*new(K)).(type) {
	case int8:
		return func(a, b K) bool { return any(a).(int8) < any(b).(int8) }, nil
	case int16:
		return func(a, b K) bool { return any(a).(int16) < any(b).(int16) }, nil
	case int32:
		return func(a, b K) bool { return any(a).(int32) < any(b).(int32) }, nil
	case int64:
		return func(a, b K) bool { return any(a).(int64) < any(b).(int64) }, nil
	case uint8:
		return func(a, b K) bool { return any(a).(uint8) < any(b).(uint8) }, nil
	case uint16:
		return func(a, b K) bool { return any(a).(uint16) < any(b).(uint16) }, nil
	case uint32:
		return func(a, b K) bool { return any(a).(uint32) < any(b).(uint32) }, nil
	case uint64:
		return func(a, b K) bool { return any(a).(uint64) < any(b).(uint64) }, nil
	case float32:
		return func(a, b K) bool { return any(a).(float32) < any(b).(float32) }, nil
	case float64:
		return func(a, b K) bool { return any(a).(float64) < any(b).(float64) }, nil
	}
	var k K
	return nil, fmt.Errorf("no natural ordering for %T, supply Less: %w", k, ErrLogic)
}

func buildOptions[K, V any](opts Options[K], policy Flags) (storage.Options, error) {
	if err := checkPlainBytes(reflect.TypeOf((*K)(nil)).Elem()); err != nil {
		return storage.Options{}, err
	}
	if err := checkPlainBytes(reflect.TypeOf((*V)(nil)).Elem()); err != nil {
		return storage.Options{}, err
	}

	less := opts.Less
	if less == nil {
		var err error
		less, err = defaultLess[K]()
		if err != nil {
			return storage.Options{}, err
		}
	}

	cmp := func(a, b []byte) int {
		ka, kb := decode[K](a), decode[K](b)
		if less(ka, kb) {
			return -1
		}
		if less(kb, ka) {
			return 1
		}
		return 0
	}

	return storage.Options{
		PageSize:   opts.PageSize,
		CachePages: opts.CachePages,
		KeySize:    int(unsafe.Sizeof(*new(K))),
		ValueSize:  int(unsafe.Sizeof(*new(V))),
		Flags:      opts.Flags | policy,
		Signature:  opts.Signature,
		Compare:    cmp,
	}, nil
}

//  containers  ------------------------------------------------------//

type Map[K, V any] struct{ handle[K, V] }

type Multimap[K, V any] struct{ handle[K, V] }

type Set[K any] struct{ handle[K, struct{}] }

type Multiset[K any] struct{ handle[K, struct{}] }

func OpenMap[K, V any](path string, opts Options[K]) (*Map[K, V], error) {
	t, err := openTree[K, V](path, opts, storage.Unique)
	if err != nil {
		return nil, err
	}
	return &Map[K, V]{handle[K, V]{tree: t}}, nil
}

func OpenMultimap[K, V any](path string, opts Options[K]) (*Multimap[K, V], error) {
	t, err := openTree[K, V](path, opts, storage.Multi)
	if err != nil {
		return nil, err
	}
	return &Multimap[K, V]{handle[K, V]{tree: t}}, nil
}

func OpenSet[K any](path string, opts Options[K]) (*Set[K], error) {
	t, err := openTree[K, struct{}](path, opts, storage.Unique)
	if err != nil {
		return nil, err
	}
	return &Set[K]{handle[K, struct{}]{tree: t}}, nil
}

func OpenMultiset[K any](path string, opts Options[K]) (*Multiset[K], error) {
	t, err := openTree[K, struct{}](path, opts, storage.Multi)
	if err != nil {
		return nil, err
	}
	return &Multiset[K]{handle[K, struct{}]{tree: t}}, nil
}

func openTree[K, V any](path string, opts Options[K], policy Flags) (*storage.Tree, error) {
	sopts, err := buildOptions[K, V](opts, policy)
	if err != nil {
		return nil, err
	}
	return storage.Open(path, sopts)
}

// Insert adds the pair unless the key is already present; ok reports
// whether it went in.
func (m *Map[K, V]) Insert(key K, value V) (bool, error) {
	it, ok, err := m.insert(key, value)
	if it != nil {
		it.Release()
	}
	return ok, err
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool, error) {
	var zero V
	it, err := m.Find(key)
	if err != nil {
		return zero, false, err
	}
	defer it.Release()
	if !it.Valid() {
		return zero, false, nil
	}
	return it.Value(), true, nil
}

// Insert always adds the pair, after any entries with an equal key.
func (m *Multimap[K, V]) Insert(key K, value V) error {
	it, _, err := m.insert(key, value)
	if it != nil {
		it.Release()
	}
	return err
}

// Insert adds the key unless present.
func (s *Set[K]) Insert(key K) (bool, error) {
	it, ok, err := s.insert(key, struct{}{})
	if it != nil {
		it.Release()
	}
	return ok, err
}

// Insert always adds the key.
func (s *Multiset[K]) Insert(key K) error {
	it, _, err := s.insert(key, struct{}{})
	if it != nil {
		it.Release()
	}
	return err
}

func (m *Map[K, V]) Equal(o *Map[K, V]) (bool, error)           { return m.sameContents(&o.handle) }
func (m *Multimap[K, V]) Equal(o *Multimap[K, V]) (bool, error) { return m.sameContents(&o.handle) }
func (s *Set[K]) Equal(o *Set[K]) (bool, error)                 { return s.sameContents(&o.handle) }
func (s *Multiset[K]) Equal(o *Multiset[K]) (bool, error)       { return s.sameContents(&o.handle) }

// Compare orders two containers lexicographically by their entries:
// negative when the receiver sorts first, zero when equal, positive
// otherwise.
func (m *Map[K, V]) Compare(o *Map[K, V]) (int, error)           { return m.compareTo(&o.handle) }
func (m *Multimap[K, V]) Compare(o *Multimap[K, V]) (int, error) { return m.compareTo(&o.handle) }
func (s *Set[K]) Compare(o *Set[K]) (int, error)                 { return s.compareTo(&o.handle) }
func (s *Multiset[K]) Compare(o *Multiset[K]) (int, error)       { return s.compareTo(&o.handle) }
