package bptree

import (
	"bytes"

	"go.bptree/internal/storage"
)

// handle carries the operations shared by all four container kinds.
type handle[K, V any] struct {
	tree *storage.Tree
}

// Tree exposes the raw engine underneath, for tools that inspect or
// bulk-load a container.
func (h *handle[K, V]) Tree() *storage.Tree { return h.tree }

func (h *handle[K, V]) Size() uint64 { return h.tree.Size() }
func (h *handle[K, V]) Empty() bool  { return h.tree.Empty() }

func (h *handle[K, V]) Close() error { return h.tree.Close() }
func (h *handle[K, V]) Flush() error { return h.tree.Flush() }

func (h *handle[K, V]) CheckInvariants() error { return h.tree.CheckInvariants() }

func (h *handle[K, V]) insert(key K, value V) (*Iter[K, V], bool, error) {
	it, ok, err := h.tree.Insert(rawBytes(&key), rawBytes(&value))
	if err != nil {
		return nil, false, err
	}
	return &Iter[K, V]{it: it}, ok, nil
}

func (h *handle[K, V]) Begin() (*Iter[K, V], error) {
	it, err := h.tree.Begin()
	if err != nil {
		return nil, err
	}
	return &Iter[K, V]{it: it}, nil
}

func (h *handle[K, V]) End() *Iter[K, V] {
	return &Iter[K, V]{it: h.tree.End()}
}

// RBegin starts a backward traversal at the largest entry.
func (h *handle[K, V]) RBegin() (*Iter[K, V], error) {
	it, err := h.tree.RBegin()
	if err != nil {
		return nil, err
	}
	return &Iter[K, V]{it: it}, nil
}

func (h *handle[K, V]) Find(key K) (*Iter[K, V], error) {
	it, err := h.tree.Find(rawBytes(&key))
	if err != nil {
		return nil, err
	}
	return &Iter[K, V]{it: it}, nil
}

func (h *handle[K, V]) LowerBound(key K) (*Iter[K, V], error) {
	it, err := h.tree.LowerBound(rawBytes(&key))
	if err != nil {
		return nil, err
	}
	return &Iter[K, V]{it: it}, nil
}

func (h *handle[K, V]) UpperBound(key K) (*Iter[K, V], error) {
	it, err := h.tree.UpperBound(rawBytes(&key))
	if err != nil {
		return nil, err
	}
	return &Iter[K, V]{it: it}, nil
}

func (h *handle[K, V]) EqualRange(key K) (*Iter[K, V], *Iter[K, V], error) {
	lo, hi, err := h.tree.EqualRange(rawBytes(&key))
	if err != nil {
		return nil, nil, err
	}
	return &Iter[K, V]{it: lo}, &Iter[K, V]{it: hi}, nil
}

func (h *handle[K, V]) Contains(key K) (bool, error) {
	return h.tree.Contains(rawBytes(&key))
}

// Erase removes every entry with an equal key and reports how many.
func (h *handle[K, V]) Erase(key K) (int, error) {
	return h.tree.Erase(rawBytes(&key))
}

// EraseIter removes the pointed-at entry and returns its successor.
// The argument iterator is consumed.
func (h *handle[K, V]) EraseIter(it *Iter[K, V]) (*Iter[K, V], error) {
	succ, err := h.tree.EraseIterator(it.it)
	if err != nil {
		return nil, err
	}
	return &Iter[K, V]{it: succ}, nil
}

// sameContents walks both containers and compares entries pairwise,
// the way two ordered containers compare equal.
func (h *handle[K, V]) sameContents(o *handle[K, V]) (bool, error) {
	if h.tree.Size() != o.tree.Size() {
		return false, nil
	}
	a, err := h.tree.Begin()
	if err != nil {
		return false, err
	}
	defer a.Release()
	b, err := o.tree.Begin()
	if err != nil {
		return false, err
	}
	defer b.Release()

	for a.Valid() {
		if !bytes.Equal(a.Key(), b.Key()) || !bytes.Equal(a.Value(), b.Value()) {
			return false, nil
		}
		if err := a.Next(); err != nil {
			return false, err
		}
		if err := b.Next(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// compareTo orders two containers lexicographically: entries are
// compared pairwise, keys under the tree comparator then values as raw
// bytes, and a container that runs out first (a proper prefix of the
// other) sorts first.
func (h *handle[K, V]) compareTo(o *handle[K, V]) (int, error) {
	a, err := h.tree.Begin()
	if err != nil {
		return 0, err
	}
	defer a.Release()
	b, err := o.tree.Begin()
	if err != nil {
		return 0, err
	}
	defer b.Release()

	for a.Valid() && b.Valid() {
		if c := h.tree.CompareKeys(a.Key(), b.Key()); c != 0 {
			return c, nil
		}
		if c := bytes.Compare(a.Value(), b.Value()); c != 0 {
			return c, nil
		}
		if err := a.Next(); err != nil {
			return 0, err
		}
		if err := b.Next(); err != nil {
			return 0, err
		}
	}
	switch {
	case a.Valid():
		return 1, nil
	case b.Valid():
		return -1, nil
	default:
		return 0, nil
	}
}

//  typed iterator  --------------------------------------------------//

// Iter is a typed cursor. It owns a pin on its current leaf page;
// Release it when done.
type Iter[K, V any] struct {
	it *storage.Iterator
}

func (i *Iter[K, V]) Valid() bool { return i.it.Valid() }

func (i *Iter[K, V]) Key() K {
	return decode[K](i.it.Key())
}

func (i *Iter[K, V]) Value() V {
	return decode[V](i.it.Value())
}

// SetValue overwrites the value of the current entry in place; the key
// cannot be changed through an iterator.
func (i *Iter[K, V]) SetValue(value V) error {
	return i.it.SetValue(rawBytes(&value))
}

func (i *Iter[K, V]) Next() error { return i.it.Next() }
func (i *Iter[K, V]) Prev() error { return i.it.Prev() }

func (i *Iter[K, V]) Equal(o *Iter[K, V]) bool { return i.it.Equal(o.it) }

func (i *Iter[K, V]) Release() { i.it.Release() }
