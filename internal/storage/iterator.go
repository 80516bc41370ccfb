package storage

import "fmt"

// Iterator is a cursor over leaf entries. A valid iterator holds one
// pin on its leaf page; Release drops it. The end sentinel holds no
// pin and compares equal to every other end iterator of the same tree.
//
// Key and Value return slices into the pinned page buffer: they are
// valid until the iterator moves, is released, or the tree is mutated.
type Iterator struct {
	t      *Tree
	pageID PageID
	idx    int
	pinned bool
}

func (t *Tree) newIterator(id PageID, idx int) (*Iterator, error) {
	if id == NilPage {
		return t.End(), nil
	}
	if _, err := t.pager.Pin(id, Read); err != nil {
		return nil, err
	}
	return &Iterator{t: t, pageID: id, idx: idx, pinned: true}, nil
}

// End returns the sentinel past the last entry.
func (t *Tree) End() *Iterator {
	return &Iterator{t: t, pageID: NilPage}
}

// Begin returns an iterator at the smallest entry, or end for an
// empty tree.
func (t *Tree) Begin() (*Iterator, error) {
	first, err := t.edgeLeaf(false)
	if err != nil {
		return nil, err
	}
	page, err := t.pager.Pin(first, Read)
	if err != nil {
		return nil, err
	}
	if page.Count() == 0 {
		t.pager.Unpin(first)
		return t.End(), nil
	}
	return &Iterator{t: t, pageID: first, idx: 0, pinned: true}, nil
}

// RBegin returns an iterator at the largest entry, or end for an
// empty tree. Backward traversal continues with Prev.
func (t *Tree) RBegin() (*Iterator, error) {
	last, err := t.edgeLeaf(true)
	if err != nil {
		return nil, err
	}
	page, err := t.pager.Pin(last, Read)
	if err != nil {
		return nil, err
	}
	if page.Count() == 0 {
		t.pager.Unpin(last)
		return t.End(), nil
	}
	return &Iterator{t: t, pageID: last, idx: page.Count() - 1, pinned: true}, nil
}

func (it *Iterator) Valid() bool { return it.pageID != NilPage }

func (it *Iterator) Equal(o *Iterator) bool {
	if it.t != o.t || it.pageID != o.pageID {
		return false
	}
	return it.pageID == NilPage || it.idx == o.idx
}

// Release drops the leaf pin. Idempotent; using the iterator after
// Release is a caller bug.
func (it *Iterator) Release() {
	if it.pinned {
		it.t.pager.Unpin(it.pageID)
		it.pinned = false
	}
}

func (it *Iterator) Key() []byte {
	lf := it.t.asLeaf(it.mustPage())
	return lf.key(it.idx)
}

func (it *Iterator) Value() []byte {
	lf := it.t.asLeaf(it.mustPage())
	return lf.value(it.idx)
}

// SetValue is the writable cast: it overwrites the value half of the
// current entry in place and marks the leaf dirty. Keys are immutable
// through iterators.
func (it *Iterator) SetValue(value []byte) error {
	if !it.Valid() || !it.pinned {
		return ErrInvalidIterator
	}
	if err := it.t.mutable(); err != nil {
		return err
	}
	if len(value) != it.t.valueSize {
		return fmt.Errorf("value length %d, want %d: %w", len(value), it.t.valueSize, ErrLogic)
	}
	page, err := it.t.pager.Pin(it.pageID, Write)
	if err != nil {
		return err
	}
	lf := it.t.asLeaf(page)
	copy(lf.value(it.idx), value)
	it.t.pager.Unpin(it.pageID)
	return nil
}

// Next advances to the successor, moving the pin to the next leaf at
// page boundaries. Advancing end is an error.
func (it *Iterator) Next() error {
	if !it.Valid() {
		return fmt.Errorf("increment of end: %w", ErrInvalidIterator)
	}
	page, err := it.t.pager.Pin(it.pageID, Read)
	if err != nil {
		return err
	}
	next := page.Next()
	n := page.Count()
	it.t.pager.Unpin(it.pageID)

	if it.idx+1 < n {
		it.idx++
		return nil
	}

	it.Release()
	if next == NilPage {
		it.pageID = NilPage
		it.idx = 0
		return nil
	}
	if _, err := it.t.pager.Pin(next, Read); err != nil {
		return err
	}
	it.pageID = next
	it.idx = 0
	it.pinned = true
	return nil
}

// Prev moves to the predecessor. From end it lands on the last entry;
// decrementing the first entry (or end of an empty tree) is an error.
func (it *Iterator) Prev() error {
	if !it.Valid() {
		last, err := it.t.edgeLeaf(true)
		if err != nil {
			return err
		}
		page, err := it.t.pager.Pin(last, Read)
		if err != nil {
			return err
		}
		if page.Count() == 0 {
			it.t.pager.Unpin(last)
			return fmt.Errorf("decrement of end on empty tree: %w", ErrInvalidIterator)
		}
		it.pageID = last
		it.idx = page.Count() - 1
		it.pinned = true
		return nil
	}

	if it.idx > 0 {
		it.idx--
		return nil
	}

	page, err := it.t.pager.Pin(it.pageID, Read)
	if err != nil {
		return err
	}
	prev := page.Prev()
	it.t.pager.Unpin(it.pageID)

	if prev == NilPage {
		return fmt.Errorf("decrement of begin: %w", ErrInvalidIterator)
	}

	it.Release()
	p, err := it.t.pager.Pin(prev, Read)
	if err != nil {
		return err
	}
	it.pageID = prev
	it.idx = p.Count() - 1
	it.pinned = true
	return nil
}

func (it *Iterator) mustPage() *Page {
	page, err := it.t.pager.Pin(it.pageID, Read)
	if err != nil {
		panic(fmt.Sprintf("pinned page %d missing from cache: %v", it.pageID, err))
	}
	it.t.pager.Unpin(it.pageID)
	return page
}
