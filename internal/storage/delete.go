package storage

import "fmt"

// cursorPos names a leaf slot across the structural changes an erase
// makes; NilPage means end.
type cursorPos struct {
	leafID PageID
	idx    int
}

// Erase removes every entry equal to key (one on a unique tree) and
// returns how many were removed.
func (t *Tree) Erase(key []byte) (int, error) {
	if err := t.mutable(); err != nil {
		return 0, err
	}
	if err := t.checkKey(key); err != nil {
		return 0, err
	}

	removed := 0
	for {
		it, err := t.Find(key)
		if err != nil {
			return removed, err
		}
		if !it.Valid() {
			return removed, nil
		}
		target, idx := it.pageID, it.idx
		it.Release()

		if _, err := t.eraseAt(target, idx, key); err != nil {
			return removed, err
		}
		removed++
		if t.unique {
			return removed, nil
		}
	}
}

// EraseIterator removes the entry the iterator points at and returns
// an iterator to its successor. The argument is consumed: its pin is
// released whether or not the erase succeeds.
func (t *Tree) EraseIterator(it *Iterator) (*Iterator, error) {
	if err := t.mutable(); err != nil {
		return nil, err
	}
	if it == nil || it.t != t {
		return nil, fmt.Errorf("iterator from another tree: %w", ErrInvalidIterator)
	}
	if !it.Valid() || !it.pinned {
		return nil, fmt.Errorf("erase of end or released iterator: %w", ErrInvalidIterator)
	}

	key := make([]byte, t.keySize)
	copy(key, it.Key())
	target, idx := it.pageID, it.idx
	it.Release()

	pos, err := t.eraseAt(target, idx, key)
	if err != nil {
		return nil, err
	}
	return t.newIterator(pos.leafID, pos.idx)
}

// eraseAt removes entry idx of the given leaf. key is the entry's key
// and is used to rebuild the descent path; when an equal run spans
// several leaves the path is walked right until it reaches the target.
func (t *Tree) eraseAt(target PageID, idx int, key []byte) (cursorPos, error) {
	leafID, path, err := t.descend(key, false)
	if err != nil {
		return cursorPos{}, err
	}
	for hops := PageID(0); leafID != target; hops++ {
		if hops > t.pager.PageCount() {
			return cursorPos{}, fmt.Errorf("leaf %d unreachable: %w", target, ErrInvalidIterator)
		}
		leafID, path, err = t.nextLeafPath(path)
		if err != nil {
			return cursorPos{}, err
		}
		if leafID == NilPage {
			return cursorPos{}, fmt.Errorf("leaf %d not in tree: %w", target, ErrInvalidIterator)
		}
	}

	page, err := t.pager.Pin(target, Write)
	if err != nil {
		return cursorPos{}, err
	}
	lf := t.asLeaf(page)

	if idx >= lf.count() || t.compare(lf.key(idx), key) != 0 {
		t.pager.Unpin(target)
		return cursorPos{}, fmt.Errorf("stale iterator position: %w", ErrInvalidIterator)
	}

	lf.removeAt(idx)
	hdr := t.pager.Header()
	hdr.Count--
	t.pager.MarkHeaderDirty()

	pos := cursorPos{leafID: target, idx: idx}
	if idx >= lf.count() {
		pos = cursorPos{leafID: lf.page.Next(), idx: 0}
	}

	if target != t.root() && lf.count() < t.minLeaf() {
		merged, err := t.rebalanceLeaf(path, lf, &pos)
		if err != nil {
			t.pager.Unpin(target)
			return cursorPos{}, err
		}
		t.pager.Unpin(target)
		if merged {
			if err := t.propagateUnderflow(path); err != nil {
				return cursorPos{}, err
			}
		}
		return pos, nil
	}

	t.pager.Unpin(target)
	return pos, nil
}

// propagateUnderflow walks the recorded path upward after a leaf
// merge, rebalancing each underfull branch, shrinking the root when it
// runs out of separators.
func (t *Tree) propagateUnderflow(path []pathEntry) error {
	for d := len(path) - 1; d >= 0; d-- {
		nodeID := path[d].id
		np, err := t.pager.Pin(nodeID, Write)
		if err != nil {
			return err
		}
		node := t.asBranch(np)

		if d == 0 {
			// Root branch with no separators has a single child left.
			if node.count() == 0 {
				hdr := t.pager.Header()
				hdr.RootID = node.child(0)
				hdr.RootLevel--
				t.pager.MarkHeaderDirty()
				t.pager.Unpin(nodeID)
				return t.pager.Free(nodeID)
			}
			t.pager.Unpin(nodeID)
			return nil
		}

		if node.count() >= t.minBranch() {
			t.pager.Unpin(nodeID)
			return nil
		}

		merged, err := t.rebalanceBranch(path[d-1].id, node)
		t.pager.Unpin(nodeID)
		if err != nil {
			return err
		}
		if !merged {
			return nil
		}
	}
	return nil
}
