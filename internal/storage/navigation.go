package storage

import "fmt"

// pathEntry records one branch visited on the way down and which of
// its children the descent took. Paths are explicit so that split and
// underflow propagation never rely on parent pointers.
type pathEntry struct {
	id       PageID
	childIdx int
}

// descend walks from the root to the leaf that key routes to. With
// upper=false routing takes the lower-bound child and reaches the
// leftmost entries that may equal key; with upper=true it takes the
// upper-bound child and lands past any equal run. Exactly one page is
// pinned per level and the parent is released once the child id is
// known.
func (t *Tree) descend(key []byte, upper bool) (PageID, []pathEntry, error) {
	cur := t.root()
	path := make([]pathEntry, 0, t.rootLevel())

	for {
		page, err := t.pager.Pin(cur, Read)
		if err != nil {
			return NilPage, nil, err
		}
		if page.isLeaf() {
			t.pager.Unpin(cur)
			return cur, path, nil
		}

		b := t.asBranch(page)
		var idx int
		if upper {
			idx = b.upperBound(key)
		} else {
			idx = b.lowerBound(key)
		}
		next := b.child(idx)
		t.pager.Unpin(cur)

		if next == NilPage {
			return NilPage, nil, fmt.Errorf("branch %d child %d is nil: %w", cur, idx, ErrFormat)
		}
		path = append(path, pathEntry{id: cur, childIdx: idx})
		cur = next
	}
}

// edgeLeaf descends along the first (rightmost=false) or last child at
// every level, yielding the first or last leaf of the tree.
func (t *Tree) edgeLeaf(rightmost bool) (PageID, error) {
	cur := t.root()
	for {
		page, err := t.pager.Pin(cur, Read)
		if err != nil {
			return NilPage, err
		}
		if page.isLeaf() {
			t.pager.Unpin(cur)
			return cur, nil
		}
		b := t.asBranch(page)
		idx := 0
		if rightmost {
			idx = b.count()
		}
		next := b.child(idx)
		t.pager.Unpin(cur)
		cur = next
	}
}

// nextLeafPath advances a descent path to the leaf immediately to the
// right. It returns NilPage when the path already ends at the last
// leaf. Used when an equal run spans several leaves and key routing
// alone cannot name the target.
func (t *Tree) nextLeafPath(path []pathEntry) (PageID, []pathEntry, error) {
	for d := len(path) - 1; d >= 0; d-- {
		page, err := t.pager.Pin(path[d].id, Read)
		if err != nil {
			return NilPage, nil, err
		}
		b := t.asBranch(page)
		if path[d].childIdx >= b.count() {
			t.pager.Unpin(path[d].id)
			continue
		}

		path[d].childIdx++
		cur := b.child(path[d].childIdx)
		t.pager.Unpin(path[d].id)
		path = path[:d+1]

		for {
			page, err := t.pager.Pin(cur, Read)
			if err != nil {
				return NilPage, nil, err
			}
			if page.isLeaf() {
				t.pager.Unpin(cur)
				return cur, path, nil
			}
			cb := t.asBranch(page)
			next := cb.child(0)
			t.pager.Unpin(cur)
			path = append(path, pathEntry{id: cur, childIdx: 0})
			cur = next
		}
	}
	return NilPage, nil, nil
}

// findChildIndex locates child in parent by scanning. Recorded indices
// go stale across merges, so underflow handling always re-finds the
// child before touching separators.
func findChildIndex(parent branch, child PageID) int {
	n := parent.count()
	for i := 0; i <= n; i++ {
		if parent.child(i) == child {
			return i
		}
	}
	return -1
}
