package storage

import "fmt"

// RootLevel is 0 for a leaf-only tree and grows by one per root split.
func (t *Tree) RootLevel() int { return t.rootLevel() }

// CheckInvariants walks the whole structure and reports the first
// violation: node fill bounds, in-node key order, level consistency,
// leaf-chain linkage and order, the element count, and free-list
// sanity. Meant for tests and the stress and bulkload drivers, not the
// hot path.
func (t *Tree) CheckInvariants() error {
	if err := t.checkNode(t.root(), t.rootLevel(), true); err != nil {
		return err
	}
	if err := t.checkLeafChain(); err != nil {
		return err
	}
	return t.checkFreeList()
}

func (t *Tree) checkNode(id PageID, level int, isRoot bool) error {
	page, err := t.pager.Pin(id, Read)
	if err != nil {
		return err
	}

	if page.Level() != level {
		t.pager.Unpin(id)
		return fmt.Errorf("page %d level %d, expected %d: %w", id, page.Level(), level, ErrFormat)
	}

	n := page.Count()
	if level == 0 {
		lf := t.asLeaf(page)
		if n > t.leafCap || (!isRoot && n < t.minLeaf()) {
			t.pager.Unpin(id)
			return fmt.Errorf("leaf %d holds %d of [%d,%d]: %w", id, n, t.minLeaf(), t.leafCap, ErrFormat)
		}
		for i := 1; i < n; i++ {
			c := t.compare(lf.key(i-1), lf.key(i))
			if c > 0 || (t.unique && c == 0) {
				t.pager.Unpin(id)
				return fmt.Errorf("leaf %d keys out of order at %d: %w", id, i, ErrFormat)
			}
		}
		t.pager.Unpin(id)
		return nil
	}

	b := t.asBranch(page)
	if n > t.branchCap || (!isRoot && n < t.minBranch()) || (isRoot && n < 1) {
		t.pager.Unpin(id)
		return fmt.Errorf("branch %d holds %d of [%d,%d]: %w", id, n, t.minBranch(), t.branchCap, ErrFormat)
	}
	for i := 1; i < n; i++ {
		c := t.compare(b.key(i-1), b.key(i))
		if c > 0 || (t.unique && c == 0) {
			t.pager.Unpin(id)
			return fmt.Errorf("branch %d keys out of order at %d: %w", id, i, ErrFormat)
		}
	}

	children := make([]PageID, 0, n+1)
	for i := 0; i <= n; i++ {
		children = append(children, b.child(i))
	}
	t.pager.Unpin(id)

	for _, c := range children {
		if c == NilPage {
			return fmt.Errorf("branch %d has nil child: %w", id, ErrFormat)
		}
		if err := t.checkNode(c, level-1, false); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) checkLeafChain() error {
	first, err := t.edgeLeaf(false)
	if err != nil {
		return err
	}

	var total uint64
	var prevID PageID
	prevKey := make([]byte, 0, t.keySize)

	for cur := first; cur != NilPage; {
		page, err := t.pager.Pin(cur, Read)
		if err != nil {
			return err
		}
		lf := t.asLeaf(page)

		if page.Prev() != prevID {
			t.pager.Unpin(cur)
			return fmt.Errorf("leaf %d prev link %d, expected %d: %w", cur, page.Prev(), prevID, ErrFormat)
		}
		n := lf.count()
		total += uint64(n)

		if n > 0 {
			if len(prevKey) > 0 {
				c := t.compare(prevKey, lf.key(0))
				if c > 0 || (t.unique && c == 0) {
					t.pager.Unpin(cur)
					return fmt.Errorf("leaf %d breaks chain order: %w", cur, ErrFormat)
				}
			}
			prevKey = append(prevKey[:0], lf.key(n-1)...)
		}

		next := page.Next()
		t.pager.Unpin(cur)
		prevID = cur
		cur = next
	}

	if total != t.Size() {
		return fmt.Errorf("header count %d, leaves hold %d: %w", t.Size(), total, ErrFormat)
	}
	return nil
}

func (t *Tree) checkFreeList() error {
	seen := PageID(0)
	for cur := t.pager.Header().FreeHead; cur != NilPage; {
		if seen++; seen > t.pager.PageCount() {
			return fmt.Errorf("free list cycle: %w", ErrFormat)
		}
		page, err := t.pager.Pin(cur, Read)
		if err != nil {
			return err
		}
		if !page.isFree() {
			t.pager.Unpin(cur)
			return fmt.Errorf("page %d on free list is live: %w", cur, ErrFormat)
		}
		next := page.Next()
		t.pager.Unpin(cur)
		cur = next
	}
	return nil
}
