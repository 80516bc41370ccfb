package storage

// Insert adds the record. On a unique tree an existing equal key wins:
// the returned iterator points at it and ok is false. On a multi tree
// the new entry lands after every equal one and ok is always true.
func (t *Tree) Insert(key, value []byte) (*Iterator, bool, error) {
	if err := t.mutable(); err != nil {
		return nil, false, err
	}
	if err := t.checkRecord(key, value); err != nil {
		return nil, false, err
	}

	leafID, path, err := t.descend(key, true)
	if err != nil {
		return nil, false, err
	}

	page, err := t.pager.Pin(leafID, Write)
	if err != nil {
		return nil, false, err
	}
	lf := t.asLeaf(page)

	var pos int
	if t.unique {
		pos = lf.lowerBound(key)
		if pos < lf.count() && t.compare(lf.key(pos), key) == 0 {
			t.pager.Unpin(leafID)
			it, err := t.newIterator(leafID, pos)
			return it, false, err
		}
	} else {
		pos = lf.upperBound(key)
	}

	hdr := t.pager.Header()

	if lf.count() < t.leafCap {
		lf.insertAt(pos, key, value)
		hdr.Count++
		t.pager.MarkHeaderDirty()
		t.pager.Unpin(leafID)
		it, err := t.newIterator(leafID, pos)
		return it, true, err
	}

	resLeaf, resIdx, sep, rightID, err := t.splitLeaf(lf, pos, key, value)
	t.pager.Unpin(leafID)
	if err != nil {
		return nil, false, err
	}
	hdr.Count++
	t.pager.MarkHeaderDirty()

	if err := t.propagateSplit(path, leafID, sep, rightID); err != nil {
		return nil, false, err
	}

	it, err := t.newIterator(resLeaf, resIdx)
	return it, true, err
}

// splitLeaf moves the upper half of a full leaf to a fresh page,
// links it into the leaf chain, places the new record on the correct
// side, and returns the separator to push up: the first key of the
// new leaf, copied out because the page may be evicted underneath.
func (t *Tree) splitLeaf(lf leaf, pos int, key, value []byte) (PageID, int, []byte, PageID, error) {
	newPage, err := t.pager.Allocate(0)
	if err != nil {
		return NilPage, 0, nil, NilPage, err
	}
	right := t.asLeaf(newPage)
	rightID := right.id()

	// The side that receives the new record gives up one more entry, so
	// both halves end with at least minLeaf.
	from := t.leafCap - t.minLeaf()
	toRight := pos > from
	if toRight {
		from++
	}
	lf.moveTail(right, from)

	oldNext := lf.page.Next()
	newPage.SetPrev(lf.id())
	newPage.SetNext(oldNext)
	lf.page.SetNext(rightID)

	resLeaf, resIdx := lf.id(), pos
	if !toRight {
		lf.insertAt(pos, key, value)
	} else {
		resLeaf, resIdx = rightID, pos-from
		right.insertAt(pos-from, key, value)
	}

	sep := make([]byte, t.keySize)
	copy(sep, right.key(0))
	t.pager.Unpin(rightID)

	// Back-link the old neighbor only after the new leaf is released,
	// keeping the split to two pinned pages at any moment.
	if oldNext != NilPage {
		np, err := t.pager.Pin(oldNext, Write)
		if err != nil {
			return NilPage, 0, nil, NilPage, err
		}
		np.SetPrev(rightID)
		t.pager.Unpin(oldNext)
	}
	return resLeaf, resIdx, sep, rightID, nil
}

// propagateSplit pushes a separator up the recorded path, splitting
// branches as needed and growing a new root when the old one splits.
func (t *Tree) propagateSplit(path []pathEntry, leftID PageID, sep []byte, rightID PageID) error {
	for d := len(path) - 1; d >= 0; d-- {
		page, err := t.pager.Pin(path[d].id, Write)
		if err != nil {
			return err
		}
		b := t.asBranch(page)
		idx := path[d].childIdx

		if b.count() < t.branchCap {
			b.insertAt(idx, sep, rightID)
			t.pager.Unpin(b.id())
			return nil
		}

		promoted, newRightID, err := t.splitBranch(b, idx, sep, rightID)
		t.pager.Unpin(b.id())
		if err != nil {
			return err
		}
		leftID = b.id()
		sep = promoted
		rightID = newRightID
	}
	return t.growRoot(leftID, sep, rightID)
}

// splitBranch promotes the middle key: it moves the upper keys and
// children to a new branch and returns the middle key, which ends up
// in neither half.
func (t *Tree) splitBranch(b branch, idx int, sep []byte, rightChild PageID) ([]byte, PageID, error) {
	newPage, err := t.pager.Allocate(b.page.Level())
	if err != nil {
		return nil, NilPage, err
	}
	right := t.asBranch(newPage)

	mid := t.branchCap / 2
	promoted := make([]byte, t.keySize)
	if t.branchCap%2 == 0 {
		// Even capacity: the promoted key moves toward the side the new
		// key joins, so both halves keep branchCap/2 keys.
		if idx == mid {
			copy(promoted, sep)
			right.setChild(0, rightChild)
			copy(newPage.Data[right.entryOff(0):], b.page.Data[b.entryOff(mid):b.entryOff(t.branchCap)])
			newPage.SetCount(t.branchCap - mid)
			b.page.SetCount(mid)
			t.pager.Unpin(right.id())
			return promoted, right.id(), nil
		}
		if idx < mid {
			mid--
		}
	}
	copy(promoted, b.key(mid))

	moved := t.branchCap - mid - 1
	right.setChild(0, b.child(mid+1))
	copy(newPage.Data[right.entryOff(0):], b.page.Data[b.entryOff(mid+1):b.entryOff(t.branchCap)])
	newPage.SetCount(moved)
	b.page.SetCount(mid)

	if idx <= mid {
		b.insertAt(idx, sep, rightChild)
	} else {
		right.insertAt(idx-mid-1, sep, rightChild)
	}

	id := right.id()
	t.pager.Unpin(id)
	return promoted, id, nil
}

// growRoot installs a new root branch over the two halves of a root
// split.
func (t *Tree) growRoot(leftID PageID, sep []byte, rightID PageID) error {
	hdr := t.pager.Header()
	page, err := t.pager.Allocate(hdr.RootLevel + 1)
	if err != nil {
		return err
	}
	root := t.asBranch(page)
	root.setChild(0, leftID)
	root.insertAt(0, sep, rightID)

	hdr.RootID = root.id()
	hdr.RootLevel++
	t.pager.MarkHeaderDirty()
	t.pager.Unpin(root.id())
	return nil
}
