package storage

// Merges fold two siblings into one page, delete the separator from
// the parent, unlink the orphan from the leaf chain, and return its
// page to the free list. At leaf level the separator simply vanishes;
// at branch level it moves down between the two key sequences.

func (t *Tree) mergeLeafLeft(parent branch, ci int, lf leaf, pos *cursorPos) error {
	leftID := parent.child(ci - 1)
	lp, err := t.pager.Pin(leftID, Write)
	if err != nil {
		return err
	}
	left := t.asLeaf(lp)

	leftN := left.count()
	next := lf.page.Next()
	lf.moveTail(left, 0)
	left.page.SetNext(next)
	parent.removeAt(ci - 1)
	t.pager.Unpin(leftID)

	if pos.leafID == lf.id() {
		pos.leafID = leftID
		pos.idx += leftN
	}

	if err := t.pager.Free(lf.id()); err != nil {
		return err
	}
	if next != NilPage {
		np, err := t.pager.Pin(next, Write)
		if err != nil {
			return err
		}
		np.SetPrev(leftID)
		t.pager.Unpin(next)
	}
	return nil
}

func (t *Tree) mergeLeafRight(parent branch, ci int, lf leaf, pos *cursorPos) error {
	rightID := parent.child(ci + 1)
	rp, err := t.pager.Pin(rightID, Write)
	if err != nil {
		return err
	}
	right := t.asLeaf(rp)

	lfN := lf.count()
	next := right.page.Next()
	right.moveTail(lf, 0)
	lf.page.SetNext(next)
	parent.removeAt(ci)
	t.pager.Unpin(rightID)

	if pos.leafID == rightID {
		pos.leafID = lf.id()
		pos.idx += lfN
	}

	if err := t.pager.Free(rightID); err != nil {
		return err
	}
	if next != NilPage {
		np, err := t.pager.Pin(next, Write)
		if err != nil {
			return err
		}
		np.SetPrev(lf.id())
		t.pager.Unpin(next)
	}
	return nil
}

func (t *Tree) mergeBranchLeft(parent branch, ci int, node branch) error {
	leftID := parent.child(ci - 1)
	lp, err := t.pager.Pin(leftID, Write)
	if err != nil {
		return err
	}
	left := t.asBranch(lp)

	sepDown := append([]byte(nil), parent.key(ci-1)...)
	n := left.count()
	left.insertAt(n, sepDown, node.child(0))
	copy(left.page.Data[left.entryOff(n+1):], node.page.Data[node.entryOff(0):node.entryOff(node.count())])
	left.page.SetCount(n + 1 + node.count())

	parent.removeAt(ci - 1)
	t.pager.Unpin(leftID)

	return t.pager.Free(node.id())
}

func (t *Tree) mergeBranchRight(parent branch, ci int, node branch) error {
	rightID := parent.child(ci + 1)
	rp, err := t.pager.Pin(rightID, Write)
	if err != nil {
		return err
	}
	right := t.asBranch(rp)

	sepDown := append([]byte(nil), parent.key(ci)...)
	n := node.count()
	node.insertAt(n, sepDown, right.child(0))
	copy(node.page.Data[node.entryOff(n+1):], right.page.Data[right.entryOff(0):right.entryOff(right.count())])
	node.page.SetCount(n + 1 + right.count())

	parent.removeAt(ci)
	t.pager.Unpin(rightID)

	return t.pager.Free(rightID)
}
