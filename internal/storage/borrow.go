package storage

// Redistribution moves one entry from a sibling with spare capacity.
// The parent separator between the two participants becomes the new
// first key of the right participant.

func (t *Tree) tryBorrowLeafLeft(parent branch, ci int, lf leaf, pos *cursorPos) (bool, error) {
	leftID := parent.child(ci - 1)
	lp, err := t.pager.Pin(leftID, Write)
	if err != nil {
		return false, err
	}
	left := t.asLeaf(lp)

	n := left.count()
	if n <= t.minLeaf() {
		t.pager.Unpin(leftID)
		return false, nil
	}

	lf.insertAt(0, left.key(n-1), left.value(n-1))
	left.removeAt(n - 1)
	parent.setKey(ci-1, lf.key(0))
	t.pager.Unpin(leftID)

	if pos.leafID == lf.id() {
		pos.idx++
	}
	return true, nil
}

func (t *Tree) tryBorrowLeafRight(parent branch, ci int, lf leaf, pos *cursorPos) (bool, error) {
	rightID := parent.child(ci + 1)
	rp, err := t.pager.Pin(rightID, Write)
	if err != nil {
		return false, err
	}
	right := t.asLeaf(rp)

	if right.count() <= t.minLeaf() {
		t.pager.Unpin(rightID)
		return false, nil
	}

	lf.insertAt(lf.count(), right.key(0), right.value(0))
	right.removeAt(0)
	parent.setKey(ci, right.key(0))
	t.pager.Unpin(rightID)

	if pos.leafID == rightID {
		if pos.idx == 0 {
			pos.leafID = lf.id()
			pos.idx = lf.count() - 1
		} else {
			pos.idx--
		}
	}
	return true, nil
}

func (t *Tree) tryBorrowBranchLeft(parent branch, ci int, node branch) (bool, error) {
	leftID := parent.child(ci - 1)
	lp, err := t.pager.Pin(leftID, Write)
	if err != nil {
		return false, err
	}
	left := t.asBranch(lp)

	n := left.count()
	if n <= t.minBranch() {
		t.pager.Unpin(leftID)
		return false, nil
	}

	// Separator comes down as the node's new first key; the left
	// sibling's last key goes up to replace it.
	sepDown := append([]byte(nil), parent.key(ci-1)...)
	upKey := append([]byte(nil), left.key(n-1)...)
	borrowed := left.child(n)

	oldFirst := node.child(0)
	node.insertAt(0, sepDown, oldFirst)
	node.setChild(0, borrowed)
	parent.setKey(ci-1, upKey)
	left.removeAt(n - 1)

	t.pager.Unpin(leftID)
	return true, nil
}

func (t *Tree) tryBorrowBranchRight(parent branch, ci int, node branch) (bool, error) {
	rightID := parent.child(ci + 1)
	rp, err := t.pager.Pin(rightID, Write)
	if err != nil {
		return false, err
	}
	right := t.asBranch(rp)

	if right.count() <= t.minBranch() {
		t.pager.Unpin(rightID)
		return false, nil
	}

	sepDown := append([]byte(nil), parent.key(ci)...)
	upKey := append([]byte(nil), right.key(0)...)
	borrowed := right.child(0)

	node.insertAt(node.count(), sepDown, borrowed)
	right.setChild(0, right.child(1))
	right.removeAt(0)
	parent.setKey(ci, upKey)

	t.pager.Unpin(rightID)
	return true, nil
}
