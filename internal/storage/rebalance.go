package storage

import "fmt"

// rebalanceLeaf restores the fill bound of an underfull leaf: borrow
// from the left sibling when it has an entry to spare, else from the
// right one, and merge when neither can lend. The siblings' counts are
// not compared, so the lender is not necessarily the richer sibling.
// Returns true when a merge removed a separator from the parent.
// pos is kept pointing at the entry it named before the shuffle.
func (t *Tree) rebalanceLeaf(path []pathEntry, lf leaf, pos *cursorPos) (bool, error) {
	parentID := path[len(path)-1].id
	pp, err := t.pager.Pin(parentID, Write)
	if err != nil {
		return false, err
	}
	defer t.pager.Unpin(parentID)
	parent := t.asBranch(pp)

	ci := findChildIndex(parent, lf.id())
	if ci < 0 {
		return false, fmt.Errorf("leaf %d missing from parent %d: %w", lf.id(), parentID, ErrFormat)
	}

	if ci > 0 {
		ok, err := t.tryBorrowLeafLeft(parent, ci, lf, pos)
		if err != nil || ok {
			return false, err
		}
	}
	if ci < parent.count() {
		ok, err := t.tryBorrowLeafRight(parent, ci, lf, pos)
		if err != nil || ok {
			return false, err
		}
	}

	if ci > 0 {
		return true, t.mergeLeafLeft(parent, ci, lf, pos)
	}
	return true, t.mergeLeafRight(parent, ci, lf, pos)
}

// rebalanceBranch is the branch-level counterpart. The separator
// between merge participants moves down into the merged node.
func (t *Tree) rebalanceBranch(parentID PageID, node branch) (bool, error) {
	pp, err := t.pager.Pin(parentID, Write)
	if err != nil {
		return false, err
	}
	defer t.pager.Unpin(parentID)
	parent := t.asBranch(pp)

	ci := findChildIndex(parent, node.id())
	if ci < 0 {
		return false, fmt.Errorf("branch %d missing from parent %d: %w", node.id(), parentID, ErrFormat)
	}

	if ci > 0 {
		ok, err := t.tryBorrowBranchLeft(parent, ci, node)
		if err != nil || ok {
			return false, err
		}
	}
	if ci < parent.count() {
		ok, err := t.tryBorrowBranchRight(parent, ci, node)
		if err != nil || ok {
			return false, err
		}
	}

	if ci > 0 {
		return true, t.mergeBranchLeft(parent, ci, node)
	}
	return true, t.mergeBranchRight(parent, ci, node)
}
