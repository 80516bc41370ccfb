package storage

// boundAt turns a leaf position into an iterator, stepping into the
// next leaf when the position is one past the last entry.
func (t *Tree) boundAt(leafID PageID, idx int) (*Iterator, error) {
	page, err := t.pager.Pin(leafID, Read)
	if err != nil {
		return nil, err
	}
	if idx < page.Count() {
		it := &Iterator{t: t, pageID: leafID, idx: idx, pinned: true}
		return it, nil
	}
	next := page.Next()
	t.pager.Unpin(leafID)
	if next == NilPage {
		return t.End(), nil
	}
	return t.newIterator(next, 0)
}

// LowerBound returns an iterator at the first entry whose key is not
// less than key, or end.
func (t *Tree) LowerBound(key []byte) (*Iterator, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}
	leafID, _, err := t.descend(key, false)
	if err != nil {
		return nil, err
	}
	page, err := t.pager.Pin(leafID, Read)
	if err != nil {
		return nil, err
	}
	idx := t.asLeaf(page).lowerBound(key)
	t.pager.Unpin(leafID)
	return t.boundAt(leafID, idx)
}

// UpperBound returns an iterator at the first entry whose key is
// greater than key, or end.
func (t *Tree) UpperBound(key []byte) (*Iterator, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}
	leafID, _, err := t.descend(key, true)
	if err != nil {
		return nil, err
	}
	page, err := t.pager.Pin(leafID, Read)
	if err != nil {
		return nil, err
	}
	idx := t.asLeaf(page).upperBound(key)
	t.pager.Unpin(leafID)
	return t.boundAt(leafID, idx)
}

// Find returns an iterator at the first entry equal to key, or end.
func (t *Tree) Find(key []byte) (*Iterator, error) {
	it, err := t.LowerBound(key)
	if err != nil {
		return nil, err
	}
	if !it.Valid() {
		return it, nil
	}
	if t.compare(it.Key(), key) != 0 {
		it.Release()
		return t.End(), nil
	}
	return it, nil
}

// EqualRange returns the pair (LowerBound, UpperBound); the half-open
// range between them holds every entry equal to key.
func (t *Tree) EqualRange(key []byte) (*Iterator, *Iterator, error) {
	lo, err := t.LowerBound(key)
	if err != nil {
		return nil, nil, err
	}
	hi, err := t.UpperBound(key)
	if err != nil {
		lo.Release()
		return nil, nil, err
	}
	return lo, hi, nil
}

// Contains reports whether an entry equal to key exists.
func (t *Tree) Contains(key []byte) (bool, error) {
	it, err := t.Find(key)
	if err != nil {
		return false, err
	}
	defer it.Release()
	return it.Valid(), nil
}
