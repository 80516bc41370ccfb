package storage

// leaf wraps a level-0 page. Entries are packed key‖value records of
// fixed width; all movement is raw byte copy, records are never
// decoded here.

type leaf struct {
	page *Page
	t    *Tree
}

func (t *Tree) asLeaf(p *Page) leaf { return leaf{page: p, t: t} }

func (l leaf) id() PageID     { return l.page.ID }
func (l leaf) count() int     { return l.page.Count() }
func (l leaf) entrySize() int { return l.t.keySize + l.t.valueSize }

func (l leaf) entryOff(i int) int {
	return nodeHeaderSize + i*l.entrySize()
}

func (l leaf) key(i int) []byte {
	off := l.entryOff(i)
	return l.page.Data[off : off+l.t.keySize]
}

func (l leaf) value(i int) []byte {
	off := l.entryOff(i) + l.t.keySize
	return l.page.Data[off : off+l.t.valueSize]
}

func (l leaf) entry(i int) []byte {
	off := l.entryOff(i)
	return l.page.Data[off : off+l.entrySize()]
}

// insertAt shifts the tail right by one record and writes the new
// entry. The caller checks capacity.
func (l leaf) insertAt(i int, key, value []byte) {
	n := l.count()
	es := l.entrySize()
	off := l.entryOff(i)
	copy(l.page.Data[off+es:l.entryOff(n)+es], l.page.Data[off:l.entryOff(n)])
	copy(l.page.Data[off:], key)
	copy(l.page.Data[off+l.t.keySize:], value)
	l.page.SetCount(n + 1)
}

// removeAt shifts the tail left over the removed record.
func (l leaf) removeAt(i int) {
	n := l.count()
	off := l.entryOff(i)
	copy(l.page.Data[off:], l.page.Data[off+l.entrySize():l.entryOff(n)])
	l.page.SetCount(n - 1)
}

// moveTail moves entries [from, count) onto the end of dst, clearing
// them here. Used by splits and merges.
func (l leaf) moveTail(dst leaf, from int) {
	n := l.count()
	m := dst.count()
	copy(dst.page.Data[dst.entryOff(m):], l.page.Data[l.entryOff(from):l.entryOff(n)])
	dst.page.SetCount(m + n - from)
	l.page.SetCount(from)
}

// lowerBound returns the first index whose key is not less than key.
func (l leaf) lowerBound(key []byte) int {
	lo, hi := 0, l.count()
	for lo < hi {
		mid := (lo + hi) / 2
		if l.t.compare(l.key(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first index whose key is greater than key.
func (l leaf) upperBound(key []byte) int {
	lo, hi := 0, l.count()
	for lo < hi {
		mid := (lo + hi) / 2
		if l.t.compare(l.key(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
