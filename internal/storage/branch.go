package storage

import "encoding/binary"

// branch wraps a page of level >= 1: a leading child id followed by
// packed key‖child entries. Child 0 routes keys below key 0; the child
// paired with key i routes keys in [key i, key i+1).

type branch struct {
	page *Page
	t    *Tree
}

func (t *Tree) asBranch(p *Page) branch { return branch{page: p, t: t} }

func (b branch) id() PageID     { return b.page.ID }
func (b branch) count() int     { return b.page.Count() }
func (b branch) entrySize() int { return b.t.keySize + 8 }

func (b branch) entryOff(i int) int {
	return nodeHeaderSize + 8 + i*b.entrySize()
}

func (b branch) key(i int) []byte {
	off := b.entryOff(i)
	return b.page.Data[off : off+b.t.keySize]
}

func (b branch) child(i int) PageID {
	if i == 0 {
		return PageID(binary.LittleEndian.Uint64(b.page.Data[nodeHeaderSize:]))
	}
	off := b.entryOff(i-1) + b.t.keySize
	return PageID(binary.LittleEndian.Uint64(b.page.Data[off:]))
}

func (b branch) setChild(i int, id PageID) {
	if i == 0 {
		binary.LittleEndian.PutUint64(b.page.Data[nodeHeaderSize:], uint64(id))
		return
	}
	off := b.entryOff(i-1) + b.t.keySize
	binary.LittleEndian.PutUint64(b.page.Data[off:], uint64(id))
}

// insertAt makes key the i-th separator with right as the child on its
// right. The caller checks capacity.
func (b branch) insertAt(i int, key []byte, right PageID) {
	n := b.count()
	es := b.entrySize()
	off := b.entryOff(i)
	copy(b.page.Data[off+es:b.entryOff(n)+es], b.page.Data[off:b.entryOff(n)])
	copy(b.page.Data[off:], key)
	binary.LittleEndian.PutUint64(b.page.Data[off+b.t.keySize:], uint64(right))
	b.page.SetCount(n + 1)
}

// removeAt drops separator i together with the child on its right.
func (b branch) removeAt(i int) {
	n := b.count()
	off := b.entryOff(i)
	copy(b.page.Data[off:], b.page.Data[off+b.entrySize():b.entryOff(n)])
	b.page.SetCount(n - 1)
}

func (b branch) setKey(i int, key []byte) {
	copy(b.page.Data[b.entryOff(i):], key)
}

// lowerBound returns the first separator index whose key is not less
// than key; descending to the child at that index reaches the leftmost
// entries that may compare equal.
func (b branch) lowerBound(key []byte) int {
	lo, hi := 0, b.count()
	for lo < hi {
		mid := (lo + hi) / 2
		if b.t.compare(b.key(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first separator index whose key is greater
// than key; descending there reaches the position after any equal run.
func (b branch) upperBound(key []byte) int {
	lo, hi := 0, b.count()
	for lo < hi {
		mid := (lo + hi) / 2
		if b.t.compare(b.key(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
