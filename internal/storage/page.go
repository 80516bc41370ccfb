package storage

import "encoding/binary"

// PageID 0 is the file header page; data pages start at 1. A zero id
// elsewhere therefore always means "none" and doubles as the iterator
// end sentinel and the free-list terminator.

type PageID uint64

const NilPage PageID = 0

// Every data page starts with this header. prev/next link the leaf
// chain at level 0; next also chains free pages. The tail pad keeps
// entry offsets 4-byte aligned for every legal page size.
//
//	id:8  level:2  count:2  prev:8  next:8  reserved:8
const nodeHeaderSize = 36

const (
	offPageID = 0
	offLevel  = 8
	offCount  = 10
	offPrev   = 12
	offNext   = 20
)

// freeLevel marks a page sitting on the free list. Free is not a
// legal tree level, which is what makes double-free detectable.
const freeLevel = 0xFFFF

type Page struct {
	ID   PageID
	Data []byte
}

func newPage(id PageID, pageSize int) *Page {
	p := &Page{
		ID:   id,
		Data: make([]byte, pageSize),
	}
	p.SetPageID(id)
	return p
}

func (p *Page) PageID() PageID {
	return PageID(binary.LittleEndian.Uint64(p.Data[offPageID:]))
}

func (p *Page) SetPageID(id PageID) {
	binary.LittleEndian.PutUint64(p.Data[offPageID:], uint64(id))
}

func (p *Page) Level() int {
	return int(binary.LittleEndian.Uint16(p.Data[offLevel:]))
}

func (p *Page) SetLevel(lv int) {
	binary.LittleEndian.PutUint16(p.Data[offLevel:], uint16(lv))
}

func (p *Page) Count() int {
	return int(binary.LittleEndian.Uint16(p.Data[offCount:]))
}

func (p *Page) SetCount(n int) {
	binary.LittleEndian.PutUint16(p.Data[offCount:], uint16(n))
}

func (p *Page) Prev() PageID {
	return PageID(binary.LittleEndian.Uint64(p.Data[offPrev:]))
}

func (p *Page) SetPrev(id PageID) {
	binary.LittleEndian.PutUint64(p.Data[offPrev:], uint64(id))
}

func (p *Page) Next() PageID {
	return PageID(binary.LittleEndian.Uint64(p.Data[offNext:]))
}

func (p *Page) SetNext(id PageID) {
	binary.LittleEndian.PutUint64(p.Data[offNext:], uint64(id))
}

func (p *Page) isLeaf() bool { return p.Level() == 0 }
func (p *Page) isFree() bool { return p.Level() == freeLevel }
