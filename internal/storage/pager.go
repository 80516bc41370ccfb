package storage

import (
	"container/list"
	"fmt"

	"go.bptree/internal/logger"
)

const MinPageSize = 128

// Intent declares what a caller will do with a pinned page. Write
// intent marks the page dirty; it stays dirty after Unpin until it is
// written back.
type Intent int

const (
	Read Intent = iota
	Write
)

type frame struct {
	page  *Page
	pins  int
	dirty bool
	elem  *list.Element
}

// Pager owns every page buffer. Callers borrow buffers through
// Pin/Unpin; a pinned page is never evicted, an unpinned clean page is
// the preferred victim, and an unpinned dirty page is written back
// before eviction.
type Pager struct {
	file     *File
	pageSize int
	capacity int
	numPages PageID

	frames map[PageID]*frame
	lru    *list.List // front = most recently used

	hdr      Header
	hdrDirty bool
	hdrBuf   []byte

	log    *logger.Logger
	closed bool
}

func newPager(file *File, hdr Header, capacity int, log *logger.Logger) (*Pager, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("cache capacity %d: %w", capacity, ErrLogic)
	}
	size := file.Size()
	if size%int64(hdr.PageSize) != 0 {
		return nil, fmt.Errorf("size %d not a page multiple: %w", size, ErrFormat)
	}

	p := &Pager{
		file:     file,
		pageSize: hdr.PageSize,
		capacity: capacity,
		numPages: PageID(size / int64(hdr.PageSize)),
		frames:   make(map[PageID]*frame),
		lru:      list.New(),
		hdr:      hdr,
		hdrBuf:   make([]byte, hdr.PageSize),
	}
	if p.numPages == 0 {
		p.numPages = 1 // header page, materialized on first flush
		p.hdrDirty = true
	}
	p.log = log
	if p.log == nil {
		p.log = logger.Discard()
	}
	return p, nil
}

func (p *Pager) Header() *Header   { return &p.hdr }
func (p *Pager) MarkHeaderDirty()  { p.hdrDirty = true }
func (p *Pager) PageCount() PageID { return p.numPages }
func (p *Pager) Capacity() int     { return p.capacity }

// Pin brings the page into the cache if absent and bumps its pin
// count. Every successful Pin must be paired with exactly one Unpin.
func (p *Pager) Pin(id PageID, intent Intent) (*Page, error) {
	if p.closed {
		return nil, fmt.Errorf("pin after close: %w", ErrLogic)
	}
	if id == NilPage || id >= p.numPages {
		return nil, fmt.Errorf("pin page %d of %d: %w", id, p.numPages, ErrLogic)
	}

	if f, ok := p.frames[id]; ok {
		f.pins++
		f.dirty = f.dirty || intent == Write
		p.lru.MoveToFront(f.elem)
		return f.page, nil
	}

	page := newPage(id, p.pageSize)
	if err := p.file.ReadAt(page.Data, int64(id)*int64(p.pageSize)); err != nil {
		return nil, err
	}
	if page.PageID() != id {
		return nil, fmt.Errorf("page %d header says %d: %w", id, page.PageID(), ErrFormat)
	}

	f, err := p.admit(page)
	if err != nil {
		return nil, err
	}
	f.pins = 1
	f.dirty = intent == Write
	return page, nil
}

func (p *Pager) Unpin(id PageID) {
	f, ok := p.frames[id]
	if !ok || f.pins == 0 {
		p.log.Errorf("unpin of page %d which is not pinned", id)
		return
	}
	f.pins--
}

// Allocate returns a fresh zero-initialized dirty page, pinned with
// write intent. The free list is reused before the file is extended.
func (p *Pager) Allocate(level int) (*Page, error) {
	if p.closed {
		return nil, fmt.Errorf("allocate after close: %w", ErrLogic)
	}

	if p.hdr.FreeHead != NilPage {
		id := p.hdr.FreeHead
		page, err := p.Pin(id, Write)
		if err != nil {
			return nil, err
		}
		if !page.isFree() {
			p.Unpin(id)
			return nil, fmt.Errorf("free head %d is not a free page: %w", id, ErrFormat)
		}
		p.hdr.FreeHead = page.Next()
		p.hdrDirty = true

		clear(page.Data)
		page.SetPageID(id)
		page.SetLevel(level)
		return page, nil
	}

	id := p.numPages
	page := newPage(id, p.pageSize)
	page.SetLevel(level)

	f, err := p.admit(page)
	if err != nil {
		return nil, err
	}
	f.pins = 1
	f.dirty = true
	p.numPages++
	return page, nil
}

// Free links the page into the free list. Freeing a page that is
// already free is a logic error. The pin count is not checked: a page
// may be freed while a caller still holds a pin on it.
func (p *Pager) Free(id PageID) error {
	page, err := p.Pin(id, Write)
	if err != nil {
		return err
	}
	if page.isFree() {
		p.Unpin(id)
		return fmt.Errorf("double free of page %d: %w", id, ErrLogic)
	}

	clear(page.Data)
	page.SetPageID(id)
	page.SetLevel(freeLevel)
	page.SetNext(p.hdr.FreeHead)
	p.hdr.FreeHead = id
	p.hdrDirty = true
	p.Unpin(id)
	return nil
}

// admit places a page in the cache, evicting if at capacity.
func (p *Pager) admit(page *Page) (*frame, error) {
	if len(p.frames) >= p.capacity {
		if err := p.evict(); err != nil {
			return nil, err
		}
	}
	f := &frame{page: page}
	f.elem = p.lru.PushFront(page.ID)
	p.frames[page.ID] = f
	return f, nil
}

// evict drops the least-recently-used unpinned clean page, falling
// back to writing out the least-recently-used unpinned dirty page.
func (p *Pager) evict() error {
	for e := p.lru.Back(); e != nil; e = e.Prev() {
		f := p.frames[e.Value.(PageID)]
		if f.pins == 0 && !f.dirty {
			p.drop(f)
			return nil
		}
	}
	for e := p.lru.Back(); e != nil; e = e.Prev() {
		f := p.frames[e.Value.(PageID)]
		if f.pins == 0 {
			if err := p.writeFrame(f); err != nil {
				return err
			}
			p.drop(f)
			return nil
		}
	}
	return fmt.Errorf("cache of %d pages: %w", p.capacity, ErrCacheExhausted)
}

func (p *Pager) drop(f *frame) {
	p.lru.Remove(f.elem)
	delete(p.frames, f.page.ID)
}

func (p *Pager) writeFrame(f *frame) error {
	off := int64(f.page.ID) * int64(p.pageSize)
	if err := p.file.WriteAt(f.page.Data, off); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// Flush writes dirty data pages first, then the free-list chain, then
// the header, so an interrupted flush never leaves the header pointing
// at stale structure.
func (p *Pager) Flush() error {
	for _, f := range p.frames {
		if f.dirty && !f.page.isFree() {
			if err := p.writeFrame(f); err != nil {
				return err
			}
		}
	}
	for _, f := range p.frames {
		if f.dirty {
			if err := p.writeFrame(f); err != nil {
				return err
			}
		}
	}

	if p.hdrDirty {
		p.hdr.encode(p.hdrBuf)
		if err := p.file.WriteAt(p.hdrBuf, 0); err != nil {
			return err
		}
		p.hdrDirty = false
	}
	return nil
}

// Preload warms the cache with a sequential sweep, stopping at cache
// capacity.
func (p *Pager) Preload() error {
	n := PageID(p.capacity)
	if p.numPages-1 < n {
		n = p.numPages - 1
	}
	for id := PageID(1); id <= n; id++ {
		page, err := p.Pin(id, Read)
		if err != nil {
			return err
		}
		p.Unpin(page.ID)
	}
	return nil
}

// Close flushes and releases everything. Outstanding pins are a caller
// bug and are logged, not honored.
func (p *Pager) Close() error {
	if p.closed {
		return nil
	}
	flushErr := p.Flush()

	for id, f := range p.frames {
		if f.pins != 0 {
			p.log.Errorf("close with page %d still pinned %d times", id, f.pins)
		}
	}
	p.frames = nil
	p.lru = nil
	p.closed = true

	syncErr := p.file.Sync()
	closeErr := p.file.Close()

	if flushErr != nil {
		return flushErr
	}
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}
