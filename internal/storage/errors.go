package storage

import "errors"

var (
	// file
	ErrIO        = errors.New("i/o failure")
	ErrReadOnly  = errors.New("file opened read-only")
	ErrShortRead = errors.New("read past end of file")
	// header
	ErrSchemaMismatch    = errors.New("on-disk sizes do not match open options")
	ErrSignatureMismatch = errors.New("file signature does not match")
	ErrFormat            = errors.New("file is corrupt")
	// pager
	ErrCacheExhausted = errors.New("all cached pages are pinned")
	ErrCacheTooSmall  = errors.New("cache capacity below minimum for tree height")
	// tree
	ErrInvalidIterator = errors.New("invalid iterator")
	ErrLogic           = errors.New("logic error")
)
