package storage_test

import (
	"path/filepath"
	"testing"

	"go.bptree/internal/storage"
)

// Pages released by merges must land on the free list and be reused
// by later growth instead of extending the file.

func TestFreePageReuse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "free.btr")
	opts := testOptions(storage.Unique)
	opts.PageSize = 128

	tr, err := storage.Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}

	const n = 1000
	for i := int32(0); i < n; i++ {
		it, _, err := tr.Insert(i32(i), i32(i))
		if err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
		it.Release()
	}
	for i := int32(0); i < n; i++ {
		if _, err := tr.Erase(i32(i)); err != nil {
			t.Fatalf("Erase %d failed: %v", i, err)
		}
	}
	if !tr.Empty() {
		t.Fatalf("size %d after erasing everything", tr.Size())
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}

	hdr, err := storage.ReadHeader(path)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.FreeHead == storage.NilPage {
		t.Fatal("free list empty after mass erase")
	}

	grown, err := storage.OpenFile(path, storage.ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	sizeBefore := grown.Size()
	grown.Close()

	// Refill: the freed pages must satisfy the new splits.
	tr, err = storage.Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	for i := int32(0); i < n; i++ {
		it, _, err := tr.Insert(i32(i), i32(i))
		if err != nil {
			t.Fatalf("reinsert %d failed: %v", i, err)
		}
		it.Release()
	}
	if err := tr.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Flush(); err != nil {
		t.Fatal(err)
	}

	after, err := storage.OpenFile(path, storage.ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	sizeAfter := after.Size()
	after.Close()

	if sizeAfter > sizeBefore {
		t.Fatalf("file grew from %d to %d despite the free list", sizeBefore, sizeAfter)
	}
}
