package storage_test

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"go.bptree/internal/storage"
)

func i32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func asI32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

func cmpI32(a, b []byte) int {
	av, bv := asI32(a), asI32(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func testOptions(policy storage.Flags) storage.Options {
	return storage.Options{
		PageSize:   256,
		CachePages: 32,
		KeySize:    4,
		ValueSize:  4,
		Flags:      storage.ReadWrite | policy,
		Signature:  0xB00F,
		Compare:    cmpI32,
	}
}

func openUnique(t *testing.T, path string) *storage.Tree {
	t.Helper()
	tr, err := storage.Open(path, testOptions(storage.Unique))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return tr
}

func openMulti(t *testing.T, path string) *storage.Tree {
	t.Helper()
	tr, err := storage.Open(path, testOptions(storage.Multi))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return tr
}

// collect drains the tree front to back as (key, value) pairs.
func collect(t *testing.T, tr *storage.Tree) [][2]int32 {
	t.Helper()
	var out [][2]int32
	it, err := tr.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer it.Release()
	for it.Valid() {
		out = append(out, [2]int32{asI32(it.Key()), asI32(it.Value())})
		if err := it.Next(); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
	return out
}

func TestEmptyTree(t *testing.T) {
	tr := openUnique(t, filepath.Join(t.TempDir(), "empty.btr"))
	defer tr.Close()

	if tr.Size() != 0 || !tr.Empty() {
		t.Fatalf("fresh tree reports size %d", tr.Size())
	}

	begin, err := tr.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer begin.Release()
	if !begin.Equal(tr.End()) {
		t.Fatal("begin != end on empty tree")
	}

	it, err := tr.Find(i32(42))
	if err != nil {
		t.Fatal(err)
	}
	defer it.Release()
	if it.Valid() {
		t.Fatal("Find(42) on empty tree returned an entry")
	}
}

func TestSingleInsertAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.btr")

	tr := openUnique(t, path)
	it, ok, err := tr.Insert(i32(7), i32(70))
	if err != nil || !ok {
		t.Fatalf("Insert failed: ok=%v err=%v", ok, err)
	}
	it.Release()

	if tr.Size() != 1 {
		t.Fatalf("size %d after one insert", tr.Size())
	}

	found, err := tr.Find(i32(7))
	if err != nil {
		t.Fatal(err)
	}
	if !found.Valid() || asI32(found.Value()) != 70 {
		t.Fatalf("Find(7) returned %v", found.Valid())
	}
	found.Release()

	if got := collect(t, tr); len(got) != 1 || got[0] != [2]int32{7, 70} {
		t.Fatalf("traversal got %v", got)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr = openUnique(t, path)
	defer tr.Close()
	if got := collect(t, tr); len(got) != 1 || got[0] != [2]int32{7, 70} {
		t.Fatalf("traversal after reopen got %v", got)
	}
}

func TestSplitForcing(t *testing.T) {
	opts := testOptions(storage.Unique)
	opts.PageSize = 128

	tr, err := storage.Open(filepath.Join(t.TempDir(), "split.btr"), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	const n = 100
	for i := int32(1); i <= n; i++ {
		it, ok, err := tr.Insert(i32(i), i32(i*10))
		if err != nil || !ok {
			t.Fatalf("Insert %d failed: ok=%v err=%v", i, ok, err)
		}
		it.Release()
	}

	if tr.Size() != n {
		t.Fatalf("size %d, want %d", tr.Size(), n)
	}
	if tr.RootLevel() < 1 {
		t.Fatalf("root level %d, expected at least one split", tr.RootLevel())
	}

	got := collect(t, tr)
	for i, kv := range got {
		want := int32(i + 1)
		if kv[0] != want || kv[1] != want*10 {
			t.Fatalf("entry %d is (%d,%d)", i, kv[0], kv[1])
		}
	}

	if err := tr.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestAscendingInsertDescendingErase(t *testing.T) {
	tr := openUnique(t, filepath.Join(t.TempDir(), "ordered.btr"))
	defer tr.Close()

	const n = 2000
	for i := int32(0); i < n; i++ {
		it, ok, err := tr.Insert(i32(i), i32(i))
		if err != nil || !ok {
			t.Fatalf("Insert %d failed: ok=%v err=%v", i, ok, err)
		}
		it.Release()
	}

	for i := int32(n - 1); i >= 0; i-- {
		removed, err := tr.Erase(i32(i))
		if err != nil {
			t.Fatalf("Erase %d failed: %v", i, err)
		}
		if removed != 1 {
			t.Fatalf("Erase %d removed %d", i, removed)
		}

		// Previously erased keys must stay gone.
		if i%250 == 0 {
			ok, err := tr.Contains(i32(i))
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Fatalf("key %d still present after erase", i)
			}
		}
	}

	if !tr.Empty() {
		t.Fatalf("tree not empty, size %d", tr.Size())
	}
	if err := tr.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestUniqueRejectsDuplicate(t *testing.T) {
	tr := openUnique(t, filepath.Join(t.TempDir(), "dup.btr"))
	defer tr.Close()

	it, ok, err := tr.Insert(i32(1), i32(10))
	if err != nil || !ok {
		t.Fatalf("first Insert failed: ok=%v err=%v", ok, err)
	}
	it.Release()

	it, ok, err = tr.Insert(i32(1), i32(20))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("duplicate insert reported ok")
	}
	// The returned iterator points at the existing entry.
	if asI32(it.Value()) != 10 {
		t.Fatalf("existing entry value %d", asI32(it.Value()))
	}
	it.Release()

	if tr.Size() != 1 {
		t.Fatalf("size %d after rejected duplicate", tr.Size())
	}
}

func TestMultiDuplicates(t *testing.T) {
	tr := openMulti(t, filepath.Join(t.TempDir(), "multi.btr"))
	defer tr.Close()

	for _, v := range []int32{1, 2, 3} {
		it, _, err := tr.Insert(i32(5), i32(v))
		if err != nil {
			t.Fatalf("Insert (5,%d) failed: %v", v, err)
		}
		it.Release()
	}
	if tr.Size() != 3 {
		t.Fatalf("size %d", tr.Size())
	}

	lo, hi, err := tr.EqualRange(i32(5))
	if err != nil {
		t.Fatal(err)
	}
	var vals []int32
	for !lo.Equal(hi) {
		vals = append(vals, asI32(lo.Value()))
		if err := lo.Next(); err != nil {
			t.Fatal(err)
		}
	}
	lo.Release()
	hi.Release()

	if len(vals) != 3 || vals[0] != 1 || vals[1] != 2 || vals[2] != 3 {
		t.Fatalf("equal range yielded %v, want insertion order", vals)
	}

	removed, err := tr.Erase(i32(5))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Fatalf("Erase removed %d, want 3", removed)
	}

	it, err := tr.Find(i32(5))
	if err != nil {
		t.Fatal(err)
	}
	if it.Valid() {
		t.Fatal("Find(5) after erase returned an entry")
	}
	it.Release()
}

func TestMultiStableAcrossSplits(t *testing.T) {
	opts := testOptions(storage.Multi)
	opts.PageSize = 128

	tr, err := storage.Open(filepath.Join(t.TempDir(), "stable.btr"), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	// Enough duplicates of few keys to span many leaves.
	const perKey = 50
	for v := int32(0); v < perKey; v++ {
		for _, k := range []int32{10, 20, 30} {
			it, _, err := tr.Insert(i32(k), i32(v))
			if err != nil {
				t.Fatalf("Insert (%d,%d) failed: %v", k, v, err)
			}
			it.Release()
		}
	}

	for _, k := range []int32{10, 20, 30} {
		lo, hi, err := tr.EqualRange(i32(k))
		if err != nil {
			t.Fatal(err)
		}
		want := int32(0)
		for !lo.Equal(hi) {
			if asI32(lo.Value()) != want {
				t.Fatalf("key %d: entry %d has value %d, insertion order lost", k, want, asI32(lo.Value()))
			}
			want++
			if err := lo.Next(); err != nil {
				t.Fatal(err)
			}
		}
		lo.Release()
		hi.Release()
		if want != perKey {
			t.Fatalf("key %d: %d entries, want %d", k, want, perKey)
		}
	}

	if err := tr.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestEraseByIterator(t *testing.T) {
	tr := openUnique(t, filepath.Join(t.TempDir(), "eraseit.btr"))
	defer tr.Close()

	for i := int32(0); i < 10; i++ {
		it, _, err := tr.Insert(i32(i), i32(i))
		if err != nil {
			t.Fatal(err)
		}
		it.Release()
	}

	it, err := tr.Find(i32(4))
	if err != nil {
		t.Fatal(err)
	}
	succ, err := tr.EraseIterator(it)
	if err != nil {
		t.Fatalf("EraseIterator failed: %v", err)
	}
	if !succ.Valid() || asI32(succ.Key()) != 5 {
		t.Fatalf("successor is not 5")
	}
	succ.Release()

	if tr.Size() != 9 {
		t.Fatalf("size %d after iterator erase", tr.Size())
	}
	ok, err := tr.Contains(i32(4))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("key 4 still present")
	}

	// Erasing end is an invalid-iterator error.
	if _, err := tr.EraseIterator(tr.End()); err == nil {
		t.Fatal("EraseIterator(end) succeeded")
	}
}

func TestForwardBackwardSymmetry(t *testing.T) {
	opts := testOptions(storage.Unique)
	opts.PageSize = 128

	tr, err := storage.Open(filepath.Join(t.TempDir(), "sym.btr"), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	for i := int32(0); i < 200; i++ {
		it, _, err := tr.Insert(i32(i*3), i32(i))
		if err != nil {
			t.Fatal(err)
		}
		it.Release()
	}

	forward := collect(t, tr)

	var backward [][2]int32
	it := tr.End()
	for {
		if err := it.Prev(); err != nil {
			break
		}
		backward = append(backward, [2]int32{asI32(it.Key()), asI32(it.Value())})
		if asI32(it.Key()) == 0 {
			break
		}
	}
	it.Release()

	if len(forward) != len(backward) {
		t.Fatalf("forward %d entries, backward %d", len(forward), len(backward))
	}
	for i := range forward {
		if forward[i] != backward[len(backward)-1-i] {
			t.Fatalf("entry %d: forward %v, backward %v", i, forward[i], backward[len(backward)-1-i])
		}
	}
}

func TestSetValueThroughIterator(t *testing.T) {
	tr := openUnique(t, filepath.Join(t.TempDir(), "setval.btr"))
	defer tr.Close()

	it, _, err := tr.Insert(i32(1), i32(100))
	if err != nil {
		t.Fatal(err)
	}
	if err := it.SetValue(i32(200)); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	it.Release()

	got, err := tr.Find(i32(1))
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()
	if asI32(got.Value()) != 200 {
		t.Fatalf("value %d after SetValue", asI32(got.Value()))
	}
	if tr.Size() != 1 {
		t.Fatalf("SetValue changed size to %d", tr.Size())
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.btr")
	opts := testOptions(storage.Unique)
	opts.PageSize = 128

	tr, err := storage.Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}
	const n = 500
	for i := int32(0); i < n; i++ {
		it, _, err := tr.Insert(i32(i*7%2000), i32(i))
		if err != nil {
			t.Fatal(err)
		}
		it.Release()
	}
	before := collect(t, tr)
	size := tr.Size()
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}

	tr, err = storage.Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if tr.Size() != size {
		t.Fatalf("size %d after reopen, want %d", tr.Size(), size)
	}
	after := collect(t, tr)
	if len(before) != len(after) {
		t.Fatalf("%d entries after reopen, want %d", len(after), len(before))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("entry %d differs after reopen: %v vs %v", i, before[i], after[i])
		}
	}
	if err := tr.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated after reopen: %v", err)
	}
}
