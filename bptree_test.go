package bptree_test

import (
	"errors"
	"path/filepath"
	"testing"

	bptree "go.bptree"
)

func TestMapRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.btr")

	m, err := bptree.OpenMap[int32, int32](path, bptree.Options[int32]{
		Flags: bptree.ReadWrite,
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := m.Insert(7, 70)
	if err != nil || !ok {
		t.Fatalf("Insert failed: ok=%v err=%v", ok, err)
	}
	ok, err = m.Insert(7, 71)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("duplicate key accepted")
	}

	v, found, err := m.Get(7)
	if err != nil {
		t.Fatal(err)
	}
	if !found || v != 70 {
		t.Fatalf("Get(7) = %d,%v", v, found)
	}
	if m.Size() != 1 {
		t.Fatalf("size %d", m.Size())
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	// Contents survive reopen.
	m, err = bptree.OpenMap[int32, int32](path, bptree.Options[int32]{
		Flags: bptree.ReadWrite,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	v, found, err = m.Get(7)
	if err != nil || !found || v != 70 {
		t.Fatalf("after reopen Get(7) = %d,%v,%v", v, found, err)
	}
}

func TestMapStructKeys(t *testing.T) {
	type point struct {
		X int32
		Y int32
	}
	path := filepath.Join(t.TempDir(), "pts.btr")

	m, err := bptree.OpenMap[point, int64](path, bptree.Options[point]{
		Flags: bptree.ReadWrite,
		Less: func(a, b point) bool {
			return a.X < b.X || (a.X == b.X && a.Y < b.Y)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	pts := []point{{2, 1}, {1, 9}, {1, 3}, {3, 0}}
	for i, p := range pts {
		if _, err := m.Insert(p, int64(i)); err != nil {
			t.Fatal(err)
		}
	}

	it, err := m.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer it.Release()

	want := []point{{1, 3}, {1, 9}, {2, 1}, {3, 0}}
	for _, w := range want {
		if !it.Valid() || it.Key() != w {
			t.Fatalf("traversal out of order, want %v", w)
		}
		if err := it.Next(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPlainBytesRejection(t *testing.T) {
	type bad struct {
		Name string
	}
	_, err := bptree.OpenMap[bad, int32](filepath.Join(t.TempDir(), "bad.btr"), bptree.Options[bad]{
		Flags: bptree.ReadWrite,
		Less:  func(a, b bad) bool { return a.Name < b.Name },
	})
	if !errors.Is(err, bptree.ErrLogic) {
		t.Fatalf("string-bearing key returned %v", err)
	}

	_, err = bptree.OpenMap[int32, []byte](filepath.Join(t.TempDir(), "badv.btr"), bptree.Options[int32]{
		Flags: bptree.ReadWrite,
	})
	if !errors.Is(err, bptree.ErrLogic) {
		t.Fatalf("slice value returned %v", err)
	}
}

func TestMissingLess(t *testing.T) {
	type pair struct{ A, B int32 }
	_, err := bptree.OpenMap[pair, int32](filepath.Join(t.TempDir(), "noless.btr"), bptree.Options[pair]{
		Flags: bptree.ReadWrite,
	})
	if !errors.Is(err, bptree.ErrLogic) {
		t.Fatalf("struct key without Less returned %v", err)
	}
}

func TestMultimapAndEqualRange(t *testing.T) {
	m, err := bptree.OpenMultimap[int32, int32](filepath.Join(t.TempDir(), "mm.btr"), bptree.Options[int32]{
		Flags: bptree.ReadWrite,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	for _, v := range []int32{1, 2, 3} {
		if err := m.Insert(5, v); err != nil {
			t.Fatal(err)
		}
	}

	lo, hi, err := m.EqualRange(5)
	if err != nil {
		t.Fatal(err)
	}
	var vals []int32
	for !lo.Equal(hi) {
		vals = append(vals, lo.Value())
		if err := lo.Next(); err != nil {
			t.Fatal(err)
		}
	}
	lo.Release()
	hi.Release()
	if len(vals) != 3 || vals[0] != 1 || vals[1] != 2 || vals[2] != 3 {
		t.Fatalf("equal range %v", vals)
	}

	n, err := m.Erase(5)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("Erase removed %d", n)
	}
	found, err := m.Contains(5)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("key 5 survives erase")
	}
}

func TestSetBasics(t *testing.T) {
	s, err := bptree.OpenSet[uint64](filepath.Join(t.TempDir(), "set.btr"), bptree.Options[uint64]{
		Flags: bptree.ReadWrite,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for _, k := range []uint64{9, 3, 7, 3} {
		if _, err := s.Insert(k); err != nil {
			t.Fatal(err)
		}
	}
	if s.Size() != 3 {
		t.Fatalf("set size %d", s.Size())
	}

	it, err := s.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer it.Release()
	want := []uint64{3, 7, 9}
	for _, w := range want {
		if !it.Valid() || it.Key() != w {
			t.Fatalf("set order wrong at %d", w)
		}
		if err := it.Next(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSetValueThroughTypedIterator(t *testing.T) {
	m, err := bptree.OpenMap[int32, int64](filepath.Join(t.TempDir(), "wv.btr"), bptree.Options[int32]{
		Flags: bptree.ReadWrite,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if _, err := m.Insert(1, 100); err != nil {
		t.Fatal(err)
	}

	it, err := m.Find(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := it.SetValue(200); err != nil {
		t.Fatal(err)
	}
	it.Release()

	v, _, err := m.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if v != 200 {
		t.Fatalf("value %d after SetValue", v)
	}
}

func TestContainerEqual(t *testing.T) {
	dir := t.TempDir()
	open := func(name string) *bptree.Map[int32, int32] {
		m, err := bptree.OpenMap[int32, int32](filepath.Join(dir, name), bptree.Options[int32]{
			Flags: bptree.ReadWrite,
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { m.Close() })
		return m
	}

	a, b := open("a.btr"), open("b.btr")
	for i := int32(0); i < 100; i++ {
		if _, err := a.Insert(i, i*2); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Insert(99-i, (99-i)*2); err != nil {
			t.Fatal(err)
		}
	}

	eq, err := a.Equal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Fatal("same contents compare unequal")
	}

	if _, err := b.Insert(1000, 0); err != nil {
		t.Fatal(err)
	}
	eq, err = a.Equal(b)
	if err != nil {
		t.Fatal(err)
	}
	if eq {
		t.Fatal("different contents compare equal")
	}
}

func TestContainerCompare(t *testing.T) {
	dir := t.TempDir()
	open := func(name string) *bptree.Map[int32, int32] {
		m, err := bptree.OpenMap[int32, int32](filepath.Join(dir, name), bptree.Options[int32]{
			Flags: bptree.ReadWrite,
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { m.Close() })
		return m
	}

	a, b := open("a.btr"), open("b.btr")
	for i := int32(0); i < 50; i++ {
		if _, err := a.Insert(i, i); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Insert(i, i); err != nil {
			t.Fatal(err)
		}
	}

	c, err := a.Compare(b)
	if err != nil {
		t.Fatal(err)
	}
	if c != 0 {
		t.Fatalf("equal containers compare %d", c)
	}

	// A proper prefix sorts first.
	if _, err := b.Insert(1000, 0); err != nil {
		t.Fatal(err)
	}
	c, err = a.Compare(b)
	if err != nil {
		t.Fatal(err)
	}
	if c >= 0 {
		t.Fatalf("prefix compares %d, want negative", c)
	}

	// A smaller key early on wins regardless of length.
	if _, err := a.Insert(-1, 0); err != nil {
		t.Fatal(err)
	}
	c, err = a.Compare(b)
	if err != nil {
		t.Fatal(err)
	}
	if c >= 0 {
		t.Fatalf("smaller first key compares %d, want negative", c)
	}

	// And a larger value at an equal key sorts after.
	d, e := open("d.btr"), open("e.btr")
	if _, err := d.Insert(1, 9); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Insert(1, 2); err != nil {
		t.Fatal(err)
	}
	c, err = d.Compare(e)
	if err != nil {
		t.Fatal(err)
	}
	if c <= 0 {
		t.Fatalf("larger value compares %d, want positive", c)
	}
}
