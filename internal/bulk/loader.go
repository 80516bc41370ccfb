// Package bulk fills a fresh tree from a flat record file by external
// merge-sort: the source is cut into memory-sized chunks, each chunk
// is stably sorted and spilled to a temp file, and the temp files are
// merged by repeatedly inserting the minimum head record. Ties go to
// the lowest-numbered file, which together with the stable chunk sort
// preserves source order between equal keys.
package bulk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"go.bptree/internal/logger"
	"go.bptree/internal/storage"
)

type Options struct {
	// MemoryBudget bounds the bytes of records held per distribution
	// chunk; 0 means 64 MiB.
	MemoryBudget int

	// LogEvery logs progress every that many inserts; 0 disables.
	LogEvery uint64

	// TempDir holds the spill files; empty means the OS default.
	TempDir string

	Log *logger.Logger
}

const defaultMemoryBudget = 64 << 20

// Load ingests the file at source into t and returns how many records
// were inserted. The source size must be a multiple of the tree's
// record size.
func Load(source string, t *storage.Tree, opts Options) (uint64, error) {
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	budget := opts.MemoryBudget
	if budget == 0 {
		budget = defaultMemoryBudget
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	recordSize := t.KeySize() + t.ValueSize()
	perFile := budget / recordSize
	if perFile < 1 {
		return 0, fmt.Errorf("budget %d below one %d-byte record: %w", budget, recordSize, storage.ErrLogic)
	}

	src, err := storage.OpenFile(source, storage.ReadOnly)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	if src.Size()%int64(recordSize) != 0 {
		return 0, fmt.Errorf("%s size %d not a multiple of record size %d: %w",
			source, src.Size(), recordSize, storage.ErrFormat)
	}
	total := uint64(src.Size()) / uint64(recordSize)
	if total == 0 {
		return 0, nil
	}

	tmpPaths, err := distribute(src, t, tempDir, perFile, total, log)
	defer func() {
		for _, p := range tmpPaths {
			os.Remove(p)
		}
	}()
	if err != nil {
		return 0, err
	}

	inserted, err := mergeInsert(tmpPaths, t, recordSize, opts.LogEvery, log)
	if err != nil {
		return inserted, err
	}
	if inserted != total {
		return inserted, fmt.Errorf("read %d records, inserted %d: %w", total, inserted, storage.ErrFormat)
	}
	log.Infof("bulk load complete: %s records, tree size %s",
		humanize.Comma(int64(inserted)), humanize.Comma(int64(t.Size())))
	return inserted, nil
}

// distribute cuts the source into sorted spill files btree.tmp<N>.
func distribute(src *storage.File, t *storage.Tree, tempDir string, perFile int, total uint64, log *logger.Logger) ([]string, error) {
	recordSize := t.KeySize() + t.ValueSize()
	nFiles := int((total + uint64(perFile) - 1) / uint64(perFile))

	log.Infof("distributing %s records (%s) to %d temporary files",
		humanize.Comma(int64(total)), humanize.IBytes(uint64(src.Size())), nFiles)

	chunk := make([]byte, perFile*recordSize)
	out := make([]byte, perFile*recordSize)
	recs := make([][]byte, perFile)
	paths := make([]string, 0, nFiles)

	done := uint64(0)
	for fileN := 0; fileN < nFiles; fileN++ {
		n := perFile
		if left := total - done; left < uint64(perFile) {
			n = int(left)
		}

		buf := chunk[:n*recordSize]
		if err := src.ReadAt(buf, int64(done)*int64(recordSize)); err != nil {
			return paths, err
		}

		views := recs[:n]
		for i := range views {
			views[i] = buf[i*recordSize : (i+1)*recordSize]
		}
		keySize := t.KeySize()
		sort.SliceStable(views, func(i, j int) bool {
			return t.CompareKeys(views[i][:keySize], views[j][:keySize]) < 0
		})
		for i, r := range views {
			copy(out[i*recordSize:], r)
		}

		path := filepath.Join(tempDir, fmt.Sprintf("btree.tmp%d", fileN))
		tmp, err := storage.OpenFile(path, storage.ReadWrite|storage.Truncate)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
		if err := tmp.WriteAt(out[:n*recordSize], 0); err != nil {
			tmp.Close()
			return paths, err
		}
		if err := tmp.Close(); err != nil {
			return paths, err
		}

		done += uint64(n)
		log.Debugf("temporary file %d: %s records", fileN, humanize.Comma(int64(n)))
	}
	return paths, nil
}

type mergeFile struct {
	f    *storage.File
	off  int64
	cur  []byte
	name int
}

// mergeInsert opens every spill file and repeatedly inserts the
// minimum head record into the tree, lowest file number first among
// equals.
func mergeInsert(paths []string, t *storage.Tree, recordSize int, logEvery uint64, log *logger.Logger) (uint64, error) {
	log.Infof("%d temporary files to merge and insert", len(paths))

	files := make([]*mergeFile, 0, len(paths))
	defer func() {
		for _, mf := range files {
			mf.f.Close()
		}
	}()

	for i, path := range paths {
		f, err := storage.OpenFile(path, storage.ReadOnly)
		if err != nil {
			return 0, err
		}
		mf := &mergeFile{f: f, cur: make([]byte, recordSize), name: i}
		if err := f.ReadAt(mf.cur, 0); err != nil {
			f.Close()
			return 0, err
		}
		mf.off = int64(recordSize)
		files = append(files, mf)
	}

	keySize := t.KeySize()
	inserted := uint64(0)

	for len(files) > 0 {
		min := 0
		for i := 1; i < len(files); i++ {
			if t.CompareKeys(files[i].cur[:keySize], files[min].cur[:keySize]) < 0 {
				min = i
			}
		}
		mf := files[min]

		it, _, err := t.Insert(mf.cur[:keySize], mf.cur[keySize:])
		if err != nil {
			return inserted, err
		}
		it.Release()
		inserted++

		if logEvery != 0 && inserted%logEvery == 0 {
			log.Infof("    %s inserts, this one from file %d of %d",
				humanize.Comma(int64(inserted)), mf.name, len(files))
		}

		if mf.off < mf.f.Size() {
			if err := mf.f.ReadAt(mf.cur, mf.off); err != nil {
				return inserted, err
			}
			mf.off += int64(recordSize)
		} else {
			mf.f.Close()
			files = append(files[:min], files[min+1:]...)
		}
	}
	return inserted, nil
}
