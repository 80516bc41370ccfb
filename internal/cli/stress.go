package cli

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/spf13/cobra"

	bptree "go.bptree"
)

// Random-equivalence harness: run the same inserts and erases against
// the tree and an in-memory reference map, compare sizes after every
// operation and full traversals after every phase.

var stressFlags struct {
	max       int
	min       int
	low       int32
	high      int32
	cycles    int
	seed      int64
	pageSize  int
	cacheSize int
}

var stressCmd = &cobra.Command{
	Use:   "stress <path-prefix>",
	Short: "Run random insert/erase cycles against a reference map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &stressFlags
		if f.max == 0 {
			f.max = cfg.Stress.Max
		}
		if f.min == 0 {
			f.min = cfg.Stress.Min
		}
		if f.cycles == 0 {
			f.cycles = cfg.Stress.Cycles
		}
		if f.seed == 0 {
			f.seed = cfg.Stress.Seed
		}
		if f.low == 0 {
			f.low = cfg.Stress.Low
		}
		if f.high == 0 {
			f.high = cfg.Stress.High
		}
		if f.high == 0 {
			f.high = int32(f.max * 2)
		}
		if f.pageSize == 0 {
			f.pageSize = cfg.PageSize
		}
		if f.cacheSize == 0 {
			f.cacheSize = cfg.CachePages
		}
		return runStress(args[0] + ".btr")
	},
}

func init() {
	f := &stressFlags
	stressCmd.Flags().IntVar(&f.max, "max", 0, "grow each cycle to this many elements")
	stressCmd.Flags().IntVar(&f.min, "min", 0, "shrink each cycle to this many elements")
	stressCmd.Flags().Int32Var(&f.low, "low", 0, "low end of the key range")
	stressCmd.Flags().Int32Var(&f.high, "high", 0, "high end of the key range")
	stressCmd.Flags().IntVar(&f.cycles, "cycles", 0, "number of grow/shrink cycles")
	stressCmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed")
	stressCmd.Flags().IntVar(&f.pageSize, "page-size", 0, "tree page size")
	stressCmd.Flags().IntVar(&f.cacheSize, "cache-size", 0, "page cache capacity")
	rootCmd.AddCommand(stressCmd)
}

func runStress(path string) error {
	f := &stressFlags
	bt, err := bptree.OpenMap[int32, int32](path, bptree.Options[int32]{
		PageSize:   f.pageSize,
		CachePages: f.cacheSize,
		Flags:      bptree.ReadWrite | bptree.Truncate,
	})
	if err != nil {
		return err
	}
	defer bt.Close()

	ref := make(map[int32]int32)
	rng := rand.New(rand.NewSource(f.seed))
	nextKey := func() int32 { return f.low + rng.Int31n(f.high-f.low) }

	var inserts, insertFails, erases, eraseFails uint64

	for cycle := 1; cycle <= f.cycles; cycle++ {
		for len(ref) < f.max {
			k := nextKey()
			_, refHad := ref[k]
			ref[k] = k

			ok, err := bt.Insert(k, k)
			if err != nil {
				return err
			}
			if ok == refHad {
				return fmt.Errorf("insert %d: tree ok=%v, reference had=%v", k, ok, refHad)
			}
			if ok {
				inserts++
			} else {
				insertFails++
			}
			if bt.Size() != uint64(len(ref)) {
				return fmt.Errorf("size %d, reference %d", bt.Size(), len(ref))
			}
		}
		if err := compareTraversal(bt, ref); err != nil {
			return fmt.Errorf("cycle %d after grow: %w", cycle, err)
		}

		for len(ref) > f.min {
			k := nextKey()
			_, refHad := ref[k]
			delete(ref, k)

			n, err := bt.Erase(k)
			if err != nil {
				return err
			}
			if (n == 1) != refHad {
				return fmt.Errorf("erase %d: tree removed %d, reference had=%v", k, n, refHad)
			}
			if refHad {
				erases++
			} else {
				eraseFails++
			}
			if bt.Size() != uint64(len(ref)) {
				return fmt.Errorf("size %d, reference %d", bt.Size(), len(ref))
			}
		}
		if err := compareTraversal(bt, ref); err != nil {
			return fmt.Errorf("cycle %d after shrink: %w", cycle, err)
		}
		if err := bt.CheckInvariants(); err != nil {
			return fmt.Errorf("cycle %d: %w", cycle, err)
		}
		log.Infof("cycle %d complete, size %d", cycle, bt.Size())
	}

	log.Infof("stress done: %d inserts (%d dup), %d erases (%d miss)",
		inserts, insertFails, erases, eraseFails)
	return nil
}

func compareTraversal(bt *bptree.Map[int32, int32], ref map[int32]int32) error {
	keys := make([]int32, 0, len(ref))
	for k := range ref {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	it, err := bt.Begin()
	if err != nil {
		return err
	}
	defer it.Release()

	for _, k := range keys {
		if !it.Valid() {
			return fmt.Errorf("traversal ended early at key %d", k)
		}
		if it.Key() != k || it.Value() != ref[k] {
			return fmt.Errorf("traversal saw (%d,%d), reference (%d,%d)",
				it.Key(), it.Value(), k, ref[k])
		}
		if err := it.Next(); err != nil {
			return err
		}
	}
	if it.Valid() {
		return fmt.Errorf("traversal has extra entries past %d keys", len(keys))
	}
	return nil
}
