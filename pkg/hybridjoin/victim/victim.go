// Copyright 2021 - 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package victim keeps an ordered index of in-memory build-side
// partitions by block count, so JoinDriver.spill can pick the largest
// partition to spill in O(log n) instead of HashJoin.spillPartition's
// linear scan over every partition on every spill decision.
package victim

import "github.com/google/btree"

type entry struct {
	blocks    int
	partition int
}

// Less orders entries by block count first, then partition index, so the
// btree gives a total order and Max always resolves ties deterministically.
func (a entry) Less(than btree.Item) bool {
	b := than.(entry)
	if a.blocks != b.blocks {
		return a.blocks < b.blocks
	}
	return a.partition < b.partition
}

// Index tracks every in-memory partition's current block count.
type Index struct {
	tree *btree.BTree
	byID map[int]entry
}

// New creates an empty victim index.
func New() *Index {
	return &Index{
		tree: btree.New(32),
		byID: make(map[int]entry),
	}
}

// Update records partition's current block count, replacing any prior
// entry for it. Called once when a partition is created and again every
// time AddBuffer grows it.
func (idx *Index) Update(partition, blocks int) {
	if old, ok := idx.byID[partition]; ok {
		idx.tree.Delete(old)
	}
	e := entry{blocks: blocks, partition: partition}
	idx.byID[partition] = e
	idx.tree.ReplaceOrInsert(e)
}

// Remove excludes a partition from spill-victim consideration entirely,
// called once a partition has spilled: it can never be spilled again.
func (idx *Index) Remove(partition int) {
	if old, ok := idx.byID[partition]; ok {
		idx.tree.Delete(old)
		delete(idx.byID, partition)
	}
}

// Largest returns the tracked partition with the greatest block count,
// provided it holds at least two buffers (spec's precondition for
// spilling a partition profitably). It returns ok=false if no tracked
// partition qualifies.
func (idx *Index) Largest() (partition int, ok bool) {
	var max *entry
	idx.tree.Descend(func(i btree.Item) bool {
		e := i.(entry)
		max = &e
		return false
	})
	if max == nil || max.blocks < 2 {
		return 0, false
	}
	return max.partition, true
}

// Len reports how many partitions are currently tracked as spill
// candidates.
func (idx *Index) Len() int { return idx.tree.Len() }
