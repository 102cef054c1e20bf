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

// Package hybridjoin implements a hybrid (Grace-style) hash join core: a
// build-side hash table that partitions records across a fixed pool of
// memory segments, spilling the largest partition to disk under memory
// pressure and degrading spilled buckets to a compact bit vector rather
// than dropping their membership information entirely.
//
// The package deliberately stops short of owning memory allocation, disk
// I/O, or record (de)serialization: those are supplied by the host
// through the MemoryManager, IOManager, and Record/Key interfaces below,
// the same separation of concerns HashJoin.java draws between the join
// algorithm and its MemoryManager/IOManager collaborators.
package hybridjoin

import "github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"

// Key, Record, RecordSource, Segment, MemoryManager, ChannelID,
// ChannelEnumerator, ChannelWriter, and IOManager are aliases of the
// identically-named types in hjtypes: the engine's internal packages
// (segment, partition, bucket) depend on hjtypes directly to avoid an
// import cycle through this package, but callers of Driver only ever
// need to import "hybridjoin" itself.
type (
	Key               = hjtypes.Key
	Record            = hjtypes.Record
	RecordSource      = hjtypes.RecordSource
	Segment           = hjtypes.Segment
	MemoryManager     = hjtypes.MemoryManager
	ChannelID         = hjtypes.ChannelID
	ChannelEnumerator = hjtypes.ChannelEnumerator
	ChannelWriter     = hjtypes.ChannelWriter
	IOManager         = hjtypes.IOManager
)
