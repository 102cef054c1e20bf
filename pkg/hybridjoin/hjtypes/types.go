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

// Package hjtypes holds the join engine's external collaborator
// interfaces (RecordSource, MemoryManager, IOManager, ...) in a leaf
// package that the engine's internal subpackages (segment, partition,
// bucket) can depend on without importing the top-level hybridjoin
// package, which itself depends on them. The top-level package re-exports
// these as type aliases so callers never see the split.
package hjtypes

import "context"

// Key is a build- or probe-side join key: a 32-bit hash for bucket
// placement, plus an equality predicate used to resolve hash collisions
// once a candidate has been located.
type Key interface {
	Hash() uint32
	Equal(other Key) bool
}

// Record is a build- or probe-side element pulled from a RecordSource.
// Marshal returns the bytes the engine writes into a segment buffer;
// Key returns the join key kept alongside the pointer for equality
// checks. The engine never parses Marshal's output back out — it treats
// it as opaque payload and relies on the original Record value (kept
// in-memory for in-memory partitions) for anything that needs the key.
type Record interface {
	Key() Key
	Marshal() []byte
}

// RecordSource is a pull-based, finite sequence of records: the
// build-side or probe-side input to a join.
type RecordSource interface {
	Next(ctx context.Context) (rec Record, ok bool, err error)
}

// Segment is a fixed-size, power-of-two-length byte region supplied by a
// MemoryManager. Segments are never resized or copied by the engine;
// they're the unit of both partition buffers and bucket-table storage.
type Segment interface {
	Bytes() []byte
}

// MemoryManager supplies the fixed-size segments a join instance operates
// over for its lifetime and reclaims them (and only them) when the join
// closes. The engine never asks for more segments than Segments()
// returned when the driver was constructed (New).
type MemoryManager interface {
	SegmentSize() int
	Segments() []Segment
	Release(segs []Segment)
}

// ChannelID names a spill file (or equivalent sequential output) created
// through an IOManager.
type ChannelID uint64

// ChannelEnumerator hands out unique channel IDs for the spill files a
// join instance creates over its lifetime.
type ChannelEnumerator interface {
	Next() ChannelID
}

// ChannelWriter asynchronously writes whole segments to one spill
// channel. WriteBlock returns once the write has been scheduled, not
// once it has completed; the segment is pushed onto the write-behind
// return queue passed to CreateBlockChannelWriter when the write
// finishes, so the caller can reuse it.
type ChannelWriter interface {
	WriteBlock(seg Segment) error
	Close() error
}

// IOManager creates the channel enumerators and block writers spilled
// partitions need. DeleteChannel releases a channel's backing storage
// once a join instance is done with it.
type IOManager interface {
	CreateChannelEnumerator() ChannelEnumerator
	CreateBlockChannelWriter(id ChannelID, returnQueue chan<- Segment) ChannelWriter
	DeleteChannel(id ChannelID) error
}
