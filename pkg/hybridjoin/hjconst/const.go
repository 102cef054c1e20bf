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

// Package hjconst holds the numeric constants shared by the bucket table,
// hash functions, and sizing math, kept in one place so the bucket byte
// layout and the sizing formulas that depend on it never drift apart.
package hjconst

const (
	// HashBucketSize is the fixed size, in bytes, of every bucket in the
	// bucket table (matching the segment's own I/O granularity).
	HashBucketSize = 1024

	// BucketHeaderLen is the number of header bytes at the front of every
	// bucket: partition byte, status byte, element count, forward pointer.
	BucketHeaderLen = 12

	// RecordOverheadBytes is the assumed per-record bookkeeping cost (hash
	// + pointer entry) used by the initial bucket count formula.
	RecordOverheadBytes = 12

	// MaxEntriesPerBucket is how many (hash, pointer) pairs fit in one
	// bucket's parallel arrays once the header is subtracted.
	MaxEntriesPerBucket = (HashBucketSize - BucketHeaderLen) / RecordOverheadBytes

	// NumIntraBucketBits is log2(HashBucketSize): the number of low bits
	// of a bucket index that select an offset within a bucket-table
	// segment, once the segment index has been divided out.
	NumIntraBucketBits = 10

	// DefaultAvgRecordLen is the fallback average record length used to
	// size the bucket table when the caller supplies none.
	DefaultAvgRecordLen = 100

	// MinSegments is the smallest segment count a join instance can be
	// constructed with: enough for one segment per partition at the
	// smallest fan-out, plus headroom for the write-behind reserve and
	// bucket table.
	MinSegments = 33

	// MinPartitions and MaxPartitions bound the partition fan-out
	// regardless of what the sizing formula computes.
	MinPartitions = 10
	MaxPartitions = 127

	// MaxWriteBehindBuffers caps the write-behind reserve regardless of
	// segment count.
	MaxWriteBehindBuffers = 6

	// BucketStatusInMemory and BucketStatusSpilled are the two legal
	// values of a bucket's status byte.
	BucketStatusInMemory byte = 0
	BucketStatusSpilled  byte = 1
)
