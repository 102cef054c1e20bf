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

// Package bucket implements the hash-join bucket table: fixed 1024-byte
// buckets laid out over shared memory segments, each holding a partition
// byte, a status byte, an element count, an overflow forward pointer, and
// two parallel arrays of hash codes and record pointers (hash-before-
// pointer, so a scan for a matching hash never touches the pointer array
// until it has to).
//
// A bucket belongs to exactly one partition for the lifetime of the join
// (assigned once in New, never reassigned). When that partition spills,
// every bucket it owns is degraded in place: its hash/pointer arrays are
// converted into a bit vector recording which secondary-hash bits its
// former entries set, and it never holds a record pointer again.
package bucket

import (
	"context"
	"encoding/binary"

	"github.com/joinlab/hybridjoin/pkg/common/moerr"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hashfunc"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjconst"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"
)

// noOverflow is the forward-pointer sentinel meaning "no overflow bucket
// linked yet". A real pointer's in-segment offset can legally be zero
// (bucket 0 of an arena segment), so the sentinel must be a value no real
// pointer can take; all bits set can never be produced by a valid
// (segIdx<<32)|offset encoding at any realistic table size.
const noOverflow = ^uint64(0)

// secondaryHashLevel is the hash level used to derive a spilled bucket's
// bit-vector index from a record's primary key hash. Using a distinct
// level from the bucket-selection hash (level 0) keeps the two
// independent, the same way the bucket hash and the partition hash are
// independent mixes of the same key.
const secondaryHashLevel = 1

// ProbeResult is what Probe returns for one probe-side key.
type ProbeResult struct {
	Partition  int
	Candidates []uint64 // valid when the owning partition is in memory
}

// Table is the bucket table: a primary array of buckets over one set of
// segments, plus a small dedicated arena of segments for overflow
// buckets, allocated separately so overflow chaining can never starve
// ordinary partition inserts of free segments.
type Table struct {
	segs                  []hjtypes.Segment
	bucketsPerSegment     int
	bucketsPerSegmentBits int
	bucketsPerSegmentMask int
	numBuckets            int
	fanOut                int

	partitionOf     []byte
	partitionBucket [][]int // partition index -> owned bucket indices

	overflow *overflowArena
}

type overflowArena struct {
	segs              []hjtypes.Segment
	bucketsPerSegment int
	next              int
	capacity          int
}

func newOverflowArena(segs []hjtypes.Segment, segmentSize int) *overflowArena {
	perSeg := segmentSize / hjconst.HashBucketSize
	if perSeg < 1 {
		perSeg = 1
	}
	return &overflowArena{
		segs:              segs,
		bucketsPerSegment: perSeg,
		capacity:          len(segs) * perSeg,
	}
}

func (a *overflowArena) alloc() (segIdx, inSeg int, ok bool) {
	if a.next >= a.capacity {
		return 0, 0, false
	}
	idx := a.next
	a.next++
	segIdx = idx / a.bucketsPerSegment
	inSeg = (idx % a.bucketsPerSegment) * hjconst.HashBucketSize
	return segIdx, inSeg, true
}

func (a *overflowArena) bytes(segIdx, inSeg int) []byte {
	return a.segs[segIdx].Bytes()[inSeg : inSeg+hjconst.HashBucketSize]
}

// New allocates and initializes a bucket table over primarySegs, with
// overflow buckets carved from overflowSegs. numBuckets must already be
// a power of two (sizing.InitialBucketCount guarantees this); fanOut is
// the partition count buckets are assigned across.
func New(ctx context.Context, primarySegs, overflowSegs []hjtypes.Segment, segmentSize, numBuckets, fanOut, level int) (*Table, error) {
	if numBuckets&(numBuckets-1) != 0 {
		return nil, moerr.NewStructuralBug(ctx, "bucket count %d is not a power of two", numBuckets)
	}
	perSeg := segmentSize / hjconst.HashBucketSize
	if perSeg < 1 {
		return nil, moerr.NewInvalidArg(ctx, "segmentSize", segmentSize)
	}
	bits, err := hashfunc.Log2Floor(uint32(perSeg))
	if err != nil {
		return nil, err
	}
	needSegs := (numBuckets + perSeg - 1) / perSeg
	if len(primarySegs) < needSegs {
		return nil, moerr.NewInvalidArg(ctx, "primarySegs", len(primarySegs))
	}

	t := &Table{
		segs:                  primarySegs[:needSegs],
		bucketsPerSegment:     perSeg,
		bucketsPerSegmentBits: bits,
		bucketsPerSegmentMask: perSeg - 1,
		numBuckets:            numBuckets,
		fanOut:                fanOut,
		partitionOf:           make([]byte, numBuckets),
		partitionBucket:       make([][]int, fanOut),
		overflow:              newOverflowArena(overflowSegs, segmentSize),
	}

	for i := 0; i < numBuckets; i++ {
		p := int(hashfunc.Partition(int32(i), level)) % fanOut
		if p < 0 {
			p += fanOut
		}
		t.partitionOf[i] = byte(p)
		t.partitionBucket[p] = append(t.partitionBucket[p], i)

		segIdx := i >> bits
		inSeg := (i & (perSeg - 1)) * hjconst.HashBucketSize
		b := t.segs[segIdx].Bytes()[inSeg : inSeg+hjconst.HashBucketSize]
		b[0] = byte(p)
		b[1] = hjconst.BucketStatusInMemory
		binary.LittleEndian.PutUint16(b[2:4], 0)
		binary.LittleEndian.PutUint64(b[4:12], noOverflow)
	}

	return t, nil
}

// Segments returns the primary and overflow segments backing the table,
// for the driver to release at Close.
func (t *Table) Segments() []hjtypes.Segment {
	out := append([]hjtypes.Segment{}, t.segs...)
	return append(out, t.overflow.segs...)
}

func (t *Table) locate(hash32 uint32) (segIdx, inSeg int) {
	hLow := hash32 & uint32(t.numBuckets-1)
	segIdx = int(hLow) >> t.bucketsPerSegmentBits
	inSeg = (int(hLow) & t.bucketsPerSegmentMask) << hjconst.NumIntraBucketBits
	return
}

func (t *Table) bucketBytes(hash32 uint32) []byte {
	segIdx, inSeg := t.locate(hash32)
	return t.segs[segIdx].Bytes()[inSeg : inSeg+hjconst.HashBucketSize]
}

func bucketIndex(hash32 uint32, numBuckets int) int {
	return int(hash32 & uint32(numBuckets-1))
}

// PartitionOf returns the partition index that owns the bucket hash32
// resolves to.
func (t *Table) PartitionOf(ctx context.Context, hash32 uint32) (int, error) {
	idx := bucketIndex(hash32, t.numBuckets)
	p := int(t.partitionOf[idx])
	if p < 0 || p >= t.fanOut {
		return 0, moerr.NewCorruptBucket(ctx, "bucket %d has out-of-range partition byte %d", idx, p)
	}
	return p, nil
}

// InsertInMemory records (hashCode, pointer) in the bucket hash32
// resolves to, chaining into an overflow bucket if the primary bucket
// (and any bucket already chained from it) is full.
func (t *Table) InsertInMemory(ctx context.Context, hash32, hashCode uint32, pointer uint64) error {
	b := t.bucketBytes(hash32)
	for {
		count := binary.LittleEndian.Uint16(b[2:4])
		if int(count) < hjconst.MaxEntriesPerBucket {
			hashOff := hjconst.BucketHeaderLen + 4*int(count)
			ptrOff := hjconst.BucketHeaderLen + 4*hjconst.MaxEntriesPerBucket + 8*int(count)
			binary.LittleEndian.PutUint32(b[hashOff:], hashCode)
			binary.LittleEndian.PutUint64(b[ptrOff:], pointer)
			binary.LittleEndian.PutUint16(b[2:4], count+1)
			return nil
		}

		fwd := binary.LittleEndian.Uint64(b[4:12])
		if fwd == noOverflow {
			segIdx, inSeg, ok := t.overflow.alloc()
			if !ok {
				return moerr.NewOOM(ctx)
			}
			nb := t.overflow.bytes(segIdx, inSeg)
			nb[0] = b[0]
			nb[1] = hjconst.BucketStatusInMemory
			binary.LittleEndian.PutUint16(nb[2:4], 0)
			binary.LittleEndian.PutUint64(nb[4:12], noOverflow)
			binary.LittleEndian.PutUint64(b[4:12], (uint64(segIdx)<<32)|uint64(uint32(inSeg)))
			b = nb
			continue
		}
		segIdx := int(fwd >> 32)
		inSeg := int(uint32(fwd))
		b = t.overflow.bytes(segIdx, inSeg)
	}
}

// DegradePartition converts every bucket owned by partition p from a
// hash/pointer table into a bit vector, preserving membership for every
// entry the bucket already held. The driver calls this exactly once,
// immediately after a partition spills — before the degrade, a bucket
// belonging to a spilled partition would otherwise still carry pointers
// into buffers the partition no longer owns.
func (t *Table) DegradePartition(p int) {
	for _, idx := range t.partitionBucket[p] {
		segIdx := idx >> t.bucketsPerSegmentBits
		inSeg := (idx & t.bucketsPerSegmentMask) << hjconst.NumIntraBucketBits
		b := t.segs[segIdx].Bytes()[inSeg : inSeg+hjconst.HashBucketSize]
		t.degradeBucket(b)
	}
}

func (t *Table) degradeBucket(b []byte) {
	if b[1] == hjconst.BucketStatusSpilled {
		return
	}
	payload := b[hjconst.BucketHeaderLen:hjconst.HashBucketSize]
	bits := len(payload) * 8

	// Walk the chain, including any overflow buckets, collecting each
	// stored hash code before the arrays are zeroed: the bit vector
	// overlays the same bytes, so bits cannot be set while hashes are
	// still being read from them.
	var hashes []uint32
	cur := b
	for {
		count := int(binary.LittleEndian.Uint16(cur[2:4]))
		for i := 0; i < count; i++ {
			hashOff := hjconst.BucketHeaderLen + 4*i
			hashes = append(hashes, binary.LittleEndian.Uint32(cur[hashOff:]))
		}
		fwd := binary.LittleEndian.Uint64(cur[4:12])
		if fwd == noOverflow || cur[1] == hjconst.BucketStatusSpilled {
			break
		}
		segIdx := int(fwd >> 32)
		inSeg := int(uint32(fwd))
		cur = t.overflow.bytes(segIdx, inSeg)
	}

	for i := range payload {
		payload[i] = 0
	}
	for _, h := range hashes {
		setBit(payload, secondaryBit(h, bits))
	}
	b[1] = hjconst.BucketStatusSpilled
}

func secondaryBit(hashCode uint32, bits int) int {
	h := hashfunc.Hash(int32(hashCode), secondaryHashLevel)
	return int(h % uint32(bits))
}

func setBit(payload []byte, bit int) {
	payload[bit/8] |= 1 << uint(bit%8)
}

func testBit(payload []byte, bit int) bool {
	return payload[bit/8]&(1<<uint(bit%8)) != 0
}

// InsertSpilled sets the bit vector entry for hashCode in the bucket
// hash32 resolves to. The bucket must already be in spilled (bit-vector)
// form: DegradePartition is required to have run for this bucket's
// partition before any InsertSpilled call reaches it.
func (t *Table) InsertSpilled(ctx context.Context, hash32, hashCode uint32) error {
	b := t.bucketBytes(hash32)
	if b[1] != hjconst.BucketStatusSpilled {
		return moerr.NewStructuralBug(ctx, "insert into spilled partition's bucket that was never degraded")
	}
	payload := b[hjconst.BucketHeaderLen:hjconst.HashBucketSize]
	setBit(payload, secondaryBit(hashCode, len(payload)*8))
	return nil
}

// Probe resolves hash32/hashCode to either a list of in-memory candidate
// pointers (caller must dereference and check key equality) or reports
// spilled-partition bit-vector membership.
func (t *Table) Probe(ctx context.Context, hash32, hashCode uint32) (result ProbeResult, spilled bool, member bool, err error) {
	pIdx, err := t.PartitionOf(ctx, hash32)
	if err != nil {
		return ProbeResult{}, false, false, err
	}
	b := t.bucketBytes(hash32)

	if b[1] == hjconst.BucketStatusSpilled {
		payload := b[hjconst.BucketHeaderLen:hjconst.HashBucketSize]
		return ProbeResult{Partition: pIdx}, true, testBit(payload, secondaryBit(hashCode, len(payload)*8)), nil
	}

	res := ProbeResult{Partition: pIdx}
	cur := b
	for {
		count := int(binary.LittleEndian.Uint16(cur[2:4]))
		if count > hjconst.MaxEntriesPerBucket {
			return ProbeResult{}, false, false, moerr.NewCorruptBucket(ctx, "bucket element count %d exceeds capacity %d", count, hjconst.MaxEntriesPerBucket)
		}
		for i := 0; i < count; i++ {
			hashOff := hjconst.BucketHeaderLen + 4*i
			if binary.LittleEndian.Uint32(cur[hashOff:]) == hashCode {
				ptrOff := hjconst.BucketHeaderLen + 4*hjconst.MaxEntriesPerBucket + 8*i
				res.Candidates = append(res.Candidates, binary.LittleEndian.Uint64(cur[ptrOff:]))
			}
		}
		fwd := binary.LittleEndian.Uint64(cur[4:12])
		if fwd == noOverflow {
			break
		}
		segIdx := int(fwd >> 32)
		inSeg := int(uint32(fwd))
		cur = t.overflow.bytes(segIdx, inSeg)
	}
	return res, false, false, nil
}
