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

package hybridjoin

import (
	"context"

	"github.com/joinlab/hybridjoin/pkg/common/moerr"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/bucket"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/config"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hashfunc"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjconst"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/partition"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/segment"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/sizing"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/victim"
	"github.com/joinlab/hybridjoin/pkg/logutil"
)

// baseHashLevel is the hash level used for ordinary bucket/partition
// assignment; a recursive second-pass join over spilled partitions
// (outside this engine's scope) would use level+1.
const baseHashLevel = 0

// ProbeOutcome is the result of probing one record against the build
// side: either the in-memory build-side records whose key equals the
// probe key, or an indication that the probe record was written to a
// spilled partition's probe-side file for a later pass.
type ProbeOutcome struct {
	Matches []Record
	Spilled bool
}

// Driver drives one hybrid hash join instance: New lays out the
// partitions and bucket table, Open builds the hash table from a
// build-side RecordSource, and Probe answers lookups against it.
type Driver struct {
	cfg *config.Config
	mm  hjtypes.MemoryManager
	io  hjtypes.IOManager

	segmentSize int
	fanOut      int
	level       int

	pool       *segment.Pool
	partitions []*partition.Partition
	table      *bucket.Table
	victims    *victim.Index

	enum   hjtypes.ChannelEnumerator
	opened bool
	closed bool
}

// New validates cfg and mm, computes the derived sizing (write-behind
// reserve, partition fan-out, initial bucket count), and lays out the
// partitions and bucket table a subsequent Open will build into. It does
// no I/O against a build or probe source.
func New(ctx context.Context, cfg *config.Config, mm hjtypes.MemoryManager, io hjtypes.IOManager) (*Driver, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	if mm == nil {
		return nil, moerr.NewInvalidArg(ctx, "mm", nil)
	}
	if io == nil {
		return nil, moerr.NewInvalidArg(ctx, "io", nil)
	}

	segmentSize := mm.SegmentSize()
	if segmentSize <= 0 || segmentSize&(segmentSize-1) != 0 || segmentSize < hjconst.HashBucketSize {
		return nil, moerr.NewInvalidArgf(ctx, "memory manager segment size %d must be a power of two >= %d", segmentSize, hjconst.HashBucketSize)
	}
	if cfg.SegmentSize != segmentSize {
		return nil, moerr.NewInvalidArgf(ctx, "config segment_size %d does not match memory manager segment size %d", cfg.SegmentSize, segmentSize)
	}

	segs := mm.Segments()
	if len(segs) < cfg.MinSegments {
		return nil, moerr.NewInvalidArgf(ctx, "memory manager supplied %d segments, need at least %d", len(segs), cfg.MinSegments)
	}

	writeBehind := sizing.WriteBehindBufferCount(len(segs), cfg.MaxWriteBehindBuffers)
	fanOut := sizing.PartitionFanOut(len(segs), hjconst.MinPartitions, cfg.MaxPartitionFanOut)
	numBuckets := sizing.InitialBucketCount(len(segs), segmentSize, cfg.DefaultAvgRecordLen)

	perSeg := segmentSize / hjconst.HashBucketSize
	primaryNeed := (numBuckets + perSeg - 1) / perSeg
	overflowReserve := fanOut / 8
	if overflowReserve < 1 {
		overflowReserve = 1
	}

	if fanOut+primaryNeed+overflowReserve+writeBehind > len(segs) {
		return nil, moerr.NewInvalidArgf(ctx, "not enough segments (%d) for %d partitions + %d bucket-table + %d overflow + %d write-behind",
			len(segs), fanOut, primaryNeed, overflowReserve, writeBehind)
	}

	pool := segment.NewPool(segs, writeBehind)

	partitions := make([]*partition.Partition, fanOut)
	victims := victim.New()
	for i := 0; i < fanOut; i++ {
		seg, ok, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, moerr.NewStructuralBug(ctx, "ran out of segments allocating initial partition buffers")
		}
		partitions[i] = partition.New(i, seg, pool)
		victims.Update(i, 1)
	}

	primarySegs := make([]hjtypes.Segment, 0, primaryNeed)
	for i := 0; i < primaryNeed; i++ {
		seg, ok, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, moerr.NewStructuralBug(ctx, "ran out of segments allocating the bucket table")
		}
		primarySegs = append(primarySegs, seg)
	}
	overflowSegs := make([]hjtypes.Segment, 0, overflowReserve)
	for i := 0; i < overflowReserve; i++ {
		seg, ok, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, moerr.NewStructuralBug(ctx, "ran out of segments allocating the overflow arena")
		}
		overflowSegs = append(overflowSegs, seg)
	}

	table, err := bucket.New(ctx, primarySegs, overflowSegs, segmentSize, numBuckets, fanOut, baseHashLevel)
	if err != nil {
		return nil, err
	}

	logutil.Infof("hybridjoin: laid out %d segments into %d partitions, %d buckets, %d write-behind buffers",
		len(segs), fanOut, numBuckets, writeBehind)

	return &Driver{
		cfg:         cfg,
		mm:          mm,
		io:          io,
		segmentSize: segmentSize,
		fanOut:      fanOut,
		level:       baseHashLevel,
		pool:        pool,
		partitions:  partitions,
		table:       table,
		victims:     victims,
	}, nil
}

// Open drains build, inserting every record into the partitioned hash
// table. It may be called at most once.
func (d *Driver) Open(ctx context.Context, build hjtypes.RecordSource) error {
	if d.opened {
		return moerr.NewStructuralBug(ctx, "Open called more than once")
	}
	if build == nil {
		return moerr.NewInvalidArg(ctx, "build", nil)
	}
	d.opened = true

	for {
		rec, ok, err := build.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := d.insertBuild(ctx, rec); err != nil {
			return err
		}
	}
}

func (d *Driver) insertBuild(ctx context.Context, rec hjtypes.Record) error {
	hCode := rec.Key().Hash()
	hBucket := hashfunc.Hash(int32(hCode), d.level)

	pIdx, err := d.table.PartitionOf(ctx, hBucket)
	if err != nil {
		return err
	}
	p := d.partitions[pIdx]
	logutil.Debugf("hybridjoin: insert hash=0x%x bucket=%d -> partition %d", hCode, hBucket, pIdx)

	ptr, ok, err := p.Insert(ctx, rec)
	if err != nil {
		return err
	}
	if !ok {
		if err := d.makeRoom(ctx, p); err != nil {
			return err
		}
		ptr, ok, err = p.Insert(ctx, rec)
		if err != nil {
			return err
		}
		if !ok {
			return moerr.NewIOError(ctx, "record does not fit in a fresh segment")
		}
	}

	if p.IsInMemory() {
		return d.table.InsertInMemory(ctx, hBucket, hCode, ptr)
	}
	return d.table.InsertSpilled(ctx, hBucket, hCode)
}

// makeRoom ensures p can accept another buffer, either by handing it a
// free segment or by spilling a victim partition to create one. If
// spilling happens to pick p itself, p already installed its own
// spilled-mode tail buffer and there is nothing further to do here.
func (d *Driver) makeRoom(ctx context.Context, p *partition.Partition) error {
	seg, ok, err := d.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		if err := d.spill(ctx); err != nil {
			return err
		}
		if !p.IsInMemory() {
			return nil
		}
		seg, ok, err = d.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return moerr.NewStructuralBug(ctx, "no segment available immediately after spilling a partition")
		}
	}
	p.AddBuffer(seg)
	d.victims.Update(p.Index(), p.BlockCounter())
	return nil
}

func (d *Driver) spill(ctx context.Context) error {
	victimIdx, ok := d.victims.Largest()
	if !ok {
		return moerr.NewOOM(ctx)
	}
	p := d.partitions[victimIdx]
	freed, err := p.Spill(ctx, d.io, d.channelEnumerator(), d.pool.WriteBehindQueue())
	if err != nil {
		return err
	}
	d.pool.ReclaimFromSpill(freed)
	d.victims.Remove(victimIdx)
	d.table.DegradePartition(victimIdx)
	logutil.Infof("hybridjoin: spilled partition %d, freed %d segments", victimIdx, freed)
	return nil
}

func (d *Driver) channelEnumerator() hjtypes.ChannelEnumerator {
	if d.enum == nil {
		d.enum = d.io.CreateChannelEnumerator()
	}
	return d.enum
}

// Probe looks up one probe-side record against the build side. For a
// bucket owned by an in-memory partition it returns the exact-equality
// matches; for a bucket owned by a spilled partition it consults the bit
// vector and, on a possible hit, writes the probe record to that
// partition's probe-side spill file for a later out-of-scope pass.
func (d *Driver) Probe(ctx context.Context, rec hjtypes.Record) (ProbeOutcome, error) {
	if !d.opened {
		return ProbeOutcome{}, moerr.NewStructuralBug(ctx, "Probe called before Open")
	}
	hCode := rec.Key().Hash()
	hBucket := hashfunc.Hash(int32(hCode), d.level)

	result, spilled, member, err := d.table.Probe(ctx, hBucket, hCode)
	if err != nil {
		return ProbeOutcome{}, err
	}
	p := d.partitions[result.Partition]

	if !spilled {
		var matches []Record
		for _, ptr := range result.Candidates {
			cand, ok := p.Lookup(ptr)
			if !ok {
				return ProbeOutcome{}, moerr.NewDanglingPointer(ctx, "partition %d: bucket pointer has no live record", p.Index())
			}
			if cand.Key().Equal(rec.Key()) {
				matches = append(matches, cand)
			}
		}
		return ProbeOutcome{Matches: matches}, nil
	}

	if !member {
		return ProbeOutcome{}, nil
	}
	if err := p.WriteProbeRecord(ctx, d.pool, d.io, d.channelEnumerator(), rec); err != nil {
		return ProbeOutcome{}, err
	}
	return ProbeOutcome{Spilled: true}, nil
}

// ProbeAll drains probe, invoking fn once per record with its outcome.
func (d *Driver) ProbeAll(ctx context.Context, probe hjtypes.RecordSource, fn func(rec hjtypes.Record, out ProbeOutcome) error) error {
	for {
		rec, ok, err := probe.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		out, err := d.Probe(ctx, rec)
		if err != nil {
			return err
		}
		if err := fn(rec, out); err != nil {
			return err
		}
	}
}

// Close releases every segment the join instance holds back to the
// memory manager and deletes every spill channel it opened. It is safe
// to call more than once.
func (d *Driver) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	var segs []hjtypes.Segment
	var channels []hjtypes.ChannelID
	for _, p := range d.partitions {
		segs = append(segs, p.Segments()...)
		channels = append(channels, p.Channels()...)
		if err := p.CloseWriters(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	segs = append(segs, d.table.Segments()...)
	segs = append(segs, d.pool.Drain()...)

	d.mm.Release(segs)

	for _, ch := range channels {
		if err := d.io.DeleteChannel(ch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FanOut reports the build-side partition count this instance settled
// on, mainly for tests and diagnostics.
func (d *Driver) FanOut() int { return d.fanOut }

// PartitionRecordCounts reports how many build-side records landed in
// each partition, in partition-index order, for hash-uniformity
// diagnostics and tests. It reflects every inserted record regardless
// of whether the owning partition has since spilled.
func (d *Driver) PartitionRecordCounts() []int64 {
	counts := make([]int64, len(d.partitions))
	for i, p := range d.partitions {
		counts[i] = p.RecordCounter()
	}
	return counts
}
