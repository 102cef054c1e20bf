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

// Package partition implements one build-side hash-join partition: an
// ordered list of length-delimited record buffers while in memory, and
// exactly one active write buffer plus a channel writer once spilled.
//
// The in-memory-to-spilled transition is one-way, mirroring
// HashJoin.java's Partition inner class: once a partition spills there is
// no path back, and every subsequent Insert streams straight through to
// its channel writer instead of ever returning "buffer full" to the
// caller.
package partition

import (
	"context"
	"encoding/binary"

	"github.com/joinlab/hybridjoin/pkg/common/moerr"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/segment"
)

// Status is a partition's in-memory/spilled state.
type Status int

const (
	InMemory Status = iota
	Spilled
)

const lengthPrefixBytes = 4

// buffer is a single write-cursor view over one segment: records are
// appended as a 4-byte little-endian length prefix followed by the
// record's marshaled bytes.
type buffer struct {
	seg    hjtypes.Segment
	cursor int
}

func newBuffer(seg hjtypes.Segment) *buffer {
	return &buffer{seg: seg}
}

func (b *buffer) write(rec []byte) (offset int, ok bool) {
	buf := b.seg.Bytes()
	need := lengthPrefixBytes + len(rec)
	if b.cursor+need > len(buf) {
		return 0, false
	}
	off := b.cursor
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(rec)))
	copy(buf[off+lengthPrefixBytes:], rec)
	b.cursor += need
	return off, true
}

func (b *buffer) readAt(offset int) []byte {
	buf := b.seg.Bytes()
	n := binary.LittleEndian.Uint32(buf[offset:])
	return buf[offset+lengthPrefixBytes : offset+lengthPrefixBytes+int(n)]
}

// Partition is one build-side hash bucket of records, in memory or
// spilled to a single sequential channel.
type Partition struct {
	index  int
	pool   *segment.Pool
	status Status

	buffers       []*buffer
	blockCounter  int
	recordCounter int64

	// records maps a record pointer to the original Record value, for
	// in-memory partitions only: it is what lets Probe run an exact key
	// equality check without needing to unmarshal a record's bytes back
	// out of its segment. Spilled partitions never populate it — their
	// buckets never carry pointers, only bit-vector membership.
	records map[uint64]hjtypes.Record

	writer     hjtypes.ChannelWriter
	channel    hjtypes.ChannelID
	hasChannel bool

	probeBuffer  *buffer
	probeWriter  hjtypes.ChannelWriter
	probeChannel hjtypes.ChannelID
	hasProbeChan bool
}

// New creates a partition with a single initial buffer.
func New(index int, initial hjtypes.Segment, pool *segment.Pool) *Partition {
	p := &Partition{
		index:   index,
		pool:    pool,
		status:  InMemory,
		records: make(map[uint64]hjtypes.Record),
	}
	p.AddBuffer(initial)
	return p
}

func (p *Partition) Index() int          { return p.index }
func (p *Partition) IsInMemory() bool    { return p.status == InMemory }
func (p *Partition) BlockCounter() int   { return p.blockCounter }
func (p *Partition) RecordCounter() int64 { return p.recordCounter }

// AddBuffer appends a fresh buffer to an in-memory partition. It is legal
// only while in-memory; a spilled partition's single buffer is managed
// internally by Insert and Spill.
func (p *Partition) AddBuffer(seg hjtypes.Segment) {
	p.buffers = append(p.buffers, newBuffer(seg))
	p.blockCounter++
}

// Insert writes rec into the partition. ok is false only for an
// in-memory partition whose active buffer is full: the caller must
// supply a fresh buffer via AddBuffer (or trigger a spill) and retry. A
// spilled partition never returns ok=false for a record that fits within
// one segment — it rotates its own buffer through the write-behind queue
// as needed.
func (p *Partition) Insert(ctx context.Context, rec hjtypes.Record) (pointer uint64, ok bool, err error) {
	raw := rec.Marshal()

	if p.IsInMemory() {
		idx := len(p.buffers) - 1
		buf := p.buffers[idx]
		off, wrote := buf.write(raw)
		if !wrote {
			return 0, false, nil
		}
		ptr := (uint64(idx) << 32) | uint64(uint32(off))
		p.records[ptr] = rec
		p.recordCounter++
		return ptr, true, nil
	}

	buf := p.buffers[0]
	if _, wrote := buf.write(raw); wrote {
		p.recordCounter++
		return 0, true, nil
	}
	if err := p.rotateSpillBuffer(ctx); err != nil {
		return 0, false, err
	}
	buf = p.buffers[0]
	if _, wrote := buf.write(raw); !wrote {
		return 0, false, moerr.NewIOError(ctx, "record of %d bytes exceeds segment size", len(raw))
	}
	p.recordCounter++
	return 0, true, nil
}

// rotateSpillBuffer streams the current (full) tail buffer to the
// channel writer and replaces it with a fresh segment taken directly
// from the write-behind queue. It mirrors
// Partition.insertIntoBuffer's spilled-case sequencing: spill the old
// buffer first, then block for its replacement, so the partition never
// holds more than one buffer while spilled.
func (p *Partition) rotateSpillBuffer(ctx context.Context) error {
	full := p.buffers[0]
	if err := p.writer.WriteBlock(full.seg); err != nil {
		return err
	}
	seg, err := p.pool.TakeWriteBehind(ctx)
	if err != nil {
		return err
	}
	p.buffers[0] = newBuffer(seg)
	return nil
}

// Lookup resolves a pointer previously returned by Insert back to its
// original Record, for the in-memory equality check during probing.
func (p *Partition) Lookup(ptr uint64) (hjtypes.Record, bool) {
	r, ok := p.records[ptr]
	return r, ok
}

// Spill transitions the partition to spilled state: every currently
// owned buffer is streamed to a fresh channel writer, and one segment is
// retained (drawn from the write-behind queue) as the new tail. freed is
// the number of buffers the caller may credit back to the segment pool
// — one less than the buffer count, since the retained tail is not free.
//
// Spill requires at least two buffers, matching spec's precondition that
// only genuinely large in-memory partitions are eligible as spill
// victims; a one-buffer partition has nothing to gain from spilling.
func (p *Partition) Spill(ctx context.Context, io hjtypes.IOManager, enum hjtypes.ChannelEnumerator, returnQueue chan<- hjtypes.Segment) (freed int, err error) {
	if !p.IsInMemory() {
		return 0, moerr.NewStructuralBug(ctx, "partition %d is already spilled", p.index)
	}
	if p.blockCounter < 2 {
		return 0, moerr.NewStructuralBug(ctx, "partition %d has only %d buffer(s), too few to spill", p.index, p.blockCounter)
	}

	// hasChannel flips true here, before p.status ever becomes Spilled, so
	// a WriteBlock failure partway through the loop below still leaves
	// this channel in Channels() for the driver to delete on abort —
	// mirroring WriteProbeRecord's hasProbeChan for the same reason.
	p.channel = enum.Next()
	p.hasChannel = true
	p.writer = io.CreateBlockChannelWriter(p.channel, returnQueue)

	numBlocks := len(p.buffers)
	for _, buf := range p.buffers {
		if err := p.writer.WriteBlock(buf.seg); err != nil {
			return 0, err
		}
	}
	p.buffers = p.buffers[:0]
	p.records = nil

	seg, err := p.pool.TakeWriteBehind(ctx)
	if err != nil {
		return 0, err
	}
	p.buffers = append(p.buffers, newBuffer(seg))
	p.status = Spilled

	return numBlocks - 1, nil
}

// WriteProbeRecord appends a probe-side record to this partition's
// probe-side spill file, opening it lazily on first use. It is only
// meaningful for a spilled partition: the bit vector said the probe key
// might match something in this partition's build-side spill file, and
// the actual join between the two files is a later pass outside this
// engine's scope.
func (p *Partition) WriteProbeRecord(ctx context.Context, pool *segment.Pool, io hjtypes.IOManager, enum hjtypes.ChannelEnumerator, rec hjtypes.Record) error {
	if p.probeBuffer == nil {
		seg, ok, err := pool.Acquire(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return moerr.NewOOM(ctx)
		}
		p.probeChannel = enum.Next()
		p.hasProbeChan = true
		p.probeWriter = io.CreateBlockChannelWriter(p.probeChannel, pool.WriteBehindQueue())
		p.probeBuffer = newBuffer(seg)
	}

	raw := rec.Marshal()
	if _, wrote := p.probeBuffer.write(raw); wrote {
		return nil
	}
	if err := p.probeWriter.WriteBlock(p.probeBuffer.seg); err != nil {
		return err
	}
	seg, ok, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return moerr.NewOOM(ctx)
	}
	p.probeBuffer = newBuffer(seg)
	if _, wrote := p.probeBuffer.write(raw); !wrote {
		return moerr.NewIOError(ctx, "probe record of %d bytes exceeds segment size", len(raw))
	}
	return nil
}

// Segments returns every segment this partition currently holds, for use
// when the driver releases all memory back to the MemoryManager at Close.
func (p *Partition) Segments() []hjtypes.Segment {
	var out []hjtypes.Segment
	for _, b := range p.buffers {
		out = append(out, b.seg)
	}
	if p.probeBuffer != nil {
		out = append(out, p.probeBuffer.seg)
	}
	return out
}

// Channels returns every IOManager channel this partition opened, for
// the driver to delete at Close.
func (p *Partition) Channels() []hjtypes.ChannelID {
	var out []hjtypes.ChannelID
	if p.hasChannel {
		out = append(out, p.channel)
	}
	if p.hasProbeChan {
		out = append(out, p.probeChannel)
	}
	return out
}

// CloseWriters closes any channel writers this partition opened.
func (p *Partition) CloseWriters() error {
	var firstErr error
	if p.writer != nil {
		if err := p.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.probeWriter != nil {
		if err := p.probeWriter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReadAt dereferences a pointer returned by Insert while this partition
// was in memory, returning the raw marshaled record bytes stored at
// that (bufferIndex, byteOffset) location.
func (p *Partition) ReadAt(ctx context.Context, ptr uint64) ([]byte, error) {
	bufIdx := int(ptr >> 32)
	off := int(uint32(ptr))
	if bufIdx < 0 || bufIdx >= len(p.buffers) {
		return nil, moerr.NewDanglingPointer(ctx, "partition %d: pointer references buffer %d of %d", p.index, bufIdx, len(p.buffers))
	}
	return p.buffers[bufIdx].readAt(off), nil
}
