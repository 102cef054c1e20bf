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

// Package segment implements the join engine's free-segment pool: a LIFO
// stack of immediately available segments plus a write-behind queue that
// segments freed by a spill flow back through once their async write
// completes.
//
// The pool is deliberately not internally synchronized beyond the
// write-behind channel itself: the driver, partitions, and bucket table
// all run on one goroutine, and the channel is the only structure the
// IOManager's writer goroutines touch concurrently — the same
// ArrayList-plus-LinkedBlockingQueue split HashJoin.java uses, just with
// a Go channel standing in for the blocking queue.
package segment

import (
	"context"

	"github.com/joinlab/hybridjoin/pkg/common/moerr"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"
)

// Pool hands out fixed-size segments and tracks the write-behind reserve
// a spill draws its replacement tail buffer from.
type Pool struct {
	available   []hjtypes.Segment
	writeBehind chan hjtypes.Segment

	// writeBehindAvailable counts segments a spill has already credited
	// (via ReclaimFromSpill) as eventually arriving on writeBehind, but
	// that may not have physically arrived yet. Acquire only draws from
	// the channel while this is positive; a Partition's own tail-buffer
	// requests (TakeWriteBehind) bypass the counter entirely, because by
	// construction they're only made after at least one buffer has
	// already been scheduled for writing.
	writeBehindAvailable int
}

// NewPool builds a pool over segs, setting aside the last
// writeBehindBuffers of them as the initial write-behind reserve — memory
// the I/O layer uses for double-buffering async spill writes rather than
// memory available for ordinary Acquire calls.
func NewPool(segs []hjtypes.Segment, writeBehindBuffers int) *Pool {
	p := &Pool{
		writeBehind: make(chan hjtypes.Segment, len(segs)),
	}
	n := len(segs)
	if writeBehindBuffers > n {
		writeBehindBuffers = n
	}
	cut := n - writeBehindBuffers
	p.available = append(p.available, segs[:cut]...)
	for _, s := range segs[cut:] {
		p.writeBehind <- s
	}
	return p
}

// Acquire returns a free segment. ok is false when none is immediately
// available: the caller should either spill a partition (which credits
// ReclaimFromSpill and unblocks future Acquire calls) or treat this as
// out of memory.
func (p *Pool) Acquire(ctx context.Context) (hjtypes.Segment, bool, error) {
	if n := len(p.available); n > 0 {
		s := p.available[n-1]
		p.available = p.available[:n-1]
		return s, true, nil
	}
	if p.writeBehindAvailable <= 0 {
		return nil, false, nil
	}
	select {
	case s := <-p.writeBehind:
		p.writeBehindAvailable--
		p.drain()
		return s, true, nil
	case <-ctx.Done():
		return nil, false, moerr.NewIOInterrupted(ctx, "interrupted waiting for a write-behind segment")
	}
}

// drain opportunistically moves any write-behind segments that have
// already arrived into the available stack, so later Acquire calls don't
// pay a channel round-trip for segments that are already sitting there.
func (p *Pool) drain() {
	for p.writeBehindAvailable > 0 {
		select {
		case s := <-p.writeBehind:
			p.available = append(p.available, s)
			p.writeBehindAvailable--
		default:
			return
		}
	}
}

// ReclaimFromSpill credits n segments freed by a spill. The segments
// themselves are not yet necessarily in hand — they arrive on the
// write-behind queue as the I/O manager finishes writing each one — but
// the pool can promise them to the next n callers of Acquire.
func (p *Pool) ReclaimFromSpill(n int) {
	p.writeBehindAvailable += n
	p.drain()
}

// WriteBehindQueue exposes the channel a ChannelWriter should return
// completed segments to.
func (p *Pool) WriteBehindQueue() chan<- hjtypes.Segment { return p.writeBehind }

// TakeWriteBehind performs a blocking take directly on the write-behind
// queue, bypassing the availability counter entirely. It is used by a
// spilled Partition to obtain its replacement tail buffer: spilling
// always schedules at least one write before calling this, guaranteeing
// eventual delivery, so gating the take on writeBehindAvailable would
// only add a false negative for a segment that is coming regardless.
func (p *Pool) TakeWriteBehind(ctx context.Context) (hjtypes.Segment, error) {
	select {
	case s := <-p.writeBehind:
		return s, nil
	case <-ctx.Done():
		return nil, moerr.NewIOInterrupted(ctx, "interrupted waiting for a write-behind segment")
	}
}

// Drain returns every segment currently held by the pool — the available
// stack plus anything already sitting in the write-behind queue — for use
// at Close time. It does not wait for in-flight writes still outstanding.
func (p *Pool) Drain() []hjtypes.Segment {
	out := append([]hjtypes.Segment{}, p.available...)
	p.available = nil
	for {
		select {
		case s := <-p.writeBehind:
			out = append(out, s)
		default:
			return out
		}
	}
}
