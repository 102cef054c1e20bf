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

package hjtest

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/joinlab/hybridjoin/pkg/common/moerr"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"
)

// IOManager is a test-double hjtypes.IOManager that "writes" spilled
// segments into in-memory channel buffers instead of real files,
// dispatching each write onto a bounded ants.Pool the way a production
// implementation would dispatch onto a disk I/O worker pool, grounded on
// pkg/vm/engine/tae/logstore/driver/logservicedriver/driver.go's
// ants.NewPool(n, ants.WithPanicHandler(...)) usage.
type IOManager struct {
	mu       sync.Mutex
	channels map[hjtypes.ChannelID][][]byte
	nextID   uint64
	pool     *ants.Pool
	wg       sync.WaitGroup
}

// NewIOManager creates an IOManager backed by an ants.Pool of the given
// worker count.
func NewIOManager(workers int) (*IOManager, error) {
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v interface{}) { panic(v) }))
	if err != nil {
		return nil, err
	}
	return &IOManager{channels: make(map[hjtypes.ChannelID][][]byte), pool: pool}, nil
}

// Wait blocks until every WriteBlock dispatched so far has been recorded
// into its channel's byte slice, for tests that need to inspect Blocks
// immediately after a build/spill run rather than relying on incidental
// scheduling luck.
func (m *IOManager) Wait() { m.wg.Wait() }

func (m *IOManager) CreateChannelEnumerator() hjtypes.ChannelEnumerator {
	return &channelEnumerator{m: m}
}

type channelEnumerator struct{ m *IOManager }

func (e *channelEnumerator) Next() hjtypes.ChannelID {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	e.m.nextID++
	id := hjtypes.ChannelID(e.m.nextID)
	e.m.channels[id] = nil
	return id
}

func (m *IOManager) CreateBlockChannelWriter(id hjtypes.ChannelID, returnQueue chan<- hjtypes.Segment) hjtypes.ChannelWriter {
	return &channelWriter{m: m, id: id, returnQueue: returnQueue}
}

func (m *IOManager) DeleteChannel(id hjtypes.ChannelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, id)
	return nil
}

// Blocks returns a copy of everything written to channel id, in write
// order, for test assertions. It is only safe to call once every
// dispatched write has drained (tests should wait on the returnQueue).
func (m *IOManager) Blocks(id hjtypes.ChannelID) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.channels[id]))
	copy(out, m.channels[id])
	return out
}

// Close releases the underlying worker pool.
func (m *IOManager) Close() { m.pool.Release() }

type channelWriter struct {
	m           *IOManager
	id          hjtypes.ChannelID
	returnQueue chan<- hjtypes.Segment

	mu     sync.Mutex
	closed bool
}

func (w *channelWriter) WriteBlock(seg hjtypes.Segment) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return moerr.NewChannelClosed(context.Background(), "channel %d is closed", w.id)
	}
	w.mu.Unlock()

	buf := make([]byte, len(seg.Bytes()))
	copy(buf, seg.Bytes())
	w.m.wg.Add(1)
	err := w.m.pool.Submit(func() {
		defer w.m.wg.Done()
		w.m.mu.Lock()
		w.m.channels[w.id] = append(w.m.channels[w.id], buf)
		w.m.mu.Unlock()
		w.returnQueue <- seg
	})
	if err != nil {
		w.m.wg.Done()
	}
	return err
}

func (w *channelWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}
