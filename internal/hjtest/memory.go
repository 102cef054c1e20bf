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

// Package hjtest provides test-double implementations of the join
// engine's external collaborators (MemoryManager, IOManager, RecordSource)
// for use in package tests, the way pkg/sql/colexec/unittest supplies
// stand-in segments for operator tests in the teacher package.
package hjtest

import "github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"

// Segment is a plain heap-backed hjtypes.Segment.
type Segment struct {
	buf []byte
}

// NewSegment allocates a segment of the given size.
func NewSegment(size int) *Segment { return &Segment{buf: make([]byte, size)} }

func (s *Segment) Bytes() []byte { return s.buf }

// MemoryManager is a fixed-pool hjtypes.MemoryManager: it hands out a
// predetermined set of segments once and records what gets released.
type MemoryManager struct {
	size     int
	segs     []hjtypes.Segment
	released []hjtypes.Segment
}

// NewMemoryManager allocates numSegments segments of segmentSize bytes.
func NewMemoryManager(numSegments, segmentSize int) *MemoryManager {
	segs := make([]hjtypes.Segment, numSegments)
	for i := range segs {
		segs[i] = NewSegment(segmentSize)
	}
	return &MemoryManager{size: segmentSize, segs: segs}
}

func (m *MemoryManager) SegmentSize() int { return m.size }

func (m *MemoryManager) Segments() []hjtypes.Segment { return m.segs }

func (m *MemoryManager) Release(segs []hjtypes.Segment) {
	m.released = append(m.released, segs...)
}

// Released returns every segment handed to Release so far, for
// segment-conservation assertions.
func (m *MemoryManager) Released() []hjtypes.Segment { return m.released }
