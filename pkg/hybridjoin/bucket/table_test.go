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

package bucket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joinlab/hybridjoin/internal/hjtest"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjconst"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"
)

const testSegmentSize = 4096 // 4 buckets per segment

func makeSegs(n int) []hjtypes.Segment {
	segs := make([]hjtypes.Segment, n)
	for i := range segs {
		segs[i] = hjtest.NewSegment(testSegmentSize)
	}
	return segs
}

func newTestTable(t *testing.T, numBuckets, fanOut int) *Table {
	t.Helper()
	perSeg := testSegmentSize / hjconst.HashBucketSize
	primaryNeed := (numBuckets + perSeg - 1) / perSeg
	tbl, err := New(context.Background(), makeSegs(primaryNeed), makeSegs(4), testSegmentSize, numBuckets, fanOut, 0)
	require.NoError(t, err)
	return tbl
}

func TestPartitionAssignmentIsStableAcrossCalls(t *testing.T) {
	tbl := newTestTable(t, 64, 8)
	for i := 0; i < 64; i++ {
		p1 := int(tbl.partitionOf[i])
		p2 := int(tbl.partitionOf[i])
		require.Equal(t, p1, p2)
		require.GreaterOrEqual(t, p1, 0)
		require.Less(t, p1, 8)
	}
}

func TestEveryPartitionOwnsAtLeastOneBucket(t *testing.T) {
	tbl := newTestTable(t, 256, 8)
	for p := 0; p < 8; p++ {
		require.NotEmpty(t, tbl.partitionBucket[p], "partition %d owns no buckets", p)
	}
}

func TestInsertAndProbeInMemoryFindsExactHashMatch(t *testing.T) {
	tbl := newTestTable(t, 64, 4)
	hBucket := uint32(5)
	require.NoError(t, tbl.InsertInMemory(context.Background(), hBucket, 111, 0xAAAA))
	require.NoError(t, tbl.InsertInMemory(context.Background(), hBucket, 222, 0xBBBB))

	res, spilled, _, err := tbl.Probe(context.Background(), hBucket, 111)
	require.NoError(t, err)
	require.False(t, spilled)
	require.Equal(t, []uint64{0xAAAA}, res.Candidates)

	res, spilled, _, err = tbl.Probe(context.Background(), hBucket, 999)
	require.NoError(t, err)
	require.False(t, spilled)
	require.Empty(t, res.Candidates)
}

func TestOverflowChainingHandlesMoreEntriesThanOneBucket(t *testing.T) {
	tbl := newTestTable(t, 16, 4)
	hBucket := uint32(3)

	total := hjconst.MaxEntriesPerBucket*2 + 5
	for i := 0; i < total; i++ {
		require.NoError(t, tbl.InsertInMemory(context.Background(), hBucket, uint32(i), uint64(i)))
	}

	for i := 0; i < total; i++ {
		res, spilled, _, err := tbl.Probe(context.Background(), hBucket, uint32(i))
		require.NoError(t, err)
		require.False(t, spilled)
		require.Contains(t, res.Candidates, uint64(i))
	}
}

func TestDegradePartitionPreservesMembershipForExistingEntries(t *testing.T) {
	tbl := newTestTable(t, 64, 4)

	// Find a bucket owned by partition 0.
	var hBucket uint32 = ^uint32(0)
	for i, p := range tbl.partitionOf {
		if p == 0 {
			hBucket = uint32(i)
			break
		}
	}
	require.NotEqual(t, ^uint32(0), hBucket)

	require.NoError(t, tbl.InsertInMemory(context.Background(), hBucket, 777, 0x1))

	tbl.DegradePartition(0)

	_, spilled, member, err := tbl.Probe(context.Background(), hBucket, 777)
	require.NoError(t, err)
	require.True(t, spilled)
	require.True(t, member, "degrading must preserve membership of records already in the bucket")
}

func TestInsertSpilledSetsBitDetectedByProbe(t *testing.T) {
	tbl := newTestTable(t, 64, 4)
	var hBucket uint32
	for i, p := range tbl.partitionOf {
		if p == 1 {
			hBucket = uint32(i)
			break
		}
	}
	tbl.DegradePartition(1)

	require.NoError(t, tbl.InsertSpilled(context.Background(), hBucket, 321))

	_, spilled, member, err := tbl.Probe(context.Background(), hBucket, 321)
	require.NoError(t, err)
	require.True(t, spilled)
	require.True(t, member)

	_, spilled, member, err = tbl.Probe(context.Background(), hBucket, 654)
	require.NoError(t, err)
	require.True(t, spilled)
	require.False(t, member)
}

func TestInsertSpilledOnUndegradedBucketIsStructuralBug(t *testing.T) {
	tbl := newTestTable(t, 64, 4)
	err := tbl.InsertSpilled(context.Background(), 7, 42)
	require.Error(t, err)
}
