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

// Package sizing carries the derived-constant math HashJoin.java computes
// once at construction time: how many segments to set aside for
// write-behind, how many partitions to fan out into, and how many buckets
// the initial table needs. Each function is a pure function of the inputs
// spec.md names, so the join driver's constructor can be a thin
// orchestration layer over these.
package sizing

import (
	"math"

	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjconst"
)

// WriteBehindBufferCount returns how many segments to set aside as the
// write-behind reserve for a table built from numSegments segments,
// mirroring HashJoin.getNumWriteBehindBuffers: roughly log base 4 of the
// segment count, minus a constant, clamped to [0, max].
func WriteBehindBufferCount(numSegments, max int) int {
	if max < 0 {
		max = hjconst.MaxWriteBehindBuffers
	}
	v := int(math.Ceil(math.Log(float64(numSegments))/math.Log(4) - 1.5))
	if v < 0 {
		v = 0
	}
	if v > max {
		v = max
	}
	return v
}

// PartitionFanOut returns the number of build-side partitions to create,
// mirroring HashJoin.getPartitioningFanOutNoEstimates: one partition per
// ten segments, clamped to [minFanOut, maxFanOut].
func PartitionFanOut(numSegments, minFanOut, maxFanOut int) int {
	if minFanOut <= 0 {
		minFanOut = hjconst.MinPartitions
	}
	if maxFanOut <= 0 {
		maxFanOut = hjconst.MaxPartitions
	}
	v := numSegments / 10
	if v < minFanOut {
		v = minFanOut
	}
	if v > maxFanOut {
		v = maxFanOut
	}
	return v
}

func nextPow2(v int64) int64 {
	if v < 1 {
		v = 1
	}
	p := int64(1)
	for p < v {
		p <<= 1
	}
	return p
}

// InitialBucketCount returns the number of buckets to allocate up front,
// mirroring HashJoin.getInitialTableSize's estimate of how many records
// the segments can hold, but rounded up to a power of two: the bucket
// table resolves a bucket by masking a hash to its low log2(N) bits, so
// N must be a power of two.
func InitialBucketCount(numSegments, segmentSize, avgRecordLen int) int {
	if avgRecordLen <= 0 {
		avgRecordLen = hjconst.DefaultAvgRecordLen
	}
	totalBytes := int64(segmentSize) * int64(numSegments)
	recordsStorable := totalBytes / int64(avgRecordLen+hjconst.RecordOverheadBytes)
	bucketBytes := recordsStorable * int64(hjconst.RecordOverheadBytes)
	numBuckets := bucketBytes/(2*int64(hjconst.HashBucketSize)) + 1
	return int(nextPow2(numBuckets))
}
