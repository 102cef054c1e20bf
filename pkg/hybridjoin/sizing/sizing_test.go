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

package sizing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjconst"
)

func TestWriteBehindBufferCountClampsToRange(t *testing.T) {
	require.Equal(t, 0, WriteBehindBufferCount(1, 6))
	require.GreaterOrEqual(t, WriteBehindBufferCount(1<<20, 6), 0)
	require.LessOrEqual(t, WriteBehindBufferCount(1<<20, 6), 6)
	require.Equal(t, 2, WriteBehindBufferCount(1<<20, 2), "explicit max should still clamp a larger computed value")
}

func TestPartitionFanOutClampsToRange(t *testing.T) {
	require.Equal(t, hjconst.MinPartitions, PartitionFanOut(1, hjconst.MinPartitions, hjconst.MaxPartitions))
	require.Equal(t, hjconst.MaxPartitions, PartitionFanOut(1<<20, hjconst.MinPartitions, hjconst.MaxPartitions))
	require.Equal(t, 100, PartitionFanOut(1000, hjconst.MinPartitions, hjconst.MaxPartitions))
}

func TestInitialBucketCountIsPowerOfTwo(t *testing.T) {
	for _, numSegments := range []int{33, 64, 500, 4096} {
		n := InitialBucketCount(numSegments, 32*1024, hjconst.DefaultAvgRecordLen)
		require.Greater(t, n, 0)
		require.Zero(t, n&(n-1), "InitialBucketCount(%d) = %d is not a power of two", numSegments, n)
	}
}

func TestInitialBucketCountGrowsWithSegments(t *testing.T) {
	small := InitialBucketCount(33, 32*1024, hjconst.DefaultAvgRecordLen)
	large := InitialBucketCount(4096, 32*1024, hjconst.DefaultAvgRecordLen)
	require.Greater(t, large, small)
}

func TestInitialBucketCountFallsBackOnZeroAvgRecordLen(t *testing.T) {
	withDefault := InitialBucketCount(200, 32*1024, hjconst.DefaultAvgRecordLen)
	withZero := InitialBucketCount(200, 32*1024, 0)
	require.Equal(t, withDefault, withZero)
}
