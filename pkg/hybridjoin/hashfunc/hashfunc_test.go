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

package hashfunc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashIsDeterministic(t *testing.T) {
	for _, code := range []int32{0, 1, -1, 12345, 1 << 30} {
		require.Equal(t, Hash(code, 0), Hash(code, 0))
		require.Equal(t, Partition(code, 0), Partition(code, 0))
	}
}

func TestHashLevelsDiverge(t *testing.T) {
	code := int32(424242)
	h0 := Hash(code, 0)
	h1 := Hash(code, 1)
	h2 := Hash(code, 2)
	require.NotEqual(t, h0, h1)
	require.NotEqual(t, h1, h2)
	require.NotEqual(t, h0, h2)
}

func TestPartitionLevelsDiverge(t *testing.T) {
	code := int32(99)
	require.NotEqual(t, Partition(code, 0), Partition(code, 1))
}

func TestHashSpreadAcrossKeys(t *testing.T) {
	seen := make(map[uint32]int)
	for i := int32(0); i < 4096; i++ {
		seen[Hash(i, 0)&0xff]++
	}
	// A reasonable mixer should not pile everything onto one bucket of
	// the low 8 bits; with 4096 keys over 256 buckets every bucket should
	// receive at least one key.
	for bucket, count := range seen {
		require.Greater(t, count, 0, "bucket %d received no keys", bucket)
	}
	require.Len(t, seen, 256)
}

func TestLog2Floor(t *testing.T) {
	cases := map[uint32]int{
		1: 0, 2: 1, 3: 1, 4: 2, 1023: 9, 1024: 10, 1 << 20: 20,
	}
	for v, want := range cases {
		got, err := Log2Floor(v)
		require.NoError(t, err)
		require.Equal(t, want, got, "log2floor(%d)", v)
	}
}

func TestLog2FloorZeroIsStructuralBug(t *testing.T) {
	_, err := Log2Floor(0)
	require.Error(t, err)
}
