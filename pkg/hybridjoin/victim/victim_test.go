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

package victim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLargestPicksHighestBlockCount(t *testing.T) {
	idx := New()
	idx.Update(0, 2)
	idx.Update(1, 5)
	idx.Update(2, 3)

	p, ok := idx.Largest()
	require.True(t, ok)
	require.Equal(t, 1, p)
}

func TestLargestBreaksTiesByHigherPartitionIndex(t *testing.T) {
	idx := New()
	idx.Update(0, 4)
	idx.Update(3, 4)
	idx.Update(1, 4)

	p, ok := idx.Largest()
	require.True(t, ok)
	require.Equal(t, 3, p)
}

func TestLargestRequiresAtLeastTwoBlocks(t *testing.T) {
	idx := New()
	idx.Update(0, 1)
	_, ok := idx.Largest()
	require.False(t, ok, "a single-buffer partition is never a profitable spill victim")

	idx.Update(0, 2)
	p, ok := idx.Largest()
	require.True(t, ok)
	require.Equal(t, 0, p)
}

func TestUpdateReplacesPriorBlockCount(t *testing.T) {
	idx := New()
	idx.Update(0, 2)
	idx.Update(0, 10)
	require.Equal(t, 1, idx.Len())

	p, ok := idx.Largest()
	require.True(t, ok)
	require.Equal(t, 0, p)
}

func TestRemoveExcludesPartitionPermanently(t *testing.T) {
	idx := New()
	idx.Update(0, 9)
	idx.Update(1, 2)
	idx.Remove(0)

	require.Equal(t, 1, idx.Len())
	p, ok := idx.Largest()
	require.True(t, ok)
	require.Equal(t, 1, p)
}

func TestLargestOnEmptyIndex(t *testing.T) {
	idx := New()
	_, ok := idx.Largest()
	require.False(t, ok)
	require.Equal(t, 0, idx.Len())
}

func TestRemoveOfUntrackedPartitionIsNoop(t *testing.T) {
	idx := New()
	idx.Update(0, 5)
	idx.Remove(99)
	require.Equal(t, 1, idx.Len())
}
