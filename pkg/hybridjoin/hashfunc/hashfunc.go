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

// Package hashfunc provides the two independent 32-bit hash mixers the
// join engine uses for bucket assignment and partition assignment, ported
// in semantics (not syntax) from HashJoin.java's hash/partition/log2floor
// static helpers.
//
// Both mixers take a level argument that perturbs the mixing constants:
// level 0 reproduces the original Java constants exactly, and higher
// levels give a recursive (second-pass) join an independent-looking mix
// of the same key without needing a second hash algorithm.
package hashfunc

import (
	"context"

	"github.com/joinlab/hybridjoin/pkg/common/moerr"
)

// Hash mixes a 32-bit key hash into a bucket-selection hash. It is the
// Jenkins 32-bit integer (six-shift) mix used by HashJoin.hash, salted by
// level so recursive passes over the same key don't collide with pass 0.
func Hash(code int32, level int) uint32 {
	c := uint32(code)
	salt := uint32(level) * 0x9e3779b9

	c = (c + 0x7ed55d16 + salt) + (c << 12)
	c = (c ^ (0xc761c23c ^ salt)) ^ (c >> 19)
	c = (c + 0x165667b1) + (c << 5)
	c = (c + (0xd3a2646c ^ salt)) ^ (c << 9)
	c = (c + 0xfd7046c5) + (c << 3)
	c = (c ^ (0xb55a4f09 ^ salt)) ^ (c >> 16)
	return c
}

func rotl32(x uint32, n uint) uint32 {
	return (x << n) | (x >> (32 - n))
}

// Partition mixes a 32-bit key hash into a partition-selection hash. It
// reproduces HashJoin.partition's byte-sum-then-Jenkins-final mix, salted
// by level for the same reason as Hash.
func Partition(code int32, level int) uint32 {
	c := uint32(code)
	a := (c & 0xff) + ((c >> 8) & 0xff) + ((c >> 16) & 0xff) + ((c >> 24) & 0xff)

	salt := uint32(level) * 0x85ebca6b
	b := uint32(0x9e3779b1) ^ salt
	cc := (uint32(0x6b43a9b5) ^ (salt * 3))

	cc ^= b
	cc -= rotl32(b, 14)
	a ^= cc
	a -= rotl32(cc, 11)
	b ^= a
	b -= rotl32(a, 25)
	cc ^= b
	cc -= rotl32(b, 16)
	a ^= cc
	a -= rotl32(cc, 4)
	b ^= a
	b -= rotl32(a, 14)
	cc ^= b
	cc -= rotl32(b, 24)
	return cc
}

// Log2Floor returns the position of the highest set bit of v. Calling it
// with v == 0 is a structural bug in the caller (every legitimate use
// computes the floor log of a segment or bucket count, which is never
// zero by construction), so it returns an error rather than a nonsensical
// result.
func Log2Floor(v uint32) (int, error) {
	if v == 0 {
		return 0, moerr.NewStructuralBug(context.Background(), "log2floor of zero")
	}
	log := 0
	for v >>= 1; v != 0; v >>= 1 {
		log++
	}
	return log, nil
}
