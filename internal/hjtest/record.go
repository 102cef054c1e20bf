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
	"encoding/binary"

	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"
)

// IntKey is a Key over a plain int64, hashed with a cheap avalanche mix
// (MurmurHash3's fmix64 finalizer) so tests get a realistic-looking hash
// distribution without pulling in a real hashing library.
type IntKey int64

func (k IntKey) Hash() uint32 {
	v := uint64(k)
	v ^= v >> 33
	v *= 0xff51afd7ed558ccd
	v ^= v >> 33
	v *= 0xc4ceb9fe1a85ec53
	v ^= v >> 33
	return uint32(v)
}

func (k IntKey) Equal(other hjtypes.Key) bool {
	o, ok := other.(IntKey)
	return ok && k == o
}

// KVRecord pairs an IntKey with an opaque value payload.
type KVRecord struct {
	K IntKey
	V []byte
}

func (r KVRecord) Key() hjtypes.Key { return r.K }

func (r KVRecord) Marshal() []byte {
	buf := make([]byte, 8+len(r.V))
	binary.LittleEndian.PutUint64(buf, uint64(r.K))
	copy(buf[8:], r.V)
	return buf
}

// SliceSource is a RecordSource over an in-memory slice.
type SliceSource struct {
	recs []hjtypes.Record
	pos  int
}

// NewSliceSource wraps recs as a RecordSource.
func NewSliceSource(recs []hjtypes.Record) *SliceSource {
	return &SliceSource{recs: recs}
}

func (s *SliceSource) Next(ctx context.Context) (hjtypes.Record, bool, error) {
	if s.pos >= len(s.recs) {
		return nil, false, nil
	}
	r := s.recs[s.pos]
	s.pos++
	return r, true, nil
}
