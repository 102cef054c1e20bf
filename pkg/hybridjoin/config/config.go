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

// Package config loads the tunables a hybrid join instance can be
// deployed with, in the style of matrixone's TOML-backed server config:
// a plain struct decoded with github.com/BurntSushi/toml, with defaults
// applied for anything the file omits.
package config

import (
	"context"

	"github.com/BurntSushi/toml"

	"github.com/joinlab/hybridjoin/pkg/common/moerr"
	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjconst"
)

// Config holds the deployment-tunable knobs. spec.md's hard-coded
// constants (33 segments, 127 partitions, 100-byte average record,
// 6 write-behind buffers) become overridable defaults here; the join
// driver's constructor still enforces the underlying hard floors (a join
// can never be built with fewer than hjconst.MinSegments segments,
// regardless of what a config file says).
type Config struct {
	// SegmentSize must equal whatever MemoryManager.SegmentSize() the
	// driver is constructed with — Driver.New cross-checks the two and
	// refuses to build a join instance if they disagree, since every
	// downstream sizing formula assumes the memory manager's segments are
	// the size this config believes they are.
	SegmentSize           int `toml:"segment_size"`
	MinSegments           int `toml:"min_segments"`
	MaxPartitionFanOut    int `toml:"max_partition_fan_out"`
	DefaultAvgRecordLen   int `toml:"default_avg_record_len"`
	MaxWriteBehindBuffers int `toml:"max_write_behind_buffers"`
}

// Default returns the configuration spec.md's hard-coded constants imply.
func Default() *Config {
	return &Config{
		SegmentSize:           32 * 1024,
		MinSegments:           hjconst.MinSegments,
		MaxPartitionFanOut:    hjconst.MaxPartitions,
		DefaultAvgRecordLen:   hjconst.DefaultAvgRecordLen,
		MaxWriteBehindBuffers: hjconst.MaxWriteBehindBuffers,
	}
}

// LoadTOML decodes a TOML file into a Config seeded with Default, so a
// file that only overrides one field leaves the rest at spec defaults.
func LoadTOML(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, moerr.NewBadConfig(context.Background(), err, "loading config from %s", path)
	}
	return cfg, nil
}

// Validate enforces the hard floors the join driver can never relax
// regardless of what a config file requests.
func (c *Config) Validate(ctx context.Context) error {
	if c.SegmentSize <= 0 || c.SegmentSize&(c.SegmentSize-1) != 0 {
		return moerr.NewInvalidArg(ctx, "segment_size", c.SegmentSize)
	}
	if c.SegmentSize < 1024 {
		return moerr.NewInvalidArgf(ctx, "segment_size %d is smaller than the fixed bucket size 1024", c.SegmentSize)
	}
	if c.MinSegments < hjconst.MinSegments {
		return moerr.NewInvalidArgf(ctx, "min_segments %d is below the hard floor %d", c.MinSegments, hjconst.MinSegments)
	}
	if c.MaxPartitionFanOut < hjconst.MinPartitions || c.MaxPartitionFanOut > hjconst.MaxPartitions {
		return moerr.NewInvalidArgf(ctx, "max_partition_fan_out %d out of range [%d, %d]", c.MaxPartitionFanOut, hjconst.MinPartitions, hjconst.MaxPartitions)
	}
	if c.DefaultAvgRecordLen <= 0 {
		return moerr.NewInvalidArg(ctx, "default_avg_record_len", c.DefaultAvgRecordLen)
	}
	if c.MaxWriteBehindBuffers < 0 || c.MaxWriteBehindBuffers > hjconst.MaxWriteBehindBuffers {
		return moerr.NewInvalidArgf(ctx, "max_write_behind_buffers %d out of range [0, %d]", c.MaxWriteBehindBuffers, hjconst.MaxWriteBehindBuffers)
	}
	return nil
}
