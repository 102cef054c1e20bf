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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjconst"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate(context.Background()))
	require.Equal(t, hjconst.MinSegments, cfg.MinSegments)
	require.Equal(t, hjconst.MaxPartitions, cfg.MaxPartitionFanOut)
}

func TestLoadTOMLOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "join.toml")
	require.NoError(t, os.WriteFile(path, []byte(`max_partition_fan_out = 64`+"\n"), 0o644))

	cfg, err := LoadTOML(path)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.MaxPartitionFanOut)
	require.Equal(t, hjconst.MinSegments, cfg.MinSegments, "fields absent from the file keep their default")
}

func TestLoadTOMLMissingFileFails(t *testing.T) {
	_, err := LoadTOML(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}

func TestLoadTOMLMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o644))

	_, err := LoadTOML(path)
	require.Error(t, err)
}

func TestValidateRejectsNonPowerOfTwoSegmentSize(t *testing.T) {
	cfg := Default()
	cfg.SegmentSize = 3000
	require.Error(t, cfg.Validate(context.Background()))
}

func TestValidateRejectsSegmentSizeBelowBucketSize(t *testing.T) {
	cfg := Default()
	cfg.SegmentSize = 512
	require.Error(t, cfg.Validate(context.Background()))
}

func TestValidateRejectsMinSegmentsBelowHardFloor(t *testing.T) {
	cfg := Default()
	cfg.MinSegments = hjconst.MinSegments - 1
	require.Error(t, cfg.Validate(context.Background()))
}

func TestValidateRejectsFanOutOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.MaxPartitionFanOut = hjconst.MinPartitions - 1
	require.Error(t, cfg.Validate(context.Background()))

	cfg = Default()
	cfg.MaxPartitionFanOut = hjconst.MaxPartitions + 1
	require.Error(t, cfg.Validate(context.Background()))
}

func TestValidateRejectsNonPositiveAvgRecordLen(t *testing.T) {
	cfg := Default()
	cfg.DefaultAvgRecordLen = 0
	require.Error(t, cfg.Validate(context.Background()))
}

func TestValidateRejectsWriteBehindBuffersOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.MaxWriteBehindBuffers = -1
	require.Error(t, cfg.Validate(context.Background()))

	cfg = Default()
	cfg.MaxWriteBehindBuffers = hjconst.MaxWriteBehindBuffers + 1
	require.Error(t, cfg.Validate(context.Background()))
}
