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

package logutil

import (
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfofRoutesThroughInstalledLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	stub := gostub.Stub(&sugar, zap.New(core).Sugar())
	defer stub.Reset()

	Infof("layout: %d partitions", 10)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Message, "10 partitions")
}

func TestSetLoggerInstallsNonNilLogger(t *testing.T) {
	stub := gostub.Stub(&sugar, sugar)
	defer stub.Reset()

	replacement := zap.NewExample().Sugar()
	SetLogger(replacement)
	require.Same(t, replacement, sugar)
}

func TestSetLoggerIgnoresNil(t *testing.T) {
	stub := gostub.Stub(&sugar, zap.NewExample().Sugar())
	defer stub.Reset()

	before := sugar
	SetLogger(nil)
	require.Same(t, before, sugar)
}
