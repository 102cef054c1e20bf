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

package moerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewInvalidArgCarriesCode(t *testing.T) {
	err := NewInvalidArg(context.Background(), "segmentSize", -1)
	require.Error(t, err)
	require.True(t, IsCode(err, ErrInvalidArg))
	require.False(t, IsCode(err, ErrIO))
}

func TestWrappedCauseIsUnwrappable(t *testing.T) {
	cause := errors.New("disk full")
	err := NewBadConfig(context.Background(), cause, "loading config")
	require.True(t, IsCode(err, ErrBadConfig))
	require.ErrorIs(t, err, cause)
}

func TestIsCodeFollowsCauseChain(t *testing.T) {
	inner := NewIOError(context.Background(), "write failed")
	outer := wrapError(ErrStructuralBug, inner, "spill aborted")
	require.True(t, IsCode(outer, ErrStructuralBug))
	require.True(t, IsCode(outer, ErrIO))
	require.False(t, IsCode(outer, ErrOOM))
}

func TestErrorMessageIncludesCode(t *testing.T) {
	err := NewOOM(context.Background())
	require.Contains(t, err.Error(), "20303")
}
