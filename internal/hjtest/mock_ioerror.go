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

// Code generated in the style of mockgen for one narrow interface, by
// hand, since the pack's retrieved gomock is a test dependency only and
// there is no generator to run: kept intentionally small (IOManager
// alone) rather than mocking the whole collaborator surface.
package hjtest

import (
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/joinlab/hybridjoin/pkg/hybridjoin/hjtypes"
)

// MockIOManager is a gomock mock of hjtypes.IOManager, for fault
// injection: tests pair CreateBlockChannelWriter with a FailingWriter to
// simulate a transient I/O failure partway through a spill.
type MockIOManager struct {
	ctrl     *gomock.Controller
	recorder *MockIOManagerRecorder
}

type MockIOManagerRecorder struct {
	mock *MockIOManager
}

func NewMockIOManager(ctrl *gomock.Controller) *MockIOManager {
	m := &MockIOManager{ctrl: ctrl}
	m.recorder = &MockIOManagerRecorder{mock: m}
	return m
}

func (m *MockIOManager) EXPECT() *MockIOManagerRecorder { return m.recorder }

func (m *MockIOManager) CreateChannelEnumerator() hjtypes.ChannelEnumerator {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateChannelEnumerator")
	ret0, _ := ret[0].(hjtypes.ChannelEnumerator)
	return ret0
}

func (mr *MockIOManagerRecorder) CreateChannelEnumerator() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateChannelEnumerator", reflect.TypeOf((*MockIOManager)(nil).CreateChannelEnumerator))
}

func (m *MockIOManager) CreateBlockChannelWriter(id hjtypes.ChannelID, returnQueue chan<- hjtypes.Segment) hjtypes.ChannelWriter {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateBlockChannelWriter", id, returnQueue)
	ret0, _ := ret[0].(hjtypes.ChannelWriter)
	return ret0
}

func (mr *MockIOManagerRecorder) CreateBlockChannelWriter(id, returnQueue interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateBlockChannelWriter", reflect.TypeOf((*MockIOManager)(nil).CreateBlockChannelWriter), id, returnQueue)
}

func (m *MockIOManager) DeleteChannel(id hjtypes.ChannelID) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteChannel", id)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockIOManagerRecorder) DeleteChannel(id interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteChannel", reflect.TypeOf((*MockIOManager)(nil).DeleteChannel), id)
}

// FailingWriter is a hjtypes.ChannelWriter whose WriteBlock always
// returns Err.
type FailingWriter struct {
	Err error
}

func (w *FailingWriter) WriteBlock(seg hjtypes.Segment) error { return w.Err }
func (w *FailingWriter) Close() error                         { return nil }

// SeqEnumerator hands out sequential channel IDs starting at 1, for
// pairing with a MockIOManager expectation that doesn't care about
// specific IDs.
type SeqEnumerator struct{ next uint64 }

func (e *SeqEnumerator) Next() hjtypes.ChannelID {
	e.next++
	return hjtypes.ChannelID(e.next)
}
