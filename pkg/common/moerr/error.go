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

// Package moerr defines the numeric error taxonomy used throughout the
// hybrid join engine, in the style of matrixone's pkg/common/moerr:
// every error carries a stable numeric code and an optional cause chain,
// instead of being distinguished only by its message text.
//
// Codes are grouped by kind (203xx argument and resource, 204xx I/O,
// 205xx internal/structural); IsCode tests an error, including its cause
// chain, for one exact code.
package moerr

import (
	"context"
	"fmt"
)

// Code groups mirror the three error kinds the join engine distinguishes:
// bad arguments the caller must fix, transient I/O failures a caller may
// retry or abort on, and structural bugs that indicate a broken invariant.
const (
	// OK is never returned; it exists so the zero value of Code is not a
	// silently valid error group.
	OK uint16 = 0

	ErrInvalidArg      uint16 = 20301
	ErrBadConfig       uint16 = 20302
	ErrOOM             uint16 = 20303

	ErrIO              uint16 = 20401
	ErrIOInterrupted   uint16 = 20402
	ErrChannelClosed   uint16 = 20403

	ErrInternal        uint16 = 20501
	ErrCorruptBucket   uint16 = 20502
	ErrDanglingPointer uint16 = 20503
	ErrStructuralBug   uint16 = 20504
)

// Error is the concrete error type every constructor in this package
// returns. It implements error and Unwrap so callers can use errors.Is /
// errors.As against a wrapped cause.
type Error struct {
	code    uint16
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("moerr %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("moerr %d: %s", e.code, e.message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Code returns the numeric error code, for callers that need to log or
// report it without stringifying the whole error.
func (e *Error) Code() uint16 { return e.code }

func newError(code uint16, format string, args ...interface{}) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func wrapError(code uint16, cause error, format string, args ...interface{}) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...), cause: cause}
}

// NewInvalidArg reports a constructor argument that violates a documented
// precondition. ctx is accepted for parity with the rest of the call
// surface (trace propagation in a full deployment) but is not otherwise
// consulted.
func NewInvalidArg(ctx context.Context, arg string, value interface{}) *Error {
	return newError(ErrInvalidArg, "invalid argument %s: %v", arg, value)
}

// NewInvalidArgf reports an invalid-argument condition that doesn't map
// cleanly onto a single named argument/value pair.
func NewInvalidArgf(ctx context.Context, format string, args ...interface{}) *Error {
	return newError(ErrInvalidArg, format, args...)
}

// NewBadConfig reports a configuration value that failed validation,
// independent of the in-code constructor arguments.
func NewBadConfig(ctx context.Context, cause error, format string, args ...interface{}) *Error {
	return wrapError(ErrBadConfig, cause, format, args...)
}

// NewOOM reports that the memory manager has no more segments to give and
// no partition qualifies for spilling. The bucket table also returns it
// when its overflow arena has no bucket left; the message text is the same
// in both cases.
func NewOOM(ctx context.Context) *Error {
	return newError(ErrOOM, "no free segment available and no partition qualifies for spilling")
}

// NewInternalError is the general-purpose constructor for internal
// failures that don't fit a more specific code, mirroring
// moerr.NewInternalError(ctx, msg, args...) in the teacher package.
func NewInternalError(ctx context.Context, format string, args ...interface{}) *Error {
	return newError(ErrInternal, format, args...)
}

// NewInternalErrorNoCtx is the ctx-free variant used by call sites that
// have no context.Context in scope, matching the NoCtx convention used by
// pkg/sql/colexec/group/spill_manager.go.
func NewInternalErrorNoCtx(format string, args ...interface{}) *Error {
	return newError(ErrInternal, format, args...)
}

// NewInternalErrorNoCtxf is an alias kept for call sites migrated from the
// f-suffixed spelling; both forms are equivalent.
func NewInternalErrorNoCtxf(format string, args ...interface{}) *Error {
	return newError(ErrInternal, format, args...)
}

// NewIOError reports a transient I/O failure surfaced by the IOManager.
func NewIOError(ctx context.Context, format string, args ...interface{}) *Error {
	return newError(ErrIO, format, args...)
}

// NewIOInterrupted reports that a blocking take on the write-behind queue
// (or a probe-side spill write) was aborted via context cancellation.
func NewIOInterrupted(ctx context.Context, format string, args ...interface{}) *Error {
	return newError(ErrIOInterrupted, format, args...)
}

// NewChannelClosed reports that a channel writer was used after it was
// closed.
func NewChannelClosed(ctx context.Context, format string, args ...interface{}) *Error {
	return newError(ErrChannelClosed, format, args...)
}

// NewCorruptBucket reports that a bucket's header bytes fail a sanity
// check (out-of-range partition byte, unrecognized status byte, or an
// element count above the per-bucket capacity).
func NewCorruptBucket(ctx context.Context, format string, args ...interface{}) *Error {
	return newError(ErrCorruptBucket, format, args...)
}

// NewDanglingPointer reports that a bucket entry's record pointer no
// longer resolves to a live record in its owning partition.
func NewDanglingPointer(ctx context.Context, format string, args ...interface{}) *Error {
	return newError(ErrDanglingPointer, format, args...)
}

// NewStructuralBug reports a broken invariant that should be impossible
// under correct driver logic (segment conservation, spill preconditions,
// etc): the join must abort rather than continue on corrupted state.
func NewStructuralBug(ctx context.Context, format string, args ...interface{}) *Error {
	return newError(ErrStructuralBug, format, args...)
}

// IsCode reports whether err is a *Error carrying the given code,
// unwrapping through any cause chain the way errors.Is would.
func IsCode(err error, code uint16) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.code == code {
				return true
			}
			err = e.cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
