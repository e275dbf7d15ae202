// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package device

import (
	"github.com/born-ml/devmem/internal/device"
)

// Device is the facade over an engine: allocation policy, shared-buffer
// reference counting, and tracked zero-copy views.
type Device = device.Device

// DeviceData is the host-visible handle to a device buffer. Clone shares
// the physical bytes; Dispose drops a reference; writes swap the handle
// copy-on-write.
type DeviceData = device.DeviceData

// Config controls allocation policy (per-allocation cap, soft compaction
// threshold, hard ceiling).
type Config = device.Config

// View is a zero-copy typed window over a buffer. Every access re-checks
// validity and fails closed once the buffer is disposed, rewritten, or the
// arena has grown.
type View[T device.Elem] = device.View[T]

// Elem is the constraint for view element types.
type Elem = device.Elem

// ElemType is the runtime tag for a view's element interpretation.
type ElemType = device.ElemType

// Supported element types for views.
const (
	Float32 = device.Float32
	Float64 = device.Float64
	Int32   = device.Int32
	Int64   = device.Int64
	Uint8   = device.Uint8
	Bool    = device.Bool
)

// Error taxonomy. See each type for the structured context it carries.
type (
	BoundsError       = device.BoundsError
	AllocationError   = device.AllocationError
	MemoryLimitError  = device.MemoryLimitError
	InvalidStateError = device.InvalidStateError
	ViewInvalidError  = device.ViewInvalidError
	CleanupError      = device.CleanupError
	ViewReason        = device.ViewReason
)

// Reasons a view can become invalid.
const (
	ReasonUnknown   = device.ReasonUnknown
	ReasonDisposed  = device.ReasonDisposed
	ReasonRewritten = device.ReasonRewritten
	ReasonGrew      = device.ReasonGrew
)

// New creates a Device with the default bounded allocation policy.
var New = device.New

// NewWithConfig creates a Device with an explicit allocation policy.
var NewWithConfig = device.NewWithConfig

// DefaultConfig returns the bounded-allocator policy.
var DefaultConfig = device.DefaultConfig

// NewView creates a tracked zero-copy view over the data's buffer.
func NewView[T Elem](data *DeviceData) (*View[T], error) {
	return device.NewView[T](data)
}
