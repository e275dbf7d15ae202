// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device provides buffer lifetime and zero-copy view safety over a
// native memory engine.
//
// # Overview
//
// The device layer sits between host code and an Engine that owns a linear
// memory arena. It guarantees memory safety over that shared, manually
// managed region:
//   - Shared ownership: DeviceData clones alias one physical buffer; the
//     buffer is reclaimed when the last holder disposes.
//   - Copy-on-write: writing through one DeviceData swaps it to a fresh
//     buffer, leaving clones untouched.
//   - Tracked views: zero-copy typed windows re-check validity on every
//     access and fail closed once their buffer is disposed, rewritten, or
//     the arena relocates.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/devmem/device"
//	    "github.com/born-ml/devmem/engine/pool"
//	)
//
//	func main() {
//	    dev := device.New(pool.New())
//
//	    data, _ := dev.CreateData(1024)
//
//	    v, _ := device.NewView[float32](data)
//	    v.Set(0, 42)
//	    x, _ := v.Get(0) // 42
//
//	    data.Dispose()
//	    _, err := v.Get(0) // ViewInvalidError: buffer disposed
//	}
//
// # Error Taxonomy
//
// Allocation-path failures (BoundsError, AllocationError, MemoryLimitError)
// propagate to the caller with structured context. Disposal never fails the
// caller: cleanup problems are logged. View accesses on an invalid view fail
// with ViewInvalidError on every access, forever.
package device
