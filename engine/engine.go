// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine exposes the native allocator contract consumed by the
// device layer. Implementations live in engine/pool (in-process arena) and
// engine/webgpu (GPU-resident buffers, Windows only).
package engine

import (
	"github.com/born-ml/devmem/internal/engine"
)

// Engine is the allocator boundary: allocate, release, clone, read, write,
// compact.
type Engine = engine.Engine

// Handle is an opaque generational reference to a buffer.
type Handle = engine.Handle

// Info describes a buffer's placement and initialization state.
type Info = engine.Info

// Stats reports engine-wide memory usage.
type Stats = engine.Stats

// ErrNoDirectAccess is returned by Engine.Bytes when storage has no
// host-visible window (e.g. GPU memory).
var ErrNoDirectAccess = engine.ErrNoDirectAccess
