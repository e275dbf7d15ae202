// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

//go:build windows

// Package webgpu provides an engine over GPU-resident buffers using WebGPU.
// Tracked views are unavailable here: GPU memory has no host-visible window,
// so reads and writes go through staging-buffer copies.
package webgpu

import (
	"github.com/born-ml/devmem/internal/engine/webgpu"
)

// Engine is the WebGPU-backed allocator.
type Engine = webgpu.Engine

// PoolStats reports buffer pool counters for diagnostics.
type PoolStats = webgpu.PoolStats

// New creates a WebGPU engine. Returns an error if WebGPU is unavailable.
var New = webgpu.New
