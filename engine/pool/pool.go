// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pool provides the default in-process engine: a size-classed
// buffer pool carving allocations out of a growable arena.
package pool

import (
	"github.com/born-ml/devmem/internal/engine/pool"
)

// Engine is the pooled arena allocator.
type Engine = pool.Engine

// Config controls arena sizing.
type Config = pool.Config

// PoolStats reports per-class pool occupancy.
type PoolStats = pool.PoolStats

// New creates a pooled engine with default sizing (1MB initial, 3GB max).
var New = pool.New

// NewWithConfig creates a pooled engine with explicit sizing.
var NewWithConfig = pool.NewWithConfig

// DefaultConfig returns the sizing used by New.
var DefaultConfig = pool.DefaultConfig
