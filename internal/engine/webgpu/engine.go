//go:build windows

// Package webgpu implements an Engine over GPU buffers using WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// GPU memory has no host-visible window, so Bytes returns ErrNoDirectAccess
// and tracked views are unavailable on this engine; reads and writes go
// through staging-buffer copies.
package webgpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/devmem/internal/engine"
)

const (
	storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
)

// slot is one slab entry for a GPU-resident buffer.
type slot struct {
	gen         uint32
	buffer      *wgpu.Buffer
	size        int
	refs        int
	initialized bool
	live        bool
}

// Engine implements the allocator contract over wgpu buffers with pooled
// reuse.
type Engine struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	pool *bufferPool

	slots     []slot
	freeSlots []uint32

	nextID         uint64
	totalAllocated int
	activeBuffers  int
}

var _ engine.Engine = (*Engine)(nil)

// New creates a WebGPU engine. Returns an error if WebGPU is unavailable.
func New() (e *Engine, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	return &Engine{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    queue,
		pool:     newBufferPool(device, queue),
		nextID:   1,
	}, nil
}

// Close releases pooled buffers and the WebGPU objects.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pool.clear()
	for i := range e.slots {
		if e.slots[i].live && e.slots[i].buffer != nil {
			e.slots[i].buffer.Release()
			e.slots[i].live = false
		}
	}
	e.device.Release()
	e.adapter.Release()
	e.instance.Release()
}

func (e *Engine) takeSlot() uint32 {
	if n := len(e.freeSlots); n > 0 {
		si := e.freeSlots[n-1]
		e.freeSlots = e.freeSlots[:n-1]
		return si
	}
	e.slots = append(e.slots, slot{})
	return uint32(len(e.slots) - 1)
}

func (e *Engine) lookup(h engine.Handle) *slot {
	if int(h.Slot) >= len(e.slots) {
		return nil
	}
	s := &e.slots[h.Slot]
	if !s.live || s.gen != h.Gen {
		return nil
	}
	return s
}

// Allocate reserves a GPU buffer, reusing a pooled one when possible.
func (e *Engine) Allocate(size int) (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if size < 0 {
		return engine.Handle{}, fmt.Errorf("webgpu: negative allocation size %d", size)
	}

	// WebGPU buffer sizes must be 4-byte aligned.
	aligned := uint64((size + 3) &^ 3)
	buffer := e.pool.acquire(aligned)

	si := e.takeSlot()
	s := &e.slots[si]
	s.buffer = buffer
	s.size = size
	s.refs = 1
	s.initialized = false
	s.live = true

	id := e.nextID
	e.nextID++
	e.activeBuffers++
	e.totalAllocated += int(aligned)

	return engine.Handle{ID: id, Slot: si, Gen: s.gen, Size: size}, nil
}

// Release drops one reference; returns the buffer to the pool at zero.
func (e *Engine) Release(h engine.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return false
	}
	s.refs--
	if s.refs > 0 {
		return true
	}

	aligned := uint64((s.size + 3) &^ 3)
	e.pool.release(s.buffer, aligned)
	s.buffer = nil
	s.live = false
	s.gen++
	e.freeSlots = append(e.freeSlots, h.Slot)
	e.activeBuffers--
	e.totalAllocated -= int(aligned)
	return true
}

// CloneHandle adds a reference to the same GPU buffer.
func (e *Engine) CloneHandle(h engine.Handle) (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return engine.Handle{}, fmt.Errorf("webgpu: clone of stale handle (id %d)", h.ID)
	}
	s.refs++
	return h, nil
}

// WriteBytes uploads src into the buffer via the queue.
func (e *Engine) WriteBytes(h engine.Handle, src []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return fmt.Errorf("webgpu: write to stale handle (id %d)", h.ID)
	}
	if len(src) > s.size {
		return fmt.Errorf("webgpu: write of %d bytes exceeds buffer size %d", len(src), s.size)
	}
	e.queue.WriteBuffer(s.buffer, 0, src)
	s.initialized = true
	return nil
}

// ReadBytes copies the buffer back to host memory through a staging buffer,
// since storage buffers can't be mapped directly.
func (e *Engine) ReadBytes(h engine.Handle) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return nil, fmt.Errorf("webgpu: read of stale handle (id %d)", h.ID)
	}

	size := uint64((s.size + 3) &^ 3)
	staging := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := e.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(s.buffer, 0, staging, 0, size)
	cmdBuffer := encoder.Finish(nil)
	e.queue.Submit(cmdBuffer)

	if err := staging.MapAsync(e.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}

	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mapped := unsafe.Slice((*byte)(mappedPtr), size)
	out := make([]byte, s.size)
	copy(out, mapped[:s.size])
	staging.Unmap()

	return out, nil
}

// Bytes always fails: GPU memory has no host-visible window.
func (e *Engine) Bytes(engine.Handle) ([]byte, error) {
	return nil, engine.ErrNoDirectAccess
}

// BufferInfo reports size and initialization state. Ptr is always zero; GPU
// placement is opaque to the host.
func (e *Engine) BufferInfo(h engine.Handle) (engine.Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return engine.Info{}, fmt.Errorf("webgpu: info for stale handle (id %d)", h.ID)
	}
	return engine.Info{Size: s.size, Initialized: s.initialized}, nil
}

// Compact releases pooled GPU buffers.
func (e *Engine) Compact() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool.clear()
}

// MemoryStats reports usage over live buffers.
func (e *Engine) MemoryStats() engine.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return engine.Stats{
		TotalAllocatedBytes: e.totalAllocated,
		ActiveBuffers:       e.activeBuffers,
	}
}

// StorageEpoch is constant: GPU buffers never relocate under the host.
func (e *Engine) StorageEpoch() uint64 {
	return 0
}

// PoolStats reports buffer pool counters for diagnostics.
type PoolStats struct {
	Allocated uint64
	Released  uint64
	Hits      uint64
	Misses    uint64
	Pooled    int
}

// PoolStats returns counters about GPU buffer reuse.
func (e *Engine) PoolStats() PoolStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	allocated, released, hits, misses, pooled := e.pool.stats()
	return PoolStats{
		Allocated: allocated,
		Released:  released,
		Hits:      hits,
		Misses:    misses,
		Pooled:    pooled,
	}
}
