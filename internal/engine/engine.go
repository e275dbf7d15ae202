// Package engine defines the boundary between the device layer and a native
// buffer allocator. An Engine owns the backing storage; the device layer only
// ever sees opaque generational handles.
package engine

import "errors"

// ErrNoDirectAccess is returned by Bytes when an engine cannot expose a
// zero-copy window over its storage (e.g. GPU-resident buffers).
var ErrNoDirectAccess = errors.New("engine: storage has no direct byte access")

// Handle is an opaque reference to a buffer owned by an Engine.
//
// Handles are generational indices: Slot addresses a slab entry inside the
// engine and Gen detects stale references to reused slots. ID is unique per
// allocation and is never reused, so it doubles as the buffer identity the
// device layer keys its bookkeeping on.
type Handle struct {
	ID   uint64 // unique per allocation, never reused
	Slot uint32 // slab slot inside the engine
	Gen  uint32 // slot generation at allocation time
	Size int    // requested size in bytes
}

// Info describes the physical placement of a buffer.
type Info struct {
	Ptr         int  // byte offset into the engine's backing storage
	Size        int  // requested size in bytes
	Initialized bool // true once the buffer has been written
}

// Stats reports engine-wide memory usage.
type Stats struct {
	TotalAllocatedBytes int // bytes carved for live and pooled buffers
	ActiveBuffers       int // buffers with at least one live reference
}

// Engine is the native allocator contract consumed by the device layer.
//
// All calls are synchronous and complete before returning; the device layer
// never mutates backing storage except through this interface.
type Engine interface {
	// Allocate reserves a buffer of at least size bytes. The returned
	// buffer is zeroed but not marked initialized.
	Allocate(size int) (Handle, error)

	// Release drops one reference to the handle's buffer. The buffer is
	// reclaimed when the last reference is dropped. Returns false for an
	// unknown or already-freed handle, which is benign.
	Release(h Handle) bool

	// CloneHandle adds a reference to the same physical bytes. The
	// returned handle carries the same ID.
	CloneHandle(h Handle) (Handle, error)

	// WriteBytes copies src into the buffer and marks it initialized.
	// len(src) must not exceed the buffer size.
	WriteBytes(h Handle, src []byte) error

	// ReadBytes copies the buffer contents out.
	ReadBytes(h Handle) ([]byte, error)

	// Bytes returns a zero-copy window over the buffer's bytes. The
	// window is only valid until the backing storage relocates; callers
	// must re-check StorageEpoch before trusting it. Engines without
	// host-visible storage return ErrNoDirectAccess.
	Bytes(h Handle) ([]byte, error)

	// BufferInfo reports the buffer's placement and initialization state.
	BufferInfo(h Handle) (Info, error)

	// Compact frees pooled-but-unused regions. Live buffers are never
	// disturbed.
	Compact()

	// MemoryStats reports current usage.
	MemoryStats() Stats

	// StorageEpoch increments every time the backing storage relocates
	// (e.g. the arena grew). Any byte window obtained before a relocation
	// must be treated as invalid.
	StorageEpoch() uint64
}
