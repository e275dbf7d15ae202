package device

import (
	"github.com/born-ml/devmem/internal/engine"
)

// DeviceData is the host-visible handle to a device buffer.
//
// Instances share physical buffers through the device's buffer table: Clone
// adds a reference to the same bytes, Dispose drops one, and the buffer is
// reclaimed when the last holder disposes. Lifecycle is Live -> Disposed,
// terminal; every operation on a disposed instance fails with
// InvalidStateError rather than returning stale data.
type DeviceData struct {
	dev      *Device
	handle   engine.Handle
	disposed bool
}

// ID returns the buffer identity. It changes when a write-through swaps the
// handle (copy-on-write).
func (d *DeviceData) ID() uint64 {
	return d.handle.ID
}

// ByteLength returns the buffer size in bytes.
func (d *DeviceData) ByteLength() int {
	return d.handle.Size
}

// Disposed reports whether Dispose has been called.
func (d *DeviceData) Disposed() bool {
	return d.disposed
}

// Handle returns the engine handle for operation dispatch.
func (d *DeviceData) Handle() (engine.Handle, error) {
	if d.disposed {
		return engine.Handle{}, errDisposed("get handle")
	}
	return d.handle, nil
}

// Clone returns a new DeviceData aliasing the same physical bytes. The
// shared ref count goes up by one; no bytes are copied.
func (d *DeviceData) Clone() (*DeviceData, error) {
	if d.disposed {
		return nil, errDisposed("clone")
	}

	h, err := d.dev.eng.CloneHandle(d.handle)
	if err != nil {
		return nil, &AllocationError{Requested: d.handle.Size, Cause: err}
	}
	if err := d.dev.table.retain(h.ID); err != nil {
		d.dev.eng.Release(h)
		return nil, err
	}

	return &DeviceData{dev: d.dev, handle: h}, nil
}

// Dispose drops this instance's reference. Idempotent: second and later
// calls are no-ops. Each instance owns exactly one engine-level reference
// (taken by Allocate or CloneHandle), so every first Dispose releases one;
// the engine reclaims the memory when the count hits zero. On the last
// reference the buffer's views are invalidated before that final engine
// release; ordering matters, a view must never be able to alias freed
// bytes. Dispose never returns an error: cleanup failures are logged and
// swallowed.
func (d *DeviceData) Dispose() {
	if d.disposed {
		return
	}
	d.disposed = true

	if last := d.dev.table.release(d.handle.ID); last {
		d.dev.views.invalidateBuffer(d.handle.ID, ReasonDisposed)
	}
	if ok := d.dev.eng.Release(d.handle); !ok {
		d.dev.logCleanup(&CleanupError{
			Op:    "release buffer",
			Cause: &InvalidStateError{Op: "engine release", State: "already freed", Want: "live"},
		})
	}
}

// UpdateHandle swaps this instance to a new buffer, implementing
// copy-on-write for write-through: clones made before the swap keep the old
// handle and keep seeing the old bytes.
//
// The old shared entry loses a reference; if that was the last one, its
// views are invalidated as rewritten. This instance's engine-level
// reference on the old handle is dropped either way, so the old buffer is
// reclaimed as soon as its last holder lets go. The new handle gets a fresh
// entry with a ref count of 1.
func (d *DeviceData) UpdateHandle(newHandle engine.Handle) error {
	if d.disposed {
		return errDisposed("update handle")
	}
	if newHandle.ID == d.handle.ID {
		return nil
	}

	old := d.handle
	if last := d.dev.table.release(old.ID); last {
		d.dev.views.invalidateBuffer(old.ID, ReasonRewritten)
	}
	if ok := d.dev.eng.Release(old); !ok {
		d.dev.logCleanup(&CleanupError{
			Op:    "release replaced buffer",
			Cause: &InvalidStateError{Op: "engine release", State: "already freed", Want: "live"},
		})
	}

	d.dev.table.register(newHandle)
	d.handle = newHandle
	return nil
}

// RefCount reports the shared count for this instance's buffer; 0 once all
// holders have disposed. Introspection only.
func (d *DeviceData) RefCount() uint32 {
	return d.dev.table.refCount(d.handle.ID)
}
