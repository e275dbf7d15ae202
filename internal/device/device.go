// Package device implements buffer lifetime and zero-copy view safety over a
// native memory engine.
//
// The core problem is use-after-free and aliasing prevention under shared
// ownership with manual disposal: multiple DeviceData clones can alias one
// physical buffer, write-through swaps handles copy-on-write style, and the
// engine reuses freed memory through its pools. Generation counters (see
// views.go) detect every case without the host runtime tracking ownership.
//
// The model is single-threaded cooperative: allocate, view creation, dispose
// and compaction all run to completion before the caller's next step, so the
// package uses no locks of its own.
package device

import (
	"log"

	"github.com/born-ml/devmem/internal/engine"
)

// Device is the facade composing the engine, the shared-buffer table, the
// view registry, and allocation policy.
type Device struct {
	eng       engine.Engine
	table     *bufferTable
	views     *viewRegistry
	lifecycle *lifecycleManager
	logger    *log.Logger
}

// New creates a Device over the given engine with the default bounded
// allocation policy.
func New(eng engine.Engine) *Device {
	return NewWithConfig(eng, DefaultConfig())
}

// NewWithConfig creates a Device with an explicit allocation policy.
func NewWithConfig(eng engine.Engine, cfg Config) *Device {
	return &Device{
		eng:       eng,
		table:     newBufferTable(),
		views:     newViewRegistry(),
		lifecycle: &lifecycleManager{eng: eng, cfg: cfg},
		logger:    log.Default(),
	}
}

// SetLogger replaces the logger used for cleanup diagnostics.
func (d *Device) SetLogger(l *log.Logger) {
	if l != nil {
		d.logger = l
	}
}

// logCleanup records a disposal-path failure. Disposal is exception-safe by
// design: these never propagate to callers.
func (d *Device) logCleanup(err *CleanupError) {
	d.logger.Printf("devmem: %v", err)
}

// syncEpoch folds the engine's storage epoch into the view registry. Any
// relocation of the backing storage invalidates every outstanding window.
func (d *Device) syncEpoch() {
	if e := d.eng.StorageEpoch(); e > d.views.epoch {
		d.views.epoch = e
	}
}

// CreateData allocates an uninitialized buffer of byteLength bytes.
func (d *Device) CreateData(byteLength int) (*DeviceData, error) {
	h, err := d.lifecycle.allocate(byteLength)
	if err != nil {
		return nil, err
	}
	d.table.register(h)
	// Allocation may have grown the arena; stale windows must notice.
	d.syncEpoch()
	return &DeviceData{dev: d, handle: h}, nil
}

// CreateDataWithBytes allocates a buffer and writes p into it.
func (d *Device) CreateDataWithBytes(p []byte) (*DeviceData, error) {
	data, err := d.CreateData(len(p))
	if err != nil {
		return nil, err
	}
	if err := d.eng.WriteBytes(data.handle, p); err != nil {
		data.Dispose()
		return nil, &AllocationError{Requested: len(p), Cause: err}
	}
	return data, nil
}

// DisposeData drops the instance's reference. Equivalent to data.Dispose();
// never fails.
func (d *Device) DisposeData(data *DeviceData) {
	data.Dispose()
}

// ReadData copies the buffer contents out into ordinary host memory.
func (d *Device) ReadData(data *DeviceData) ([]byte, error) {
	if data.disposed {
		return nil, errDisposed("read data")
	}
	p, err := d.eng.ReadBytes(data.handle)
	if err != nil {
		return nil, &AllocationError{Requested: data.handle.Size, Cause: err}
	}
	return p, nil
}

// WriteData replaces the buffer contents copy-on-write: a fresh buffer is
// allocated, p is written into it, and data is swapped to the new handle.
// Clones made before the write keep the old handle and the old bytes; views
// of the old buffer become invalid once no holder remains.
func (d *Device) WriteData(data *DeviceData, p []byte) error {
	if data.disposed {
		return errDisposed("write data")
	}

	h, err := d.lifecycle.allocate(len(p))
	if err != nil {
		return err
	}
	if err := d.eng.WriteBytes(h, p); err != nil {
		d.eng.Release(h)
		return &AllocationError{Requested: len(p), Cause: err}
	}
	if err := data.UpdateHandle(h); err != nil {
		d.eng.Release(h)
		return err
	}
	d.syncEpoch()
	return nil
}

// MemoryStats reports engine-wide usage.
func (d *Device) MemoryStats() engine.Stats {
	return d.eng.MemoryStats()
}

// ActiveBuffers reports how many distinct buffers the device tracks.
func (d *Device) ActiveBuffers() int {
	return d.table.liveCount()
}

// PerformCleanup compacts pooled engine memory and prunes view-tracking
// state for dead buffers. Live buffers keep their handles and generations.
func (d *Device) PerformCleanup() {
	d.lifecycle.cleanup()
	d.views.prune()
}

// InvalidateAllViews forces every outstanding view invalid, as if the arena
// had relocated.
func (d *Device) InvalidateAllViews() {
	d.views.invalidateAll()
}
