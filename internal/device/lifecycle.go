package device

import (
	"github.com/born-ml/devmem/internal/engine"
)

// Config controls allocation policy.
type Config struct {
	// MaxAllocBytes caps a single allocation. Requests above it are
	// rejected with BoundsError.
	MaxAllocBytes int

	// SoftLimitBytes is the usage level that triggers a compaction pass
	// before allocating, when AutoCompact is set.
	SoftLimitBytes int

	// HardLimitBytes is the usage ceiling. An allocation that would push
	// usage past it is rejected with MemoryLimitError. Zero disables the
	// ceiling.
	HardLimitBytes int

	// AutoCompact enables the soft-threshold compaction pass.
	AutoCompact bool
}

// DefaultConfig returns the bounded-allocator policy: 1GB per allocation,
// compaction at 1.5GB, rejection at 2GB.
func DefaultConfig() Config {
	return Config{
		MaxAllocBytes:  1 << 30,
		SoftLimitBytes: 3 << 29,
		HardLimitBytes: 1 << 31,
		AutoCompact:    true,
	}
}

// lifecycleManager layers allocation policy over the raw engine: size bounds,
// memory-pressure checks, and translation of engine failures into the typed
// error taxonomy. The pressure check is advisory and synchronous; it runs
// inline before each allocation, never in the background.
type lifecycleManager struct {
	eng engine.Engine
	cfg Config
}

// allocate runs policy checks and reserves a buffer. The returned handle is
// not yet registered in the buffer table; callers own that step.
func (m *lifecycleManager) allocate(size int) (engine.Handle, error) {
	if size < 0 {
		return engine.Handle{}, &BoundsError{Op: "allocate", Requested: size, Limit: 0}
	}
	if size > m.cfg.MaxAllocBytes {
		return engine.Handle{}, &BoundsError{Op: "allocate", Requested: size, Limit: m.cfg.MaxAllocBytes}
	}

	usage := m.eng.MemoryStats().TotalAllocatedBytes
	if m.cfg.AutoCompact && m.cfg.SoftLimitBytes > 0 && usage+size > m.cfg.SoftLimitBytes {
		m.eng.Compact()
		usage = m.eng.MemoryStats().TotalAllocatedBytes
	}
	if m.cfg.HardLimitBytes > 0 && usage+size > m.cfg.HardLimitBytes {
		return engine.Handle{}, &MemoryLimitError{Requested: size, Usage: usage, Limit: m.cfg.HardLimitBytes}
	}

	h, err := m.eng.Allocate(size)
	if err != nil {
		return engine.Handle{}, &AllocationError{Requested: size, Cause: err}
	}
	return h, nil
}

// cleanup asks the engine to compact pooled-but-unused regions. Future
// buffer identities may change; live buffers are never disturbed.
func (m *lifecycleManager) cleanup() {
	m.eng.Compact()
}
