package device

import (
	"fmt"

	"github.com/born-ml/devmem/internal/engine"
)

// Verify that MockEngine implements Engine.
var _ engine.Engine = (*MockEngine)(nil)

// mockBuffer is one allocation inside the mock.
type mockBuffer struct {
	data        []byte
	refs        int
	initialized bool
}

// MockEngine is a simple in-memory engine for testing the device layer in
// isolation. It supports fault injection: failing allocations, refusing
// releases, denying direct byte access, and manual epoch bumps.
type MockEngine struct {
	// AllocateErr, when set, makes every Allocate fail.
	AllocateErr error
	// FailRelease, when set, makes Release report false.
	FailRelease bool
	// NoDirectAccess, when set, makes Bytes return ErrNoDirectAccess.
	NoDirectAccess bool

	buffers map[uint64]*mockBuffer
	nextID  uint64
	epoch   uint64

	// Call counters for assertions.
	CompactCalls int
	ReleaseCalls int
}

// NewMockEngine creates an empty MockEngine.
func NewMockEngine() *MockEngine {
	return &MockEngine{buffers: make(map[uint64]*mockBuffer), nextID: 1}
}

// BumpEpoch simulates a relocation of the backing storage.
func (m *MockEngine) BumpEpoch() {
	m.epoch++
}

// Allocate reserves a zeroed buffer.
func (m *MockEngine) Allocate(size int) (engine.Handle, error) {
	if m.AllocateErr != nil {
		return engine.Handle{}, m.AllocateErr
	}
	if size < 0 {
		return engine.Handle{}, fmt.Errorf("mock: negative size %d", size)
	}
	id := m.nextID
	m.nextID++
	m.buffers[id] = &mockBuffer{data: make([]byte, size), refs: 1}
	return engine.Handle{ID: id, Size: size}, nil
}

// Release drops one reference.
func (m *MockEngine) Release(h engine.Handle) bool {
	m.ReleaseCalls++
	if m.FailRelease {
		return false
	}
	b, ok := m.buffers[h.ID]
	if !ok {
		return false
	}
	b.refs--
	if b.refs <= 0 {
		delete(m.buffers, h.ID)
	}
	return true
}

// CloneHandle adds a reference to the same bytes.
func (m *MockEngine) CloneHandle(h engine.Handle) (engine.Handle, error) {
	b, ok := m.buffers[h.ID]
	if !ok {
		return engine.Handle{}, fmt.Errorf("mock: clone of unknown buffer %d", h.ID)
	}
	b.refs++
	return h, nil
}

// WriteBytes copies src in and marks the buffer initialized.
func (m *MockEngine) WriteBytes(h engine.Handle, src []byte) error {
	b, ok := m.buffers[h.ID]
	if !ok {
		return fmt.Errorf("mock: write to unknown buffer %d", h.ID)
	}
	if len(src) > len(b.data) {
		return fmt.Errorf("mock: write of %d bytes exceeds buffer size %d", len(src), len(b.data))
	}
	copy(b.data, src)
	b.initialized = true
	return nil
}

// ReadBytes copies the contents out.
func (m *MockEngine) ReadBytes(h engine.Handle) ([]byte, error) {
	b, ok := m.buffers[h.ID]
	if !ok {
		return nil, fmt.Errorf("mock: read of unknown buffer %d", h.ID)
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// Bytes returns the backing slice directly.
func (m *MockEngine) Bytes(h engine.Handle) ([]byte, error) {
	if m.NoDirectAccess {
		return nil, engine.ErrNoDirectAccess
	}
	b, ok := m.buffers[h.ID]
	if !ok {
		return nil, fmt.Errorf("mock: byte access on unknown buffer %d", h.ID)
	}
	return b.data, nil
}

// BufferInfo reports size and initialization state.
func (m *MockEngine) BufferInfo(h engine.Handle) (engine.Info, error) {
	b, ok := m.buffers[h.ID]
	if !ok {
		return engine.Info{}, fmt.Errorf("mock: info for unknown buffer %d", h.ID)
	}
	return engine.Info{Size: len(b.data), Initialized: b.initialized}, nil
}

// Compact only counts the call; the mock pools nothing.
func (m *MockEngine) Compact() {
	m.CompactCalls++
}

// MemoryStats reports usage over live buffers.
func (m *MockEngine) MemoryStats() engine.Stats {
	total := 0
	for _, b := range m.buffers {
		total += len(b.data)
	}
	return engine.Stats{TotalAllocatedBytes: total, ActiveBuffers: len(m.buffers)}
}

// StorageEpoch reports the simulated relocation counter.
func (m *MockEngine) StorageEpoch() uint64 {
	return m.epoch
}
