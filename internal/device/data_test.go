package device

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneSharesBuffer(t *testing.T) {
	eng := NewMockEngine()
	dev := New(eng)

	a, err := dev.CreateData(64)
	require.NoError(t, err)

	b, err := a.Clone()
	require.NoError(t, err)

	assert.Equal(t, a.ID(), b.ID(), "clone should alias the same buffer")
	assert.Equal(t, uint32(2), a.RefCount())
	assert.Equal(t, 1, eng.MemoryStats().ActiveBuffers, "clone must not allocate")

	a.Dispose()
	assert.Equal(t, uint32(1), b.RefCount())
	b.Dispose()
	assert.Equal(t, uint32(0), b.RefCount())
	assert.Equal(t, 0, eng.MemoryStats().ActiveBuffers)
}

func TestDisposeIdempotent(t *testing.T) {
	eng := NewMockEngine()
	dev := New(eng)

	a, err := dev.CreateData(32)
	require.NoError(t, err)
	b, err := a.Clone()
	require.NoError(t, err)

	a.Dispose()
	releases := eng.ReleaseCalls

	// Second and third disposals are no-ops: no error, no double decrement,
	// no extra engine calls.
	a.Dispose()
	a.Dispose()

	assert.Equal(t, releases, eng.ReleaseCalls)
	assert.Equal(t, uint32(1), b.RefCount(), "double dispose must not decrement twice")

	b.Dispose()
	assert.Equal(t, uint32(0), b.RefCount())
}

func TestOperationsOnDisposedFail(t *testing.T) {
	eng := NewMockEngine()
	dev := New(eng)

	a, err := dev.CreateData(16)
	require.NoError(t, err)
	a.Dispose()

	var ise *InvalidStateError

	_, err = a.Handle()
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "disposed", ise.State)

	_, err = a.Clone()
	require.ErrorAs(t, err, &ise)

	err = a.UpdateHandle(a.handle)
	require.ErrorAs(t, err, &ise)

	_, err = dev.ReadData(a)
	require.ErrorAs(t, err, &ise)

	err = dev.WriteData(a, []byte{1})
	require.ErrorAs(t, err, &ise)
}

func TestCopyOnWriteIsolation(t *testing.T) {
	eng := NewMockEngine()
	dev := New(eng)

	orig := []byte{1, 2, 3, 4}
	a, err := dev.CreateDataWithBytes(orig)
	require.NoError(t, err)

	b, err := a.Clone()
	require.NoError(t, err)
	c, err := b.Clone()
	require.NoError(t, err)

	oldID := a.ID()

	// Writing through a swaps its handle; b and c keep the old bytes.
	require.NoError(t, dev.WriteData(a, []byte{9, 9, 9, 9}))
	assert.NotEqual(t, oldID, a.ID(), "write-through must change identity")
	assert.Equal(t, oldID, b.ID())

	got, err := dev.ReadData(a)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9, 9}, got)

	got, err = dev.ReadData(b)
	require.NoError(t, err)
	assert.Equal(t, orig, got)

	got, err = dev.ReadData(c)
	require.NoError(t, err)
	assert.Equal(t, orig, got)

	// Counts split: a owns its new buffer alone, b and c share the old one.
	assert.Equal(t, uint32(1), a.RefCount())
	assert.Equal(t, uint32(2), b.RefCount())

	a.Dispose()
	b.Dispose()
	c.Dispose()
	assert.Equal(t, 0, eng.MemoryStats().ActiveBuffers)
}

func TestWriteReleasesWriterReference(t *testing.T) {
	eng := NewMockEngine()
	dev := New(eng)

	a, err := dev.CreateDataWithBytes([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	b, err := a.Clone()
	require.NoError(t, err)

	// COW write moves a to a fresh buffer. a's engine reference on the old
	// buffer is dropped right away, leaving b as its only holder.
	require.NoError(t, dev.WriteData(a, []byte{5, 6, 7, 8}))
	assert.Equal(t, 2, eng.MemoryStats().ActiveBuffers)

	b.Dispose()
	assert.Equal(t, 1, eng.MemoryStats().ActiveBuffers, "old buffer must be reclaimed with its last holder")

	a.Dispose()
	assert.Equal(t, 0, eng.MemoryStats().ActiveBuffers)
}

func TestUpdateHandleSameHandleIsNoop(t *testing.T) {
	eng := NewMockEngine()
	dev := New(eng)

	a, err := dev.CreateData(16)
	require.NoError(t, err)

	h, err := a.Handle()
	require.NoError(t, err)

	require.NoError(t, a.UpdateHandle(h))
	assert.Equal(t, uint32(1), a.RefCount(), "self-update must not tear down the entry")
	assert.Equal(t, h.ID, a.ID())
}

func TestDisposeNeverFailsCaller(t *testing.T) {
	eng := NewMockEngine()
	eng.FailRelease = true
	dev := New(eng)

	var captured bytes.Buffer
	dev.SetLogger(log.New(&captured, "", 0))

	a, err := dev.CreateData(16)
	require.NoError(t, err)

	// Engine refuses the release; Dispose must swallow it and log.
	assert.NotPanics(t, func() { a.Dispose() })
	assert.True(t, a.Disposed())
	assert.Contains(t, captured.String(), "cleanup failed")
}

func TestCloneFailureSurfacesAllocationError(t *testing.T) {
	eng := NewMockEngine()
	dev := New(eng)

	a, err := dev.CreateData(16)
	require.NoError(t, err)

	// Clone after the engine lost the buffer behind our back.
	delete(eng.buffers, a.ID())

	_, err = a.Clone()
	var ae *AllocationError
	require.ErrorAs(t, err, &ae)
	assert.NotNil(t, ae.Cause)
}
