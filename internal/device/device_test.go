package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/devmem/internal/engine/pool"
)

// End-to-end scenarios against the real pooled engine.

func TestScenarioHandleAfterDispose(t *testing.T) {
	dev := New(pool.New())

	d, err := dev.CreateData(1024)
	require.NoError(t, err)

	_, err = d.Handle()
	require.NoError(t, err)

	d.Dispose()

	_, err = d.Handle()
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "disposed", ise.State)
}

func TestScenarioCloneCounts(t *testing.T) {
	dev := New(pool.New())

	a, err := dev.CreateData(64)
	require.NoError(t, err)
	b, err := a.Clone()
	require.NoError(t, err)

	assert.Equal(t, uint32(2), a.RefCount())
	a.Dispose()
	assert.Equal(t, uint32(1), b.RefCount())
	b.Dispose()
	assert.Equal(t, uint32(0), b.RefCount())
}

func TestScenarioViewDiesWithBuffer(t *testing.T) {
	dev := New(pool.New())

	d, err := dev.CreateData(16)
	require.NoError(t, err)

	v, err := NewView[float32](d)
	require.NoError(t, err)

	require.NoError(t, v.Set(0, 42))
	got, err := v.Get(0)
	require.NoError(t, err)
	assert.Equal(t, float32(42), got)

	d.Dispose()

	var vie *ViewInvalidError
	_, err = v.Get(0)
	require.ErrorAs(t, err, &vie)
	err = v.Set(0, 1)
	require.ErrorAs(t, err, &vie)
}

func TestScenarioWriteInvalidatesOldViews(t *testing.T) {
	dev := New(pool.New())

	d, err := dev.CreateData(16)
	require.NoError(t, err)
	defer d.Dispose()

	v, err := NewView[float32](d)
	require.NoError(t, err)

	newBytes := []byte{0, 0, 40, 66, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0} // float32(42) LE
	require.NoError(t, dev.WriteData(d, newBytes))

	var vie *ViewInvalidError
	_, err = v.Get(0)
	require.ErrorAs(t, err, &vie)

	nv, err := NewView[float32](d)
	require.NoError(t, err)
	got, err := nv.Get(0)
	require.NoError(t, err)
	assert.Equal(t, float32(42), got)
}

func TestScenarioOversizeAllocation(t *testing.T) {
	dev := New(pool.New()) // default 1GB max single allocation

	_, err := dev.CreateData(2 * 1024 * 1024 * 1024)
	var be *BoundsError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 2147483648, be.Requested)
	assert.Equal(t, 1073741824, be.Limit)
}

func TestLargeAllocationWithinPolicy(t *testing.T) {
	dev := New(pool.New())

	// Above the engine's largest pool class but well within the default
	// 1GB per-allocation policy.
	d, err := dev.CreateData(32 * 1024 * 1024)
	require.NoError(t, err)
	assert.Equal(t, 32*1024*1024, d.ByteLength())
	d.Dispose()
	assert.Equal(t, 0, dev.MemoryStats().ActiveBuffers)
}

func TestReadWriteRoundtrip(t *testing.T) {
	dev := New(pool.New())

	payload := []byte{10, 20, 30, 40, 50}
	d, err := dev.CreateDataWithBytes(payload)
	require.NoError(t, err)
	defer d.Dispose()

	got, err := dev.ReadData(d)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// ReadData copies out: mutating the copy leaves the buffer untouched.
	got[0] = 99
	again, err := dev.ReadData(d)
	require.NoError(t, err)
	assert.Equal(t, byte(10), again[0])
}

func TestDeviceStats(t *testing.T) {
	dev := New(pool.New())

	a, err := dev.CreateData(1000)
	require.NoError(t, err)
	b, err := dev.CreateData(1000)
	require.NoError(t, err)

	stats := dev.MemoryStats()
	assert.Equal(t, 2, stats.ActiveBuffers)
	assert.Positive(t, stats.TotalAllocatedBytes)
	assert.Equal(t, 2, dev.ActiveBuffers())

	// Clones share buffers; the engine count does not move.
	c, err := a.Clone()
	require.NoError(t, err)
	assert.Equal(t, 2, dev.MemoryStats().ActiveBuffers)

	a.Dispose()
	b.Dispose()
	c.Dispose()
	assert.Equal(t, 0, dev.MemoryStats().ActiveBuffers)
	assert.Equal(t, 0, dev.ActiveBuffers())
}

func TestDisposeReleasesPhysicalMemoryOnce(t *testing.T) {
	eng := pool.New()
	dev := New(eng)

	a, err := dev.CreateData(64)
	require.NoError(t, err)
	b, err := a.Clone()
	require.NoError(t, err)

	a.Dispose()
	a.Dispose() // no-op
	assert.Equal(t, 1, eng.MemoryStats().ActiveBuffers, "buffer must survive while a clone holds it")

	b.Dispose()
	assert.Equal(t, 0, eng.MemoryStats().ActiveBuffers)
}
