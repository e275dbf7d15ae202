//go:build windows

package webgpu

import (
	"github.com/go-webgpu/webgpu/wgpu"
)

// Pooling buckets for GPU buffers. Requests are rounded up to a bucket so a
// freed buffer can serve any later request of the same bucket; anything
// larger is allocated at exact size and never pooled.
var bucketSizes = []uint64{
	4 << 10,
	64 << 10,
	1 << 20,
	16 << 20,
}

// maxPooledPerBucket bounds how many free buffers each bucket keeps.
const maxPooledPerBucket = 16

// bufferPool reuses storage-usage GPU buffers to cut allocation overhead.
// Callers hold the engine lock; the pool itself is not synchronized.
type bufferPool struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	free [][]*wgpu.Buffer

	allocated uint64
	released  uint64
	hits      uint64
	misses    uint64
}

func newBufferPool(device *wgpu.Device, queue *wgpu.Queue) *bufferPool {
	return &bufferPool{
		device: device,
		queue:  queue,
		free:   make([][]*wgpu.Buffer, len(bucketSizes)),
	}
}

// bucketFor maps a buffer size to its pooling bucket, false for oversize.
func bucketFor(size uint64) (int, bool) {
	for i, b := range bucketSizes {
		if size <= b {
			return i, true
		}
	}
	return 0, false
}

// acquire returns a storage buffer of at least size bytes, reusing a pooled
// one when the bucket has any.
func (p *bufferPool) acquire(size uint64) *wgpu.Buffer {
	b, ok := bucketFor(size)
	if !ok {
		p.misses++
		p.allocated++
		return p.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: storageUsage,
			Size:  size,
		})
	}

	if n := len(p.free[b]); n > 0 {
		buf := p.free[b][n-1]
		p.free[b] = p.free[b][:n-1]
		p.hits++
		return buf
	}

	p.misses++
	p.allocated++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  bucketSizes[b],
	})
}

// release returns a buffer to its bucket, zeroed across the full bucket so
// reuse never leaks prior contents. Oversize buffers and overflow beyond
// the bucket cap go back to the GPU instead.
func (p *bufferPool) release(buffer *wgpu.Buffer, size uint64) {
	p.released++

	b, ok := bucketFor(size)
	if !ok || len(p.free[b]) >= maxPooledPerBucket {
		buffer.Release()
		return
	}

	p.queue.WriteBuffer(buffer, 0, make([]byte, bucketSizes[b]))
	p.free[b] = append(p.free[b], buffer)
}

// clear releases every pooled buffer.
func (p *bufferPool) clear() {
	for b := range p.free {
		for _, buf := range p.free[b] {
			buf.Release()
		}
		p.free[b] = p.free[b][:0]
	}
}

// stats returns pool counters.
func (p *bufferPool) stats() (allocated, released, hits, misses uint64, pooled int) {
	for _, bucket := range p.free {
		pooled += len(bucket)
	}
	return p.allocated, p.released, p.hits, p.misses, pooled
}
