// Package pool implements the default Engine: a size-classed buffer pool
// carving allocations out of a single growable arena.
//
// Buffers up to 16MB are grouped into power-of-four-ish size classes. Freed
// buffers go onto a per-class FIFO free list and are reused by later
// allocations of the same class, so a released buffer's bytes may be handed
// to an unrelated caller. Larger requests are carved directly from the arena
// and never pooled; their space, and space trimmed out of the free lists by
// Compact, goes onto a spill list of free extents that later carving reuses.
// The arena grows by doubling; growth relocates the backing storage and
// bumps the storage epoch so outstanding byte windows can be detected as
// stale.
package pool

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/born-ml/devmem/internal/engine"
)

// Buffer size classes for pooling, 16B to 16MB.
var sizeClasses = []int{
	16,
	64,
	256,
	1024,
	4 * 1024,
	16 * 1024,
	64 * 1024,
	256 * 1024,
	1024 * 1024,
	4 * 1024 * 1024,
	16 * 1024 * 1024,
}

const (
	// alignment keeps every buffer SIMD-friendly.
	alignment = 64

	// maxPooledPerClass bounds how many free buffers Compact keeps per class.
	maxPooledPerClass = 10

	// oversizeClass marks a slot carved outside the size classes.
	oversizeClass = -1
)

// Config controls arena sizing.
type Config struct {
	// InitialCapacity is the arena size at construction.
	InitialCapacity int
	// MaxCapacity is the ceiling the arena may grow to.
	MaxCapacity int
}

// DefaultConfig returns the sizing used by New.
func DefaultConfig() Config {
	return Config{
		InitialCapacity: 1 << 20, // 1MB
		MaxCapacity:     3 << 30, // 3GB
	}
}

// slot is one slab entry. Slots are reused; Gen disambiguates stale handles.
type slot struct {
	gen         uint32
	offset      int
	size        int // requested size
	class       int // size class index, or oversizeClass
	refs        int
	initialized bool
	live        bool
}

// extent is a free arena range on the spill list.
type extent struct {
	off  int
	size int
}

// PoolStats reports per-class pool occupancy.
type PoolStats struct {
	ClassBytes int
	Available  int
	Allocated  int
}

// Engine is the pooled arena allocator.
type Engine struct {
	mu sync.Mutex

	cfg   Config
	mem   []byte
	used  int    // bump offset into mem
	epoch uint64 // incremented on every relocation of mem

	slots     []slot
	freeSlots []uint32

	// Per-class FIFO free lists of arena offsets.
	free []*queue.Queue
	// Buffers ever carved per class (live + pooled).
	carved []int
	// Free extents outside the class free lists: compacted pool blocks and
	// released oversize buffers. Reused by carveBlock before bumping.
	spill []extent

	nextID         uint64
	totalAllocated int
	activeBuffers  int
}

var _ engine.Engine = (*Engine)(nil)

// New creates a pooled engine with default sizing.
func New() *Engine {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a pooled engine with explicit sizing.
func NewWithConfig(cfg Config) *Engine {
	if cfg.InitialCapacity <= 0 {
		cfg.InitialCapacity = DefaultConfig().InitialCapacity
	}
	if cfg.MaxCapacity < cfg.InitialCapacity {
		cfg.MaxCapacity = cfg.InitialCapacity
	}

	free := make([]*queue.Queue, len(sizeClasses))
	for i := range free {
		free[i] = queue.New()
	}

	return &Engine{
		cfg:    cfg,
		mem:    make([]byte, cfg.InitialCapacity),
		free:   free,
		carved: make([]int, len(sizeClasses)),
		nextID: 1,
	}
}

// classFor maps a requested size to its size class index.
func classFor(size int) (int, bool) {
	for i, c := range sizeClasses {
		if size <= c {
			return i, true
		}
	}
	return 0, false
}

// Allocate reserves a zeroed buffer of at least size bytes. Requests above
// the largest size class are carved directly from the arena, unpooled,
// bounded only by arena capacity.
func (e *Engine) Allocate(size int) (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if size < 0 {
		return engine.Handle{}, fmt.Errorf("pool: negative allocation size %d", size)
	}

	var (
		offset int
		err    error
	)
	class, ok := classFor(size)
	if ok {
		offset, err = e.carve(class)
	} else {
		class = oversizeClass
		offset, err = e.carveBlock(alignUp(size, alignment))
	}
	if err != nil {
		return engine.Handle{}, err
	}

	si := e.takeSlot()
	s := &e.slots[si]
	s.offset = offset
	s.size = size
	s.class = class
	s.refs = 1
	s.initialized = false
	s.live = true

	id := e.nextID
	e.nextID++
	e.activeBuffers++

	return engine.Handle{ID: id, Slot: si, Gen: s.gen, Size: size}, nil
}

// carve returns an arena offset for a buffer of the given class, reusing a
// pooled block when one is available.
func (e *Engine) carve(class int) (int, error) {
	if e.free[class].Length() > 0 {
		return e.free[class].Remove().(int), nil
	}

	offset, err := e.carveBlock(alignUp(sizeClasses[class], alignment))
	if err != nil {
		return 0, err
	}
	e.carved[class]++
	return offset, nil
}

// carveBlock finds blockSize bytes of arena, first-fit from the spill list
// when an extent is large enough, otherwise by bumping (and growing) the
// arena. blockSize must be a multiple of alignment, so splits stay aligned.
func (e *Engine) carveBlock(blockSize int) (int, error) {
	for i, x := range e.spill {
		if x.size < blockSize {
			continue
		}
		off := x.off
		if rest := x.size - blockSize; rest > 0 {
			e.spill[i] = extent{off: off + blockSize, size: rest}
		} else {
			e.spill = append(e.spill[:i], e.spill[i+1:]...)
		}
		e.totalAllocated += blockSize
		return off, nil
	}

	start := alignUp(e.used, alignment)
	if start+blockSize > len(e.mem) {
		if err := e.grow(start + blockSize); err != nil {
			return 0, err
		}
	}
	e.used = start + blockSize
	e.totalAllocated += blockSize
	return start, nil
}

// blockSize returns the carved footprint of a slot's buffer.
func (e *Engine) blockSize(s *slot) int {
	if s.class == oversizeClass {
		return alignUp(s.size, alignment)
	}
	return alignUp(sizeClasses[s.class], alignment)
}

// grow doubles the arena (or more, to fit needed bytes). Relocates storage.
func (e *Engine) grow(needed int) error {
	newCap := len(e.mem) * 2
	if newCap < needed {
		newCap = needed
	}
	if newCap > e.cfg.MaxCapacity {
		if needed > e.cfg.MaxCapacity {
			return fmt.Errorf("pool: arena would exceed capacity limit: need %d, limit %d", needed, e.cfg.MaxCapacity)
		}
		newCap = e.cfg.MaxCapacity
	}

	grown := make([]byte, newCap)
	copy(grown, e.mem)
	e.mem = grown
	e.epoch++
	return nil
}

// takeSlot returns a free slab slot index, extending the slab if needed.
func (e *Engine) takeSlot() uint32 {
	if n := len(e.freeSlots); n > 0 {
		si := e.freeSlots[n-1]
		e.freeSlots = e.freeSlots[:n-1]
		return si
	}
	e.slots = append(e.slots, slot{})
	return uint32(len(e.slots) - 1)
}

// lookup validates a handle against the slab. Returns nil for stale handles.
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

// Release drops one reference; reclaims the buffer at zero.
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

	// Zero before reuse so reclaimed blocks never leak prior contents.
	block := e.blockSize(s)
	clear(e.mem[s.offset : s.offset+block])
	if s.class == oversizeClass {
		e.spill = append(e.spill, extent{off: s.offset, size: block})
		e.totalAllocated -= block
	} else {
		e.free[s.class].Add(s.offset)
	}

	s.live = false
	s.gen++
	e.freeSlots = append(e.freeSlots, h.Slot)
	e.activeBuffers--
	return true
}

// CloneHandle adds a reference to the same physical bytes.
func (e *Engine) CloneHandle(h engine.Handle) (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return engine.Handle{}, fmt.Errorf("pool: clone of stale handle (id %d)", h.ID)
	}
	s.refs++
	return h, nil
}

// WriteBytes copies src into the buffer and marks it initialized.
func (e *Engine) WriteBytes(h engine.Handle, src []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return fmt.Errorf("pool: write to stale handle (id %d)", h.ID)
	}
	if len(src) > s.size {
		return fmt.Errorf("pool: write of %d bytes exceeds buffer size %d", len(src), s.size)
	}
	copy(e.mem[s.offset:s.offset+s.size], src)
	s.initialized = true
	return nil
}

// ReadBytes copies the buffer contents out.
func (e *Engine) ReadBytes(h engine.Handle) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return nil, fmt.Errorf("pool: read of stale handle (id %d)", h.ID)
	}
	out := make([]byte, s.size)
	copy(out, e.mem[s.offset:s.offset+s.size])
	return out, nil
}

// Bytes returns a zero-copy window over the buffer. The window goes stale
// when the arena relocates; callers watch StorageEpoch.
func (e *Engine) Bytes(h engine.Handle) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return nil, fmt.Errorf("pool: byte access on stale handle (id %d)", h.ID)
	}
	return e.mem[s.offset : s.offset+s.size : s.offset+s.size], nil
}

// BufferInfo reports placement and initialization state.
func (e *Engine) BufferInfo(h engine.Handle) (engine.Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.lookup(h)
	if s == nil {
		return engine.Info{}, fmt.Errorf("pool: info for stale handle (id %d)", h.ID)
	}
	return engine.Info{Ptr: s.offset, Size: s.size, Initialized: s.initialized}, nil
}

// Compact trims each free list to maxPooledPerClass. The arena itself never
// shrinks (linear memory semantics); trimmed blocks move to the spill list,
// stop counting as allocated, and stay reusable by later carving. Live
// buffers are untouched.
func (e *Engine) Compact() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for class, q := range e.free {
		block := alignUp(sizeClasses[class], alignment)
		for q.Length() > maxPooledPerClass {
			off := q.Remove().(int)
			e.spill = append(e.spill, extent{off: off, size: block})
			e.totalAllocated -= block
			e.carved[class]--
		}
	}
}

// MemoryStats reports current usage.
func (e *Engine) MemoryStats() engine.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return engine.Stats{
		TotalAllocatedBytes: e.totalAllocated,
		ActiveBuffers:       e.activeBuffers,
	}
}

// StorageEpoch reports the arena relocation counter.
func (e *Engine) StorageEpoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

// Stats returns per-class pool occupancy for diagnostics.
func (e *Engine) Stats() []PoolStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]PoolStats, len(sizeClasses))
	for i, c := range sizeClasses {
		out[i] = PoolStats{
			ClassBytes: c,
			Available:  e.free[i].Length(),
			Allocated:  e.carved[i],
		}
	}
	return out
}

// ArenaCapacity returns the current arena size in bytes.
func (e *Engine) ArenaCapacity() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.mem)
}

func alignUp(v, boundary int) int {
	return (v + boundary - 1) &^ (boundary - 1)
}
