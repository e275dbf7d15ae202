package device

import (
	"fmt"

	"github.com/born-ml/devmem/internal/engine"
)

// bufferTable is the shared-buffer registry: ref counts keyed by the
// engine's allocation ID. It is pure bookkeeping, no engine calls happen
// here, which keeps ref-count behavior testable in isolation.
//
// IDs are never reused, so a missing entry unambiguously means the buffer
// is gone.
type bufferTable struct {
	refs map[uint64]uint32
}

func newBufferTable() *bufferTable {
	return &bufferTable{refs: make(map[uint64]uint32)}
}

// register creates a fresh entry with a ref count of 1.
func (t *bufferTable) register(h engine.Handle) {
	t.refs[h.ID] = 1
}

// retain adds a reference. A dangling id is a caller bug and fails loudly.
func (t *bufferTable) retain(id uint64) error {
	if _, ok := t.refs[id]; !ok {
		return &InvalidStateError{
			Op:    fmt.Sprintf("retain buffer %d", id),
			State: "released",
			Want:  "registered",
		}
	}
	t.refs[id]++
	return nil
}

// release drops a reference. Returns true exactly once: on the transition
// to zero, at which point the entry is removed. Releasing an unknown id is
// a no-op returning false, so double-dispose never double-decrements.
func (t *bufferTable) release(id uint64) bool {
	n, ok := t.refs[id]
	if !ok {
		return false
	}
	if n > 1 {
		t.refs[id] = n - 1
		return false
	}
	delete(t.refs, id)
	return true
}

// refCount reports the current count, 0 for unknown ids. Never errors;
// meant for introspection and tests.
func (t *bufferTable) refCount(id uint64) uint32 {
	return t.refs[id]
}

// liveCount reports how many distinct buffers are registered.
func (t *bufferTable) liveCount() int {
	return len(t.refs)
}
