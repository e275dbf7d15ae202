package device

import (
	"fmt"
	"unsafe"
)

// Elem is the constraint for view element types.
type Elem interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8 | ~bool
}

// ElemType is the runtime tag for a view's element interpretation.
type ElemType int

// Supported element types for views.
const (
	Float32 ElemType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
)

// Size returns the byte size of the element type.
func (t ElemType) Size() int {
	switch t {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		panic("unknown element type")
	}
}

// String returns a human-readable name for the element type.
func (t ElemType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// elemTypeOf infers the runtime tag for a generic element type.
func elemTypeOf[T Elem]() ElemType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		panic(fmt.Sprintf("unsupported element type %T", zero))
	}
}

// viewState tracks the generation counter for one buffer id. reason records
// why the previous generation was invalidated so stale views can name it.
type viewState struct {
	gen    uint64
	reason ViewReason
	dead   bool
}

// viewRegistry hands out generation stamps for views and invalidates them.
//
// Validity is a pair of integer comparisons: a view is valid iff its buffer's
// generation still matches the stamp it was created with, and the global
// epoch (bumped when the arena relocates) is unchanged. Invalidation is
// irreversible; there is no re-validate path.
type viewRegistry struct {
	states map[uint64]*viewState
	epoch  uint64
}

func newViewRegistry() *viewRegistry {
	return &viewRegistry{states: make(map[uint64]*viewState)}
}

// stateFor returns the buffer's state, creating it at generation 0.
func (r *viewRegistry) stateFor(id uint64) *viewState {
	s, ok := r.states[id]
	if !ok {
		s = &viewState{}
		r.states[id] = s
	}
	return s
}

// invalidateBuffer bumps the buffer's generation. Views stamped with the old
// generation are permanently invalid.
func (r *viewRegistry) invalidateBuffer(id uint64, reason ViewReason) {
	s := r.stateFor(id)
	s.gen++
	s.reason = reason
	if reason == ReasonDisposed {
		s.dead = true
	}
}

// invalidateAll bumps the global epoch, invalidating every view regardless
// of buffer id. Called when the arena relocates.
func (r *viewRegistry) invalidateAll() {
	r.epoch++
}

// check reports nil for a valid stamp, or the error every access must fail
// with.
func (r *viewRegistry) check(id uint64, gen, epoch uint64) *ViewInvalidError {
	if epoch != r.epoch {
		return &ViewInvalidError{BufferID: id, Reason: ReasonGrew}
	}
	s, ok := r.states[id]
	if !ok {
		// State was pruned; only dead buffers are pruned.
		return &ViewInvalidError{BufferID: id, Reason: ReasonDisposed}
	}
	if s.gen != gen {
		return &ViewInvalidError{BufferID: id, Reason: s.reason}
	}
	return nil
}

// prune drops state for dead buffers. Stale views still fail closed: a
// missing state reads as disposed.
func (r *viewRegistry) prune() {
	for id, s := range r.states {
		if s.dead {
			delete(r.states, id)
		}
	}
}

// View is a zero-copy typed window over a buffer's bytes.
//
// Every accessor re-checks validity before touching memory and fails closed
// with ViewInvalidError once the buffer is disposed, rewritten, or the arena
// has grown. An invalid view never becomes valid again.
type View[T Elem] struct {
	dev      *Device
	bufferID uint64
	gen      uint64
	epoch    uint64
	window   []byte // bytes at creation time; only touched after check passes
	off      int    // element offset within the window
	n        int    // element count
	etype    ElemType
}

// NewView creates a tracked zero-copy view over the data's buffer,
// interpreting its bytes as elements of type T. The element count is the
// buffer size divided by the element size.
func NewView[T Elem](data *DeviceData) (*View[T], error) {
	if data.disposed {
		return nil, errDisposed("create view")
	}

	dev := data.dev
	window, err := dev.eng.Bytes(data.handle)
	if err != nil {
		return nil, fmt.Errorf("create view of buffer %d: %w", data.handle.ID, err)
	}

	dev.syncEpoch()
	etype := elemTypeOf[T]()
	s := dev.views.stateFor(data.handle.ID)

	return &View[T]{
		dev:      dev,
		bufferID: data.handle.ID,
		gen:      s.gen,
		epoch:    dev.views.epoch,
		window:   window,
		off:      0,
		n:        len(window) / etype.Size(),
		etype:    etype,
	}, nil
}

// check re-validates the view. Every exported accessor calls this first.
func (v *View[T]) check() error {
	if err := v.dev.views.check(v.bufferID, v.gen, v.epoch); err != nil {
		return err
	}
	return nil
}

// Valid reports whether the view can still be accessed.
func (v *View[T]) Valid() bool {
	return v.dev.views.check(v.bufferID, v.gen, v.epoch) == nil
}

// Err returns nil for a valid view, or the ViewInvalidError accesses fail
// with.
func (v *View[T]) Err() error {
	return v.check()
}

// ElemType returns the view's element interpretation.
func (v *View[T]) ElemType() ElemType {
	return v.etype
}

// BufferID returns the id of the buffer the view aliases.
func (v *View[T]) BufferID() uint64 {
	return v.bufferID
}

// Len returns the element count. Fails on an invalid view; even length is a
// property of memory the view no longer owns.
func (v *View[T]) Len() (int, error) {
	if err := v.check(); err != nil {
		return 0, err
	}
	return v.n, nil
}

// elems reinterprets the window as elements. Only called after check.
func (v *View[T]) elems() []T {
	if v.n == 0 {
		return nil
	}
	base := v.off * v.etype.Size()
	data := v.window[base:]
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), v.n)
}

// Get returns the element at index i.
func (v *View[T]) Get(i int) (T, error) {
	var zero T
	if err := v.check(); err != nil {
		return zero, err
	}
	if i < 0 || i >= v.n {
		return zero, &BoundsError{Op: "view get", Requested: i, Limit: v.n}
	}
	return v.elems()[i], nil
}

// Set writes the element at index i.
func (v *View[T]) Set(i int, val T) error {
	if err := v.check(); err != nil {
		return err
	}
	if i < 0 || i >= v.n {
		return &BoundsError{Op: "view set", Requested: i, Limit: v.n}
	}
	v.elems()[i] = val
	return nil
}

// Slice copies elements [lo, hi) out of the view. The result is ordinary
// host memory, not subject to view tracking.
func (v *View[T]) Slice(lo, hi int) ([]T, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	if lo < 0 || hi < lo || hi > v.n {
		return nil, &BoundsError{Op: "view slice", Requested: hi, Limit: v.n}
	}
	out := make([]T, hi-lo)
	copy(out, v.elems()[lo:hi])
	return out, nil
}

// Subview returns a windowed sub-range [lo, hi) that still aliases the
// buffer. It inherits the parent's generation stamp and fails closed the
// same way.
func (v *View[T]) Subview(lo, hi int) (*View[T], error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	if lo < 0 || hi < lo || hi > v.n {
		return nil, &BoundsError{Op: "view subview", Requested: hi, Limit: v.n}
	}
	sub := *v
	sub.off = v.off + lo
	sub.n = hi - lo
	return &sub, nil
}
