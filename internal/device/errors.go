package device

import "fmt"

// BoundsError reports a requested size or index outside allowed limits.
type BoundsError struct {
	Op        string
	Requested int
	Limit     int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: requested %d exceeds limit %d", e.Op, e.Requested, e.Limit)
}

// AllocationError reports that the engine could not satisfy an allocation
// that was within policy limits.
type AllocationError struct {
	Requested int
	Cause     error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation of %d bytes failed: %v", e.Requested, e.Cause)
}

func (e *AllocationError) Unwrap() error {
	return e.Cause
}

// MemoryLimitError reports that a configured memory ceiling would be
// exceeded. It is a policy rejection, not an engine failure.
type MemoryLimitError struct {
	Requested int
	Usage     int
	Limit     int
}

func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("allocation of %d bytes would exceed memory limit: %d in use, limit %d", e.Requested, e.Usage, e.Limit)
}

// InvalidStateError reports an operation attempted in the wrong lifecycle
// state, e.g. cloning a disposed DeviceData.
type InvalidStateError struct {
	Op    string
	State string
	Want  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: object is %s, want %s", e.Op, e.State, e.Want)
}

// ViewReason categorizes why a view became invalid.
type ViewReason int

const (
	// ReasonUnknown means the invalidation cause was not recorded.
	ReasonUnknown ViewReason = iota
	// ReasonDisposed means the view's buffer was disposed.
	ReasonDisposed
	// ReasonRewritten means the buffer's contents were replaced.
	ReasonRewritten
	// ReasonGrew means the arena relocated and every window went stale.
	ReasonGrew
)

// String returns a human-readable reason name.
func (r ViewReason) String() string {
	switch r {
	case ReasonDisposed:
		return "buffer disposed"
	case ReasonRewritten:
		return "buffer rewritten"
	case ReasonGrew:
		return "arena grew"
	default:
		return "unknown"
	}
}

// ViewInvalidError reports an access on a view whose buffer generation no
// longer matches. Invalid views stay invalid; every access reports this.
type ViewInvalidError struct {
	BufferID uint64
	Reason   ViewReason
}

func (e *ViewInvalidError) Error() string {
	return fmt.Sprintf("view of buffer %d is no longer valid: %s", e.BufferID, e.Reason)
}

// CleanupError records a failure during disposal. It is logged, never
// returned to the caller of Dispose.
type CleanupError struct {
	Op    string
	Cause error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed in %s: %v", e.Op, e.Cause)
}

func (e *CleanupError) Unwrap() error {
	return e.Cause
}

// errDisposed builds the InvalidStateError used by every DeviceData
// operation that requires a live instance.
func errDisposed(op string) *InvalidStateError {
	return &InvalidStateError{Op: op, State: "disposed", Want: "live"}
}
