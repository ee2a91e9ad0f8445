package framestore

import "fmt"

// ErrOutOfRange indicates a frame index outside the stored range.
type ErrOutOfRange struct {
	Index int
	Len   int
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("frame index %d out of range [0,%d)", e.Index, e.Len)
}

// ErrNonMonotonicIndex indicates an online append whose index does not
// extend the stored sequence. Frame indices are dense: the only admissible
// append index is Len().
type ErrNonMonotonicIndex struct {
	Index int
	Next  int
}

func (e *ErrNonMonotonicIndex) Error() string {
	return fmt.Sprintf("non-monotonic frame index %d: next appendable index is %d", e.Index, e.Next)
}
