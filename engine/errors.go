package engine

import "errors"

var (
	// ErrEmptyPrompt is returned when the first prompt for a new object
	// carries no points.
	ErrEmptyPrompt = errors.New("empty prompt: a new object needs at least one point")

	// ErrLabelMismatch is returned when the points and labels of a prompt
	// differ in length.
	ErrLabelMismatch = errors.New("points and labels length mismatch")

	// ErrNoObjects is returned when propagation or online inference is
	// requested before any object has been prompted.
	ErrNoObjects = errors.New("no tracked objects")

	// ErrPassClosed is returned by Next after a pass was closed.
	ErrPassClosed = errors.New("propagation pass closed")

	// ErrPoolClosed is returned when work is submitted to a closed pool.
	ErrPoolClosed = errors.New("worker pool closed")
)
