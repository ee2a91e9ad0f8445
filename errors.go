package videoseg

import (
	"errors"
	"fmt"

	"github.com/hupe1980/videoseg/engine"
	"github.com/hupe1980/videoseg/framesource"
	"github.com/hupe1980/videoseg/framestore"
)

var (
	// ErrNoFramesFound is returned when the frame source yields zero frames.
	ErrNoFramesFound = errors.New("no frames found")

	// ErrUnsupportedFormat is returned when a frame-source entry is not a
	// decodable image.
	ErrUnsupportedFormat = errors.New("unsupported frame format")

	// ErrEmptyPrompt is returned when the first prompt for a new object
	// carries no points.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrLabelMismatch is returned when points and labels differ in length.
	ErrLabelMismatch = errors.New("points and labels length mismatch")

	// ErrNoObjects is returned when propagation or online inference is
	// requested before any object has been prompted.
	ErrNoObjects = errors.New("no tracked objects")

	// ErrNilScorer is returned by Open when no scoring function is given.
	ErrNilScorer = errors.New("scorer must not be nil")

	// ErrPassClosed is returned by Pass.Next after the pass was closed.
	ErrPassClosed = engine.ErrPassClosed
)

// ErrOutOfRange indicates a frame index outside the stored range.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrOutOfRange struct {
	Index int
	Len   int
	cause error
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("frame index %d out of range [0,%d)", e.Index, e.Len)
}

func (e *ErrOutOfRange) Unwrap() error { return e.cause }

// ErrNonMonotonicIndex indicates an online frame append whose index does
// not extend the stored sequence.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrNonMonotonicIndex struct {
	Index int
	Next  int
	cause error
}

func (e *ErrNonMonotonicIndex) Error() string {
	return fmt.Sprintf("non-monotonic frame index %d: next appendable index is %d", e.Index, e.Next)
}

func (e *ErrNonMonotonicIndex) Unwrap() error { return e.cause }

// translateError maps internal errors onto the public error contract.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, framesource.ErrNoFramesFound) {
		return fmt.Errorf("%w: %w", ErrNoFramesFound, err)
	}
	if errors.Is(err, framesource.ErrUnsupportedFormat) {
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	if errors.Is(err, engine.ErrEmptyPrompt) {
		return fmt.Errorf("%w: %w", ErrEmptyPrompt, err)
	}
	if errors.Is(err, engine.ErrLabelMismatch) {
		return fmt.Errorf("%w: %w", ErrLabelMismatch, err)
	}
	if errors.Is(err, engine.ErrNoObjects) {
		return fmt.Errorf("%w: %w", ErrNoObjects, err)
	}

	var oor *framestore.ErrOutOfRange
	if errors.As(err, &oor) {
		return &ErrOutOfRange{Index: oor.Index, Len: oor.Len, cause: err}
	}
	var nm *framestore.ErrNonMonotonicIndex
	if errors.As(err, &nm) {
		return &ErrNonMonotonicIndex{Index: nm.Index, Next: nm.Next, cause: err}
	}

	return err
}
