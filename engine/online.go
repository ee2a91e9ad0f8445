package engine

import (
	"context"

	"github.com/hupe1980/videoseg/model"
)

// RunSingleFrame admits one frame arriving after the interactive prompting
// phase: the frame is appended to the store at the given index, every
// tracked object is scored against it conditioned on the current memory
// bank, and the results and memory are written for that frame only. No
// other frame is touched, so no full-video re-propagation is needed for
// streaming use.
//
// Indices are dense and strictly increasing; an index that does not extend
// the stored sequence fails with framestore.ErrNonMonotonicIndex.
func (e *Engine) RunSingleFrame(ctx context.Context, frame model.Frame, index int) (Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reg.Len() == 0 {
		return Output{}, ErrNoObjects
	}

	if err := e.frames.Append(ctx, frame, index); err != nil {
		return Output{}, err
	}
	frame.Index = index

	out, err := e.scoreFrame(ctx, frame, e.reg.IDs(), model.DirectionForward)
	if err != nil {
		// The frame stays stored; a later propagation pass picks it up.
		return Output{}, err
	}

	e.states[index] = model.FramePropagated
	e.visited.Add(uint32(index))
	e.frames.Release(index)

	e.logger.Infof("online frame scored: frame=%d objects=%d", index, len(out.ObjectIDs))
	return out, nil
}
