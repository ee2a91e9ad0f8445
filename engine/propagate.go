package engine

import (
	"context"

	"github.com/hupe1980/videoseg/framestore"
	"github.com/hupe1980/videoseg/model"
)

// PropagateOption configures a propagation pass.
type PropagateOption func(*propagateConfig)

type propagateConfig struct {
	start     *int
	dir       model.Direction
	maxFrames int
}

// FromFrame starts the pass at the given frame instead of the earliest
// prompted frame.
func FromFrame(index int) PropagateOption {
	return func(c *propagateConfig) {
		c.start = &index
	}
}

// Reverse walks from the start frame toward frame 0.
func Reverse() PropagateOption {
	return func(c *propagateConfig) {
		c.dir = model.DirectionBackward
	}
}

// Bidirectional walks forward to the end of the video, then backward from
// the start frame to frame 0.
func Bidirectional() PropagateOption {
	return func(c *propagateConfig) {
		c.dir = model.DirectionBoth
	}
}

// MaxFrames caps the number of frames the pass will yield.
func MaxFrames(n int) PropagateOption {
	return func(c *propagateConfig) {
		c.maxFrames = n
	}
}

type step struct {
	index int
	dir   model.Direction

	// force marks a frame for recomputation regardless of staleness.
	force bool
}

// Pass is one lazy propagation traversal. It is finite and single-use: a
// new Propagate call re-derives the plan from current state rather than
// resuming. Frames written before an error or cancellation keep their
// results; nothing is rolled back.
type Pass struct {
	engine *Engine
	steps  []step
	pos    int
	err    error
	closed bool

	// forcedMarked is set once the first forced step executes and the
	// remaining forced frames have been marked stale.
	forcedMarked bool
}

// Propagate plans a propagation pass over the video. The walk starts at
// the set of prompted frames (or the frame given via FromFrame) and visits
// the next unvisited frame in the chosen direction at each step,
// recomputing frames that are unvisited or stale and replaying stored
// results for the rest.
func (e *Engine) Propagate(opts ...PropagateOption) *Pass {
	cfg := propagateConfig{dir: model.DirectionForward}
	for _, opt := range opts {
		opt(&cfg)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := &Pass{engine: e}

	if e.reg.Len() == 0 {
		p.err = ErrNoObjects
		return p
	}

	n := e.frames.Len()
	start := 0
	if cfg.start != nil {
		start = *cfg.start
		if start < 0 || start >= n {
			p.err = &framestore.ErrOutOfRange{Index: start, Len: n}
			return p
		}
	} else if prompted := e.reg.PromptedFrames(); len(prompted) > 0 {
		start = prompted[0]
	}

	switch cfg.dir {
	case model.DirectionForward:
		for i := start; i < n; i++ {
			p.steps = append(p.steps, step{index: i, dir: model.DirectionForward})
		}
	case model.DirectionBackward:
		for i := start; i >= 0; i-- {
			p.steps = append(p.steps, step{index: i, dir: model.DirectionBackward})
		}
	case model.DirectionBoth:
		for i := start; i < n; i++ {
			p.steps = append(p.steps, step{index: i, dir: model.DirectionForward})
		}
		for i := start - 1; i >= 0; i-- {
			// The backward leg always recomputes: results derived in an
			// earlier forward-only pass never saw the frames after them.
			// Marked on the step, not the engine, so an abandoned pass
			// leaves no staleness behind.
			p.steps = append(p.steps, step{index: i, dir: model.DirectionBackward, force: true})
		}
	}

	if cfg.maxFrames > 0 && len(p.steps) > cfg.maxFrames {
		p.steps = p.steps[:cfg.maxFrames]
	}

	e.logger.Infof("propagation planned: start=%d direction=%s frames=%d", start, cfg.dir, len(p.steps))
	return p
}

// Next advances the pass by one frame and returns its output. ok is false
// when the pass is exhausted. A scoring error or cancellation aborts the
// pass at the failing frame; previously yielded frames keep their results,
// and re-invoking Propagate resumes idempotently from current state.
func (p *Pass) Next(ctx context.Context) (Output, bool, error) {
	if p.closed {
		return Output{}, false, ErrPassClosed
	}
	if p.err != nil {
		return Output{}, false, p.err
	}
	if err := ctx.Err(); err != nil {
		p.err = err
		return Output{}, false, err
	}
	if p.pos >= len(p.steps) {
		return Output{}, false, nil
	}

	st := p.steps[p.pos]
	p.pos++

	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if st.force && !p.forcedMarked {
		// The forced leg is now running: invalidate its frames so they are
		// recomputed and their old results drop out of the memory context.
		for _, s := range p.steps[p.pos-1:] {
			if s.force {
				e.stale.Add(uint32(s.index))
			}
		}
		p.forcedMarked = true
	}

	if e.states[st.index] != model.FrameUnvisited && !e.stale.Contains(uint32(st.index)) {
		// Already computed and not invalidated: replay the stored result.
		return e.cachedOutput(st.index), true, nil
	}

	frame, err := e.frames.Get(ctx, st.index)
	if err != nil {
		p.err = err
		return Output{}, false, err
	}

	// Warm the fast tier for the upcoming step while this one scores.
	if p.pos < len(p.steps) {
		e.frames.Prefetch(ctx, p.steps[p.pos].index)
	}

	out, err := e.scoreFrame(ctx, frame, e.reg.IDs(), st.dir)
	if err != nil {
		p.err = err
		return Output{}, false, err
	}

	if e.hasPromptLocked(st.index) {
		e.states[st.index] = model.FrameConditioned
	} else {
		e.states[st.index] = model.FramePropagated
	}
	e.visited.Add(uint32(st.index))
	e.stale.Remove(uint32(st.index))
	e.frames.Release(st.index)

	return out, true, nil
}

// Drain runs the pass to completion and returns all outputs.
func (p *Pass) Drain(ctx context.Context) ([]Output, error) {
	var outs []Output
	for {
		out, ok, err := p.Next(ctx)
		if err != nil {
			return outs, err
		}
		if !ok {
			return outs, nil
		}
		outs = append(outs, out)
	}
}

// Close abandons the pass. Results already written are retained.
func (p *Pass) Close() {
	p.closed = true
}

func (e *Engine) hasPromptLocked(frameIndex int) bool {
	for _, id := range e.reg.IDs() {
		if _, ok := e.reg.Prompt(id, frameIndex); ok {
			return true
		}
	}
	return false
}
