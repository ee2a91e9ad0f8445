package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/videoseg/model"
	"github.com/hupe1980/videoseg/scorer"
)

func TestPropagateForward(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 3)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)

	outs, err := e.Propagate().Drain(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 3)

	for i, out := range outs {
		assert.Equal(t, i, out.FrameIndex)
		assert.Equal(t, []model.ObjectID{1}, out.ObjectIDs)
		require.Len(t, out.Logits, 1)

		res, ok := e.Result(1, i)
		require.True(t, ok)
		assert.Positive(t, res.Area(), "frame %d", i)
	}

	assert.Equal(t, model.FrameConditioned, e.FrameState(0))
	assert.Equal(t, model.FramePropagated, e.FrameState(1))
	assert.Equal(t, model.FramePropagated, e.FrameState(2))
}

func TestPropagateIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 4)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)

	first, err := e.Propagate().Drain(ctx)
	require.NoError(t, err)
	calls := e.ScoreCalls()

	second, err := e.Propagate().Drain(ctx)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Logits, second[i].Logits, "frame %d", i)
	}

	// Nothing was recomputed: the second pass replays stored results.
	assert.Equal(t, calls, e.ScoreCalls())
}

func TestInvalidationIsForwardOnly(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 3)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)
	_, err = e.Propagate().Drain(ctx)
	require.NoError(t, err)

	frame0, _ := e.Result(1, 0)
	frame1, _ := e.Result(1, 1)

	// Edit frame 1: recomputed immediately, frames after it go stale.
	_, err = e.AddPoints(ctx, 1, 1,
		[]model.Point{{X: 9, Y: 8}}, []model.Label{model.LabelNegative})
	require.NoError(t, err)
	assert.Equal(t, model.FrameConditioned, e.FrameState(1))

	outs, err := e.Propagate().Drain(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 3)

	// Frame 0 is strictly upstream: bit-for-bit unchanged.
	after0, _ := e.Result(1, 0)
	assert.Equal(t, frame0.Logits, after0.Logits)

	// Frame 1 carries the refined prompt now.
	after1, _ := e.Result(1, 1)
	assert.NotEqual(t, frame1.Logits, after1.Logits)
}

func TestPropagateBatchesObjects(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 3)

	p1, l1 := pos(4, 4)
	_, err := e.AddPoints(ctx, 0, 1, p1, l1)
	require.NoError(t, err)
	p2, l2 := pos(12, 12)
	_, err = e.AddPoints(ctx, 0, 2, p2, l2)
	require.NoError(t, err)

	calls := e.ScoreCalls() // two conditioning calls

	outs, err := e.Propagate().Drain(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 3)

	for _, out := range outs {
		assert.Equal(t, []model.ObjectID{1, 2}, out.ObjectIDs)
		assert.Len(t, out.Logits, 2)
	}

	// One scoring call per computed frame, regardless of object count:
	// frame 0 replays, frames 1 and 2 are scored once each.
	assert.Equal(t, calls+2, e.ScoreCalls())
}

func TestPropagateBackward(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 3)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 2, 1, points, labels)
	require.NoError(t, err)

	outs, err := e.Propagate(Reverse()).Drain(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 3)

	assert.Equal(t, 2, outs[0].FrameIndex)
	assert.Equal(t, 1, outs[1].FrameIndex)
	assert.Equal(t, 0, outs[2].FrameIndex)

	assert.Equal(t, model.FramePropagated, e.FrameState(0))
	assert.Equal(t, model.FrameConditioned, e.FrameState(2))
}

func TestPropagateBidirectional(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 4)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 1, 1, points, labels)
	require.NoError(t, err)

	outs, err := e.Propagate(Bidirectional()).Drain(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 4)

	// Forward leg 1..3, then backward leg 0.
	indices := make([]int, len(outs))
	for i, out := range outs {
		indices[i] = out.FrameIndex
	}
	assert.Equal(t, []int{1, 2, 3, 0}, indices)

	for i := 0; i < 4; i++ {
		_, ok := e.Result(1, i)
		assert.True(t, ok, "frame %d", i)
	}
}

func TestPropagateOptions(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)

	// MaxFrames caps the pass.
	outs, err := e.Propagate(MaxFrames(2)).Drain(ctx)
	require.NoError(t, err)
	assert.Len(t, outs, 2)

	// FromFrame overrides the start.
	outs, err = e.Propagate(FromFrame(3)).Drain(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, 3, outs[0].FrameIndex)

	// FromFrame validates the range.
	_, _, err = e.Propagate(FromFrame(9)).Next(ctx)
	assert.Error(t, err)
}

func TestPropagateWithoutObjects(t *testing.T) {
	e := newTestEngine(t, 2)

	_, _, err := e.Propagate().Next(context.Background())
	assert.ErrorIs(t, err, ErrNoObjects)
}

func TestPassCancellation(t *testing.T) {
	e := newTestEngine(t, 5)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(context.Background(), 0, 1, points, labels)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	pass := e.Propagate()

	_, ok, err := pass.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	cancel()
	_, _, err = pass.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// Partial results are retained, and a fresh pass finishes the video.
	_, ok = e.Result(1, 0)
	assert.True(t, ok)

	outs, err := e.Propagate().Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, outs, 5)
}

func TestPassClosed(t *testing.T) {
	e := newTestEngine(t, 2)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(context.Background(), 0, 1, points, labels)
	require.NoError(t, err)

	pass := e.Propagate()
	pass.Close()

	_, _, err = pass.Next(context.Background())
	assert.ErrorIs(t, err, ErrPassClosed)
}

// contextRecorder captures, per scored frame, the memory-context frame
// indices the scorer was given.
type contextRecorder struct {
	seen map[int][]int
}

func (r *contextRecorder) Score(_ context.Context, frame model.Frame, objs []scorer.ObjectContext) ([][]float32, error) {
	logits := make([][]float32, len(objs))
	for i, oc := range objs {
		var frames []int
		for _, m := range oc.Memory {
			frames = append(frames, m.FrameIndex)
		}
		r.seen[frame.Index] = frames

		logits[i] = make([]float32, frame.Size*frame.Size)
		for j := range logits[i] {
			logits[i][j] = 1
		}
	}
	return logits, nil
}

func TestInvalidatedResultsLeaveMemoryContext(t *testing.T) {
	ctx := context.Background()

	rec := &contextRecorder{seen: make(map[int][]int)}
	e := New(newTestStore(t, 4), rec)
	t.Cleanup(func() { e.Close() })

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)
	_, err = e.Propagate().Drain(ctx)
	require.NoError(t, err)

	// Edit frame 1: frames 2 and 3 are invalidated. The immediate
	// recompute of frame 1 must not condition on them.
	_, err = e.AddPoints(ctx, 1, 1,
		[]model.Point{{X: 9, Y: 8}}, []model.Label{model.LabelNegative})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, rec.seen[1])

	_, err = e.Propagate().Drain(ctx)
	require.NoError(t, err)

	// Frame 2 was recomputed before frame 3: its context holds only the
	// valid upstream results, never the still-invalidated frame 3.
	assert.NotContains(t, rec.seen[2], 3)
	assert.Contains(t, rec.seen[2], 1)

	// By the time frame 3 recomputes, frame 2 is valid again.
	assert.Contains(t, rec.seen[3], 2)
}

func TestAbandonedBidirectionalPassLeavesNoStaleness(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 4)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)
	_, err = e.Propagate().Drain(ctx)
	require.NoError(t, err)
	calls := e.ScoreCalls()

	// Plan a bidirectional pass and abandon it before the first step.
	pass := e.Propagate(Bidirectional(), FromFrame(2))
	pass.Close()

	// Planning alone invalidated nothing: a forward pass replays every
	// frame from storage.
	outs, err := e.Propagate().Drain(ctx)
	require.NoError(t, err)
	assert.Len(t, outs, 4)
	assert.Equal(t, calls, e.ScoreCalls())
}

func TestBidirectionalRecomputesBackwardLeg(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 4)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)
	_, err = e.Propagate().Drain(ctx)
	require.NoError(t, err)
	calls := e.ScoreCalls()

	outs, err := e.Propagate(Bidirectional(), FromFrame(2)).Drain(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 4)

	// Forward leg (2, 3) replays; backward leg (1, 0) is recomputed with
	// the benefit of the later frames.
	assert.Equal(t, calls+2, e.ScoreCalls())
}

type flakyScorer struct {
	inner    scorer.Scorer
	failFrom int32 // frame index at which Score starts failing; -1 never
}

func (f *flakyScorer) Score(ctx context.Context, frame model.Frame, objs []scorer.ObjectContext) ([][]float32, error) {
	if fail := atomic.LoadInt32(&f.failFrom); fail >= 0 && int32(frame.Index) >= fail {
		return nil, errors.New("scorer unavailable")
	}
	return f.inner.Score(ctx, frame, objs)
}

func TestScoringErrorAbortsPassKeepsResults(t *testing.T) {
	ctx := context.Background()

	fs := &flakyScorer{inner: &scorer.Centroid{}, failFrom: -1}
	e := New(newTestStore(t, 4), fs)
	t.Cleanup(func() { e.Close() })

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)

	atomic.StoreInt32(&fs.failFrom, 2)
	outs, err := e.Propagate().Drain(ctx)
	require.Error(t, err)
	assert.Len(t, outs, 2) // frames 0 and 1 made it

	// No rollback: frame 1 keeps its result.
	_, ok := e.Result(1, 1)
	assert.True(t, ok)
	_, ok = e.Result(1, 2)
	assert.False(t, ok)

	// Retry after the transient failure clears: the pass resumes from
	// current state and completes.
	atomic.StoreInt32(&fs.failFrom, -1)
	outs, err = e.Propagate().Drain(ctx)
	require.NoError(t, err)
	assert.Len(t, outs, 4)
	_, ok = e.Result(1, 3)
	assert.True(t, ok)
}
