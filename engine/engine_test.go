package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/videoseg/framesource"
	"github.com/hupe1980/videoseg/framestore"
	"github.com/hupe1980/videoseg/model"
	"github.com/hupe1980/videoseg/scorer"
)

const testSize = 16

func testFrame(i int) model.Frame {
	pixels := make([]float32, model.FrameChannels*testSize*testSize)
	for j := range pixels {
		pixels[j] = float32(i)
	}
	return model.Frame{Size: testSize, Pixels: pixels}
}

func newTestStore(t *testing.T, n int) *framestore.Store {
	t.Helper()

	frames := make([]model.Frame, n)
	for i := range frames {
		frames[i] = testFrame(i)
	}
	src, err := framesource.NewStaticSource(frames)
	require.NoError(t, err)

	store, err := framestore.Ingest(context.Background(), src, framestore.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestEngine(t *testing.T, n int, opts ...Option) *Engine {
	t.Helper()

	e := New(newTestStore(t, n), &scorer.Centroid{}, opts...)
	t.Cleanup(func() { e.Close() })
	return e
}

func pos(x, y float32) ([]model.Point, []model.Label) {
	return []model.Point{{X: x, Y: y}}, []model.Label{model.LabelPositive}
}

func TestAddPointsProducesMask(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 3)

	points, labels := pos(8, 8)
	out, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)

	assert.Equal(t, 0, out.FrameIndex)
	assert.Equal(t, []model.ObjectID{1}, out.ObjectIDs)
	require.Len(t, out.Logits, 1)
	assert.Greater(t, out.Logits[0][8*testSize+8], float32(0))

	assert.Equal(t, model.FrameConditioned, e.FrameState(0))
	assert.Equal(t, model.FrameUnvisited, e.FrameState(1))

	res, ok := e.Result(1, 0)
	require.True(t, ok)
	assert.Positive(t, res.Area())
	assert.Equal(t, 1, e.MemoryEntries())
}

func TestAddPointsValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 2)

	points, labels := pos(8, 8)

	// Frame index out of range.
	_, err := e.AddPoints(ctx, 2, 1, points, labels)
	var oor *framestore.ErrOutOfRange
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 2, oor.Index)

	_, err = e.AddPoints(ctx, -1, 1, points, labels)
	assert.ErrorAs(t, err, &oor)

	// Points/labels mismatch.
	_, err = e.AddPoints(ctx, 0, 1, points, nil)
	assert.ErrorIs(t, err, ErrLabelMismatch)

	// Empty prompt for a new object.
	_, err = e.AddPoints(ctx, 0, 1, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, 0, e.NumObjects())

	// But fine for an existing object (re-conditions the frame).
	_, err = e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)
	_, err = e.AddPoints(ctx, 0, 1, nil, nil)
	assert.NoError(t, err)
}

func TestPromptRefinementChangesMask(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 1)

	points, labels := pos(8, 8)
	first, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)

	// Refinement accumulates: a negative point near the click carves the
	// cumulative mask rather than replacing the first prompt.
	out, err := e.AddPoints(ctx, 0, 1,
		[]model.Point{{X: 9, Y: 8}}, []model.Label{model.LabelNegative})
	require.NoError(t, err)

	assert.Less(t, out.Logits[0][8*testSize+9], first.Logits[0][8*testSize+9])
	// The positive click from the first call still anchors the mask.
	assert.Greater(t, out.Logits[0][8*testSize+6], float32(0))
}

func TestMultiObjectConditioning(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 2)

	p1, l1 := pos(4, 4)
	_, err := e.AddPoints(ctx, 0, 7, p1, l1)
	require.NoError(t, err)

	p2, l2 := pos(12, 12)
	out, err := e.AddPoints(ctx, 0, 3, p2, l2)
	require.NoError(t, err)

	// Both objects share the frame: exactly two results, id order matches
	// registry insertion order.
	assert.Equal(t, []model.ObjectID{7, 3}, out.ObjectIDs)
	require.Len(t, out.Logits, 2)
	assert.Greater(t, out.Logits[0][4*testSize+4], float32(0))
	assert.Greater(t, out.Logits[1][12*testSize+12], float32(0))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 3)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)
	_, err = e.Propagate().Drain(ctx)
	require.NoError(t, err)

	e.Reset()

	assert.Equal(t, 0, e.NumObjects())
	assert.Equal(t, 0, e.MemoryEntries())
	assert.Equal(t, 3, e.NumFrames()) // frames retained
	for i := 0; i < 3; i++ {
		assert.Equal(t, model.FrameUnvisited, e.FrameState(i))
	}
	_, ok := e.Result(1, 0)
	assert.False(t, ok)

	// The session is fully usable again.
	_, err = e.AddPoints(ctx, 1, 2, points, labels)
	require.NoError(t, err)
	assert.Equal(t, 1, e.NumObjects())
}

func TestRunSingleFrame(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 3)

	points, labels := pos(8, 8)
	_, err := e.AddPoints(ctx, 0, 1, points, labels)
	require.NoError(t, err)
	_, err = e.Propagate().Drain(ctx)
	require.NoError(t, err)

	before, _ := e.Result(1, 2)

	out, err := e.RunSingleFrame(ctx, testFrame(3), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, out.FrameIndex)
	assert.Equal(t, []model.ObjectID{1}, out.ObjectIDs)
	assert.Equal(t, 4, e.NumFrames())
	assert.Equal(t, model.FramePropagated, e.FrameState(3))

	// No other frame was touched.
	after, _ := e.Result(1, 2)
	assert.Equal(t, before.Logits, after.Logits)

	// Monotonic index contract.
	_, err = e.RunSingleFrame(ctx, testFrame(3), 3)
	var nm *framestore.ErrNonMonotonicIndex
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, 3, nm.Index)
	assert.Equal(t, 4, nm.Next)

	_, err = e.RunSingleFrame(ctx, testFrame(9), 9)
	assert.ErrorAs(t, err, &nm)
}

func TestRunSingleFrameWithoutObjects(t *testing.T) {
	e := newTestEngine(t, 1)

	_, err := e.RunSingleFrame(context.Background(), testFrame(1), 1)
	assert.ErrorIs(t, err, ErrNoObjects)
	assert.Equal(t, 1, e.NumFrames()) // nothing appended
}

func TestWorkerPoolFanout(t *testing.T) {
	ctx := context.Background()

	// Per-object Func scorer: the engine fans objects out over the pool.
	fn := scorer.Func(func(_ context.Context, frame model.Frame, obj scorer.ObjectContext) ([]float32, error) {
		logits := make([]float32, frame.Size*frame.Size)
		for i := range logits {
			logits[i] = float32(obj.ObjectID)
		}
		return logits, nil
	})

	e := New(newTestStore(t, 2), fn, WithWorkers(4))
	t.Cleanup(func() { e.Close() })

	p1, l1 := pos(4, 4)
	_, err := e.AddPoints(ctx, 0, 1, p1, l1)
	require.NoError(t, err)
	p2, l2 := pos(12, 12)
	_, err = e.AddPoints(ctx, 0, 2, p2, l2)
	require.NoError(t, err)

	outs, err := e.Propagate().Drain(ctx)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	for _, out := range outs {
		require.Equal(t, []model.ObjectID{1, 2}, out.ObjectIDs)
		assert.EqualValues(t, 1, out.Logits[0][0])
		assert.EqualValues(t, 2, out.Logits[1][0])
	}
}
