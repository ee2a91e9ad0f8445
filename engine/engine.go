// Package engine implements the stateful core of videoseg: the mutable
// inference state that ties the frame store, object registry and memory
// bank together, the prompt conditioner, and the propagation scheduler.
//
// An Engine is the single handle for one video session. All mutating
// operations are serialized on an internal mutex; concurrent calls are
// safe but execute one at a time.
package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/videoseg/framestore"
	"github.com/hupe1980/videoseg/internal/resource"
	"github.com/hupe1980/videoseg/membank"
	"github.com/hupe1980/videoseg/model"
	"github.com/hupe1980/videoseg/registry"
	"github.com/hupe1980/videoseg/scorer"
)

// Logger is a minimal logging interface for the engine layer.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// Output is the per-frame result of conditioning, propagation or online
// inference. ObjectIDs follows registry insertion order; Logits is parallel
// to it.
type Output struct {
	FrameIndex int
	ObjectIDs  []model.ObjectID
	Logits     [][]float32
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMemoryWindow sets the per-object memory retention window in frames.
// 0 disables pruning. Larger windows recall more distant context at the
// price of memory growth on long videos; the default is
// membank.DefaultWindow.
func WithMemoryWindow(frames int) Option {
	return func(e *Engine) {
		e.window = frames
	}
}

// WithController sets the resource controller used for the scoring rate
// limit (the frame store carries its own reference for the fast tier).
func WithController(rc *resource.Controller) Option {
	return func(e *Engine) {
		e.res = rc
	}
}

// WithWorkers enables per-object parallel scoring with the given number of
// workers when the scorer is a scorer.Func. Batched scorers are always
// invoked once per frame and ignore this setting.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// Engine is the mutable inference state of one video session.
type Engine struct {
	mu sync.Mutex

	frames *framestore.Store
	reg    *registry.Registry
	bank   *membank.Bank
	scorer scorer.Scorer
	pool   *WorkerPool
	res    *resource.Controller
	logger Logger

	window  int
	workers int

	// states tracks the propagation state machine per frame. Frames
	// absent from the map are unvisited.
	states map[int]model.FrameState

	// visited holds frames with a computed result. Memory-context
	// eligibility is visited minus stale; the causal rule of propagation
	// is enforced by only ever passing that set to the memory bank.
	visited *roaring.Bitmap

	// stale holds frames whose results were invalidated by a prompt edit
	// upstream and must be recomputed by the next pass.
	stale *roaring.Bitmap

	scoreCalls atomic.Int64
}

// New creates an engine over an ingested frame store.
func New(frames *framestore.Store, sc scorer.Scorer, opts ...Option) *Engine {
	e := &Engine{
		frames:  frames,
		scorer:  sc,
		logger:  noopLogger{},
		window:  membank.DefaultWindow,
		states:  make(map[int]model.FrameState),
		visited: roaring.New(),
		stale:   roaring.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.reg = registry.New()
	e.bank = membank.New(e.window)
	if e.workers > 1 {
		e.pool = NewWorkerPool(e.workers)
	}

	return e
}

// NumFrames returns the number of stored frames.
func (e *Engine) NumFrames() int {
	return e.frames.Len()
}

// NumObjects returns the number of tracked objects.
func (e *Engine) NumObjects() int {
	return e.reg.Len()
}

// MemoryEntries returns the number of memory-bank entries.
func (e *Engine) MemoryEntries() int {
	return e.bank.Len()
}

// ScoreCalls returns the number of scoring-function invocations so far.
func (e *Engine) ScoreCalls() int64 {
	return e.scoreCalls.Load()
}

// FrameState returns the propagation state of a frame.
func (e *Engine) FrameState(index int) model.FrameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[index]
}

// Result returns a copy of the stored mask result for (object, frame).
func (e *Engine) Result(id model.ObjectID, frameIndex int) (model.MaskResult, bool) {
	return e.reg.Result(id, frameIndex)
}

// Objects returns all tracked object ids in insertion order.
func (e *Engine) Objects() []model.ObjectID {
	return e.reg.IDs()
}

// ComputedFrames returns the sorted frame indices with a stored result for
// the object.
func (e *Engine) ComputedFrames(id model.ObjectID) []int {
	set := e.reg.ComputedFrames(id)
	out := make([]int, 0, set.GetCardinality())
	set.Iterate(func(v uint32) bool {
		out = append(out, int(v))
		return true
	})
	return out
}

// FirstSeenFrame returns the frame on which the object was first prompted.
func (e *Engine) FirstSeenFrame(id model.ObjectID) (int, bool) {
	return e.reg.FirstSeenFrame(id)
}

// Reset clears objects, prompts, results and memory. Frames are retained.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reg.Clear()
	e.bank.Clear()
	e.states = make(map[int]model.FrameState)
	e.visited.Clear()
	e.stale.Clear()

	e.logger.Infof("state reset: %d frames retained", e.frames.Len())
}

// Close releases engine resources. The frame store is owned by the caller
// and stays open.
func (e *Engine) Close() error {
	if e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// AddPoints appends point prompts for one object on one frame, immediately
// recomputes that frame for every object with data on it, and marks all
// downstream frames stale.
func (e *Engine) AddPoints(ctx context.Context, frameIndex int, id model.ObjectID, points []model.Point, labels []model.Label) (Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.frames.Len()
	if frameIndex < 0 || frameIndex >= n {
		return Output{}, &framestore.ErrOutOfRange{Index: frameIndex, Len: n}
	}
	if len(points) != len(labels) {
		return Output{}, ErrLabelMismatch
	}
	if !e.reg.Has(id) && len(points) == 0 {
		return Output{}, ErrEmptyPrompt
	}

	e.reg.EnsureObject(id, frameIndex)
	e.reg.AddPrompt(id, frameIndex, points, labels)

	// Forward invalidation: everything after the edited frame is stale.
	// Frames strictly before it keep their results untouched. Marked before
	// conditioning so the invalidated results drop out of the memory
	// context of the recompute.
	if frameIndex+1 < n {
		e.stale.AddRange(uint64(frameIndex+1), uint64(n))
	}

	out, err := e.conditionLocked(ctx, frameIndex)
	if err != nil {
		return Output{}, err
	}

	e.logger.Infof("prompt added: frame=%d object=%d points=%d", frameIndex, id, len(points))
	return out, nil
}

// conditionLocked recomputes one frame via the prompt conditioner: every
// tracked object with any data (prompt or result) on the frame is scored in
// one batched call against the frame's pixels. The frame transitions to
// Conditioned and its memory entries are refreshed.
func (e *Engine) conditionLocked(ctx context.Context, frameIndex int) (Output, error) {
	frame, err := e.frames.Get(ctx, frameIndex)
	if err != nil {
		return Output{}, err
	}

	var ids []model.ObjectID
	for _, id := range e.reg.IDs() {
		if e.reg.HasData(id, frameIndex) {
			ids = append(ids, id)
		}
	}

	out, err := e.scoreFrame(ctx, frame, ids, model.DirectionForward)
	if err != nil {
		return Output{}, err
	}

	e.states[frameIndex] = model.FrameConditioned
	e.visited.Add(uint32(frameIndex))
	e.stale.Remove(uint32(frameIndex))
	e.frames.Release(frameIndex)

	return out, nil
}

// scoreFrame scores the given objects against one frame and writes results
// and memory entries back. Callers hold e.mu.
func (e *Engine) scoreFrame(ctx context.Context, frame model.Frame, ids []model.ObjectID, dir model.Direction) (Output, error) {
	// Stale frames hold invalidated results; they stay out of the memory
	// context until recomputed.
	eligible := roaring.AndNot(e.visited, e.stale)

	contexts := make([]scorer.ObjectContext, len(ids))
	for i, id := range ids {
		oc := scorer.ObjectContext{
			ObjectID: id,
			Memory:   e.bank.ContextFor(id, frame.Index, dir, eligible),
		}
		if p, ok := e.reg.Prompt(id, frame.Index); ok {
			oc.Prompt = &p
		}
		contexts[i] = oc
	}

	if err := e.res.WaitScore(ctx); err != nil {
		return Output{}, err
	}

	logits, err := e.score(ctx, frame, contexts)
	if err != nil {
		e.logger.Errorf("scoring failed: frame=%d objects=%d err=%v", frame.Index, len(ids), err)
		return Output{}, err
	}

	out := Output{FrameIndex: frame.Index, ObjectIDs: ids, Logits: logits}
	for i, id := range ids {
		res := model.MaskResult{
			ObjectID:   id,
			FrameIndex: frame.Index,
			Size:       frame.Size,
			Logits:     logits[i],
		}
		e.reg.SetResult(res)
		e.bank.Record(res)
	}
	return out, nil
}

// score invokes the scoring function: one batched call per frame, or a
// bounded per-object fan-out over the worker pool when the scorer is a
// plain per-object Func.
func (e *Engine) score(ctx context.Context, frame model.Frame, contexts []scorer.ObjectContext) ([][]float32, error) {
	e.scoreCalls.Add(1)

	fn, isFunc := e.scorer.(scorer.Func)
	if !isFunc || e.pool == nil || len(contexts) < 2 {
		return e.scorer.Score(ctx, frame, contexts)
	}

	logits := make([][]float32, len(contexts))
	errs := make([]error, len(contexts))

	var wg sync.WaitGroup
	for i, oc := range contexts {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			logits[i], errs[i] = fn(ctx, frame, oc)
		}
		if err := e.pool.Submit(ctx, task); err != nil {
			wg.Done()
			return nil, err
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return logits, nil
}

// cachedOutput assembles an Output from stored results without recomputing.
// Callers hold e.mu.
func (e *Engine) cachedOutput(frameIndex int) Output {
	ids := e.reg.IDs()
	out := Output{FrameIndex: frameIndex}
	for _, id := range ids {
		if res, ok := e.reg.Result(id, frameIndex); ok {
			out.ObjectIDs = append(out.ObjectIDs, id)
			out.Logits = append(out.Logits, res.Logits)
		}
	}
	return out
}
