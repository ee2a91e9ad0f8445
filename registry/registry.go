// Package registry tracks the objects of a segmentation session: their
// identity, cumulative prompt history and per-frame mask results.
//
// Object iteration order is insertion order, which fixes the deterministic
// per-frame output ordering of the whole engine.
package registry

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/videoseg/model"
)

// TrackedObject is one object of the session. Objects are created on the
// first prompt that references their id and live until a full reset.
type TrackedObject struct {
	ID             model.ObjectID
	FirstSeenFrame int

	prompts  map[int]*model.Prompt
	results  map[int]*model.MaskResult
	computed *roaring.Bitmap // frames with a stored result
}

// Registry is the object bookkeeping of one session.
// All methods are safe for concurrent use; the engine serializes mutations.
type Registry struct {
	mu      sync.RWMutex
	order   []model.ObjectID
	objects map[model.ObjectID]*TrackedObject
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		objects: make(map[model.ObjectID]*TrackedObject),
	}
}

// EnsureObject creates the object on first use and is a no-op otherwise.
// Reports whether the object was newly created.
func (r *Registry) EnsureObject(id model.ObjectID, firstSeenFrame int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.objects[id]; ok {
		return false
	}
	r.objects[id] = &TrackedObject{
		ID:             id,
		FirstSeenFrame: firstSeenFrame,
		prompts:        make(map[int]*model.Prompt),
		results:        make(map[int]*model.MaskResult),
		computed:       roaring.New(),
	}
	r.order = append(r.order, id)
	return true
}

// Has reports whether the object exists.
func (r *Registry) Has(id model.ObjectID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.objects[id]
	return ok
}

// AddPrompt appends points/labels to the cumulative prompt of the
// (object, frame) pair. The object must exist.
func (r *Registry) AddPrompt(id model.ObjectID, frameIndex int, points []model.Point, labels []model.Label) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := r.objects[id]
	p, ok := obj.prompts[frameIndex]
	if !ok {
		p = &model.Prompt{ObjectID: id, FrameIndex: frameIndex}
		obj.prompts[frameIndex] = p
	}
	p.Points = append(p.Points, points...)
	p.Labels = append(p.Labels, labels...)
}

// Prompt returns a copy of the cumulative prompt for (object, frame).
func (r *Registry) Prompt(id model.ObjectID, frameIndex int) (model.Prompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[id]
	if !ok {
		return model.Prompt{}, false
	}
	p, ok := obj.prompts[frameIndex]
	if !ok {
		return model.Prompt{}, false
	}
	return p.Clone(), true
}

// PromptedFrames returns the sorted set of frames carrying at least one
// direct prompt for any object.
func (r *Registry) PromptedFrames() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := roaring.New()
	for _, obj := range r.objects {
		for frame := range obj.prompts {
			set.Add(uint32(frame))
		}
	}

	out := make([]int, 0, set.GetCardinality())
	set.Iterate(func(v uint32) bool {
		out = append(out, int(v))
		return true
	})
	return out
}

// SetResult stores (or overwrites) the mask result for its (object, frame).
func (r *Registry) SetResult(res model.MaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.objects[res.ObjectID]
	if !ok {
		return
	}
	clone := res.Clone()
	obj.results[res.FrameIndex] = &clone
	obj.computed.Add(uint32(res.FrameIndex))
}

// Result returns a copy of the mask result for (object, frame).
func (r *Registry) Result(id model.ObjectID, frameIndex int) (model.MaskResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[id]
	if !ok {
		return model.MaskResult{}, false
	}
	res, ok := obj.results[frameIndex]
	if !ok {
		return model.MaskResult{}, false
	}
	return res.Clone(), true
}

// HasData reports whether the object has any data (prompt or result) on the
// given frame.
func (r *Registry) HasData(id model.ObjectID, frameIndex int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[id]
	if !ok {
		return false
	}
	if _, ok := obj.prompts[frameIndex]; ok {
		return true
	}
	_, ok = obj.results[frameIndex]
	return ok
}

// ComputedFrames returns a copy of the set of frames with a stored result
// for the object.
func (r *Registry) ComputedFrames(id model.ObjectID) *roaring.Bitmap {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[id]
	if !ok {
		return roaring.New()
	}
	return obj.computed.Clone()
}

// IDs returns all object ids in insertion order.
func (r *Registry) IDs() []model.ObjectID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ObjectID, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of tracked objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// FirstSeenFrame returns the frame on which the object was first prompted.
func (r *Registry) FirstSeenFrame(id model.ObjectID) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[id]
	if !ok {
		return 0, false
	}
	return obj.FirstSeenFrame, true
}

// Clear removes all objects, prompts and results.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = nil
	r.objects = make(map[model.ObjectID]*TrackedObject)
}
