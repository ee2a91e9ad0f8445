// Package membank holds the per-object, per-frame memory that conditions
// predictions on frames without direct prompts.
//
// A memory entry is a condensed summary of a computed mask, never raw
// pixels. The bank enforces the causal rule of propagation structurally:
// ContextFor only ever returns entries whose frame is in the caller's
// visited set, so not-yet-computed future information cannot leak into a
// prediction.
package membank

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/videoseg/model"
)

// DefaultWindow is the default per-object retention window in frames.
const DefaultWindow = 16

// Bank is the memory bank of one session.
// All methods are safe for concurrent use; the engine serializes mutations.
type Bank struct {
	mu      sync.RWMutex
	window  int
	seq     uint64
	entries map[model.ObjectID]map[int]*model.MemoryEntry
}

// New creates a bank with the given per-object retention window.
// window <= 0 disables pruning (unbounded memory on long videos).
func New(window int) *Bank {
	return &Bank{
		window:  window,
		entries: make(map[model.ObjectID]map[int]*model.MemoryEntry),
	}
}

// Record derives and stores the memory entry for (object, frame) from a
// computed mask, overwriting any prior entry for that key. When the
// per-object retention window is exceeded, the entries recorded longest ago
// are pruned.
func (b *Bank) Record(res model.MaskResult) model.MemoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	entry := model.MemoryEntry{
		ObjectID:   res.ObjectID,
		FrameIndex: res.FrameIndex,
		Summary:    res.Summarize(),
		Seq:        b.seq,
	}

	perObj, ok := b.entries[res.ObjectID]
	if !ok {
		perObj = make(map[int]*model.MemoryEntry)
		b.entries[res.ObjectID] = perObj
	}
	perObj[res.FrameIndex] = &entry

	b.pruneLocked(perObj)
	return entry
}

// pruneLocked drops the oldest-recorded entries beyond the window.
func (b *Bank) pruneLocked(perObj map[int]*model.MemoryEntry) {
	if b.window <= 0 || len(perObj) <= b.window {
		return
	}

	all := make([]*model.MemoryEntry, 0, len(perObj))
	for _, e := range perObj {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })

	for _, e := range all[:len(all)-b.window] {
		delete(perObj, e.FrameIndex)
	}
}

// Has reports whether an entry exists for (object, frame).
func (b *Bank) Has(id model.ObjectID, frameIndex int) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	perObj, ok := b.entries[id]
	if !ok {
		return false
	}
	_, ok = perObj[frameIndex]
	return ok
}

// ContextFor returns the conditioning context for predicting frameIndex in
// the given temporal direction: the object's entries whose frame is in the
// visited set, ordered by temporal distance from frameIndex (nearest
// first). Entries at frameIndex itself are excluded.
func (b *Bank) ContextFor(id model.ObjectID, frameIndex int, dir model.Direction, visited *roaring.Bitmap) []model.MemoryEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	perObj, ok := b.entries[id]
	if !ok {
		return nil
	}

	out := make([]model.MemoryEntry, 0, len(perObj))
	for frame, e := range perObj {
		if frame == frameIndex {
			continue
		}
		if visited == nil || !visited.Contains(uint32(frame)) {
			continue
		}
		out = append(out, *e)
	}

	sort.Slice(out, func(i, j int) bool {
		di := absDelta(out[i].FrameIndex, frameIndex)
		dj := absDelta(out[j].FrameIndex, frameIndex)
		if di != dj {
			return di < dj
		}
		// Ties (one frame before, one after): prefer the causal side.
		if dir == model.DirectionBackward {
			return out[i].FrameIndex > out[j].FrameIndex
		}
		return out[i].FrameIndex < out[j].FrameIndex
	})
	return out
}

func absDelta(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// Len returns the total number of entries across all objects.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, perObj := range b.entries {
		n += len(perObj)
	}
	return n
}

// Clear removes all entries. The visitation sequence keeps counting so
// entries recorded after a reset still order after pre-reset ones.
func (b *Bank) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = make(map[model.ObjectID]map[int]*model.MemoryEntry)
}
