// Package scorer defines the pluggable scoring function the engine
// conditions on: given one frame and per-object context (cumulative prompts
// and/or memory entries), produce per-object, per-pixel mask logits.
//
// The scoring function stands in for a neural feature extractor and mask
// decoder. The engine only requires determinism: identical inputs must
// yield identical logits, which makes re-propagation idempotent.
package scorer

import (
	"context"

	"github.com/hupe1980/videoseg/model"
)

// ObjectContext is everything the scorer may condition on for one object on
// one frame.
type ObjectContext struct {
	ObjectID model.ObjectID

	// Prompt is the cumulative point prompt on this frame, nil if the
	// object has no direct prompt here.
	Prompt *model.Prompt

	// Memory holds the causal conditioning entries, nearest frame first.
	Memory []model.MemoryEntry
}

// Scorer scores all requested objects against one frame in a single call,
// so shared per-frame work (image features) is amortized across objects:
// cost scales with frames processed, not frames x objects.
//
// The returned slice is parallel to objs; each element is a logit grid of
// frame.Size*frame.Size values. Implementations must be deterministic and
// safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, frame model.Frame, objs []ObjectContext) ([][]float32, error)
}

// Func adapts a per-object scoring function to the Scorer interface.
//
// The adapter itself scores objects sequentially; the engine may instead
// fan a Func out over its worker pool, since object channels are
// independent given a fixed context snapshot.
type Func func(ctx context.Context, frame model.Frame, obj ObjectContext) ([]float32, error)

// Score implements Scorer.
func (f Func) Score(ctx context.Context, frame model.Frame, objs []ObjectContext) ([][]float32, error) {
	out := make([][]float32, len(objs))
	for i, obj := range objs {
		logits, err := f(ctx, frame, obj)
		if err != nil {
			return nil, err
		}
		out[i] = logits
	}
	return out, nil
}
