// Package videoseg provides a stateful inference-state manager and mask
// propagation engine for interactive video object segmentation.
//
// Videoseg manages the full lifecycle of a segmentation session with
// production-ready features including:
//
//   - Two-tier frame storage: byte-budgeted LRU fast tier over a pluggable
//     slow blob tier (memory, local disk, S3-compatible)
//   - Optional LZ4/Zstd compression of frame records in the slow tier
//   - Interactive point prompting with cumulative refinement per
//     (object, frame) pair
//   - Lazy forward/backward/bidirectional mask propagation with replay of
//     stored results and forward-only invalidation on prompt edits
//   - Causal per-object memory with a bounded retention window
//   - Online single-frame inference for streaming video
//   - Pluggable scoring backends, batched per frame, with optional
//     per-object worker fan-out and a scoring rate limit
//   - Structured logging (slog) and pluggable metrics collection
//
// # Quick Start
//
// Open a session over a directory of frames and segment an object:
//
//	ctx := context.Background()
//	src, err := framesource.NewDirSource("./frames", framesource.DefaultNormalization(512))
//	if err != nil {
//	    panic(err)
//	}
//
//	s, err := videoseg.Open(ctx, src, myScorer,
//	    videoseg.WithFastTierBudget(512<<20),
//	    videoseg.WithCompression(videoseg.CompressionLZ4),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer s.Close()
//
//	// Click on the object in frame 0.
//	out, err := s.AddNewPoints(ctx, 0, 1,
//	    []model.Point{{X: 210, Y: 350}},
//	    []model.Label{model.LabelPositive},
//	)
//
// Propagate the mask through the video:
//
//	pass := s.PropagateInVideo()
//	defer pass.Close()
//	for {
//	    out, ok, err := pass.Next(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if !ok {
//	        break
//	    }
//	    render(out)
//	}
//
// Refine and re-propagate: adding points on a frame recomputes that frame
// immediately and invalidates only the frames after it, so a second pass
// replays everything upstream from storage.
//
// For streaming video, append frames as they arrive:
//
//	out, err := s.RunSingleFrame(ctx, frame, s.NumFrames())
package videoseg

import (
	"context"
	"time"

	"github.com/hupe1980/videoseg/codec"
	"github.com/hupe1980/videoseg/engine"
	"github.com/hupe1980/videoseg/framesource"
	"github.com/hupe1980/videoseg/framestore"
	"github.com/hupe1980/videoseg/internal/resource"
	"github.com/hupe1980/videoseg/model"
	"github.com/hupe1980/videoseg/scorer"
)

// FrameOutput is the per-frame result of conditioning, propagation or online
// inference. ObjectIDs is in object insertion order; Logits is parallel to
// it, one dense logit grid per object.
type FrameOutput struct {
	FrameIndex int
	ObjectIDs  []model.ObjectID
	Logits     [][]float32
}

// Stats is a snapshot of session state.
type Stats struct {
	Frames         int
	Objects        int
	MemoryEntries  int
	ResidentFrames int
	ResidentBytes  int64
	ScoreCalls     int64
}

// Session is one video segmentation session: the ingested frame sequence
// plus all mutable inference state (objects, prompts, results, memory).
//
// All methods are safe for concurrent use; mutating operations are
// serialized internally.
type Session struct {
	frames  *framestore.Store
	engine  *engine.Engine
	codec   codec.Codec
	metrics MetricsCollector
	logger  *Logger
}

// Open ingests every frame of the source and returns a ready session. The
// scorer computes per-object mask logits for a frame; it must not be nil.
//
// Ingestion is a one-time step: frames are decoded, normalized and encoded
// into the slow tier up front, so all later operations address frames by
// index only.
func Open(ctx context.Context, src framesource.Source, sc scorer.Scorer, optFns ...Option) (*Session, error) {
	if sc == nil {
		return nil, ErrNilScorer
	}

	o := applyOptions(optFns)

	rc := resource.NewController(resource.Config{
		FastTierBytes:   o.fastTierBytes,
		ScoreRatePerSec: o.scoreRatePerSec,
	})

	frames, err := framestore.Ingest(ctx, src, framestore.Config{
		Blobs:       o.blobs,
		Compression: o.compression,
		Controller:  rc,
		Prefetch:    o.prefetch,
	})
	if err != nil {
		return nil, translateError(err)
	}

	eng := engine.New(frames, sc,
		engine.WithController(rc),
		engine.WithMemoryWindow(o.memoryWindow),
		engine.WithWorkers(o.workers),
		engine.WithLogger(engineLogger{l: o.logger}),
	)

	o.logger.Info("session opened",
		"frames", frames.Len(),
		"compression", o.compression.String(),
	)

	return &Session{
		frames:  frames,
		engine:  eng,
		codec:   o.codec,
		metrics: o.metricsCollector,
		logger:  o.logger,
	}, nil
}

// AddNewPoints appends point prompts for one object on one frame and
// immediately recomputes that frame. The returned output carries the mask
// logits of every object with data on the frame, in insertion order.
//
// Prompts accumulate: calling twice with one point each is equivalent to
// calling once with both points. Frames after the edited frame are
// invalidated and recomputed by the next propagation pass; frames before it
// are untouched.
func (s *Session) AddNewPoints(ctx context.Context, frameIndex int, objectID model.ObjectID, points []model.Point, labels []model.Label) (FrameOutput, error) {
	start := time.Now()

	out, err := s.engine.AddPoints(ctx, frameIndex, objectID, points, labels)

	s.metrics.RecordAddPoints(time.Since(start), err)
	s.logger.LogAddPoints(frameIndex, int64(objectID), len(points), err)

	if err != nil {
		return FrameOutput{}, translateError(err)
	}
	return frameOutput(out), nil
}

// PropagateOption configures a propagation pass.
type PropagateOption = engine.PropagateOption

// FromFrame starts the pass at the given frame instead of the earliest
// prompted frame.
func FromFrame(index int) PropagateOption { return engine.FromFrame(index) }

// Reverse walks from the start frame toward frame 0.
func Reverse() PropagateOption { return engine.Reverse() }

// Bidirectional walks forward to the end of the video, then backward from
// the start frame to frame 0.
func Bidirectional() PropagateOption { return engine.Bidirectional() }

// MaxFrames caps the number of frames the pass will yield.
func MaxFrames(n int) PropagateOption { return engine.MaxFrames(n) }

// Pass is one lazy propagation traversal over the video. It is finite and
// single-use; results written before an error or cancellation are retained,
// and a fresh PropagateInVideo call resumes from current state.
type Pass struct {
	inner   *engine.Pass
	metrics MetricsCollector
	logger  *Logger
}

// PropagateInVideo plans a propagation pass. The pass starts at the earliest
// prompted frame (or the frame given via FromFrame) and yields one output
// per visited frame, recomputing frames that are unvisited or invalidated
// and replaying stored results for the rest.
func (s *Session) PropagateInVideo(optFns ...PropagateOption) *Pass {
	return &Pass{
		inner:   s.engine.Propagate(optFns...),
		metrics: s.metrics,
		logger:  s.logger,
	}
}

// Next advances the pass by one frame and returns its output. ok is false
// when the pass is exhausted.
func (p *Pass) Next(ctx context.Context) (FrameOutput, bool, error) {
	start := time.Now()

	out, ok, err := p.inner.Next(ctx)
	if !ok && err == nil {
		return FrameOutput{}, false, nil
	}

	p.metrics.RecordPropagationStep(len(out.ObjectIDs), time.Since(start), err)
	p.logger.LogPropagationStep(out.FrameIndex, len(out.ObjectIDs), err)

	if err != nil {
		return FrameOutput{}, false, translateError(err)
	}
	return frameOutput(out), true, nil
}

// Drain runs the pass to completion and returns all outputs.
func (p *Pass) Drain(ctx context.Context) ([]FrameOutput, error) {
	var outs []FrameOutput
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
	p.inner.Close()
}

// RunSingleFrame admits one streaming frame arriving after the interactive
// prompting phase: the frame is appended at the given index, scored for
// every tracked object against the current memory, and stored. No other
// frame is touched.
//
// Indices are dense and strictly increasing; the next admissible index is
// always NumFrames().
func (s *Session) RunSingleFrame(ctx context.Context, frame model.Frame, index int) (FrameOutput, error) {
	start := time.Now()

	out, err := s.engine.RunSingleFrame(ctx, frame, index)

	s.metrics.RecordOnlineFrame(time.Since(start), err)
	s.logger.LogOnlineFrame(index, err)

	if err != nil {
		return FrameOutput{}, translateError(err)
	}
	return frameOutput(out), nil
}

// Reset clears all objects, prompts, results and memory while retaining the
// ingested frames. The session is immediately reusable.
func (s *Session) Reset() {
	s.engine.Reset()
}

// NumFrames returns the number of stored frames.
func (s *Session) NumFrames() int {
	return s.frames.Len()
}

// Result returns a copy of the stored mask result for (object, frame).
func (s *Session) Result(id model.ObjectID, frameIndex int) (model.MaskResult, bool) {
	return s.engine.Result(id, frameIndex)
}

// FrameState returns the propagation state of a frame.
func (s *Session) FrameState(index int) model.FrameState {
	return s.engine.FrameState(index)
}

// Stats returns a snapshot of session state.
func (s *Session) Stats() Stats {
	resFrames, resBytes := s.frames.Resident()
	return Stats{
		Frames:         s.frames.Len(),
		Objects:        s.engine.NumObjects(),
		MemoryEntries:  s.engine.MemoryEntries(),
		ResidentFrames: resFrames,
		ResidentBytes:  resBytes,
		ScoreCalls:     s.engine.ScoreCalls(),
	}
}

// Close releases all session resources, including the frame store.
func (s *Session) Close() error {
	if err := s.engine.Close(); err != nil {
		return err
	}
	return s.frames.Close()
}

func frameOutput(out engine.Output) FrameOutput {
	return FrameOutput{
		FrameIndex: out.FrameIndex,
		ObjectIDs:  out.ObjectIDs,
		Logits:     out.Logits,
	}
}
