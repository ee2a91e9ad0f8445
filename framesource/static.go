package framesource

import (
	"context"
	"fmt"

	"github.com/hupe1980/videoseg/model"
)

// StaticSource serves pre-built frames from memory. It is mainly useful in
// tests and for callers that decode frames themselves.
type StaticSource struct {
	frames []model.Frame
}

// NewStaticSource creates a source over the given frames. Frame indices are
// rewritten to positional order.
func NewStaticSource(frames []model.Frame) (*StaticSource, error) {
	if len(frames) == 0 {
		return nil, ErrNoFramesFound
	}
	out := make([]model.Frame, len(frames))
	copy(out, frames)
	for i := range out {
		out[i].Index = i
	}
	return &StaticSource{frames: out}, nil
}

// Len returns the number of frames.
func (s *StaticSource) Len() int {
	return len(s.frames)
}

// Frame returns the frame at the given index.
func (s *StaticSource) Frame(_ context.Context, index int) (model.Frame, error) {
	if index < 0 || index >= len(s.frames) {
		return model.Frame{}, fmt.Errorf("frame index %d out of range [0,%d)", index, len(s.frames))
	}
	return s.frames[index], nil
}
