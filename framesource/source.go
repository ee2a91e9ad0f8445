// Package framesource provides read-only, ordered providers of decoded and
// normalized video frames for session ingestion.
//
// A Source yields frames by index in temporal order. Sources never cache or
// mutate: the frame store owns frame lifetime and tiering.
package framesource

import (
	"context"
	"errors"

	"github.com/hupe1980/videoseg/model"
)

var (
	// ErrNoFramesFound is returned when a source yields zero frames.
	ErrNoFramesFound = errors.New("no frames found")

	// ErrUnsupportedFormat is returned when a source entry is not a
	// decodable image.
	ErrUnsupportedFormat = errors.New("unsupported frame format")
)

// Source is a read-only ordered provider of decoded, normalized frames.
type Source interface {
	// Len returns the number of frames.
	Len() int

	// Frame decodes and returns the frame at the given index (0-based).
	// The returned frame is already resized to the model resolution and
	// normalized per channel.
	Frame(ctx context.Context, index int) (model.Frame, error)
}

// Normalization describes how raw images are turned into model input.
type Normalization struct {
	// Resolution is the square model resolution frames are resized to.
	Resolution int
	// Mean and Std are per-channel (RGB) normalization constants applied
	// to pixel values scaled to [0,1].
	Mean [3]float32
	Std  [3]float32
}

// DefaultNormalization returns the standard ImageNet normalization at the
// given resolution.
func DefaultNormalization(resolution int) Normalization {
	return Normalization{
		Resolution: resolution,
		Mean:       [3]float32{0.485, 0.456, 0.406},
		Std:        [3]float32{0.229, 0.224, 0.225},
	}
}
