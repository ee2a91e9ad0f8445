package framesource

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/hupe1980/videoseg/model"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// DirSource reads frames from a directory of image files, one image per
// frame. File names are ordered numerically when every stem is an integer
// (the usual "00000.jpg" layout), lexicographically otherwise.
type DirSource struct {
	norm  Normalization
	paths []string
}

// NewDirSource scans dir and returns a source over its image files.
// It fails with ErrNoFramesFound if the directory holds no files and with
// ErrUnsupportedFormat if any entry is not an image file.
func NewDirSource(dir string, norm Normalization) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !imageExts[ext] {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, e.Name())
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFramesFound, dir)
	}

	sortFramePaths(paths)

	return &DirSource{norm: norm, paths: paths}, nil
}

// Len returns the number of frames.
func (s *DirSource) Len() int {
	return len(s.paths)
}

// Frame decodes, resizes and normalizes the frame at the given index.
func (s *DirSource) Frame(ctx context.Context, index int) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}
	if index < 0 || index >= len(s.paths) {
		return model.Frame{}, fmt.Errorf("frame index %d out of range [0,%d)", index, len(s.paths))
	}

	img, err := imaging.Open(s.paths[index])
	if err != nil {
		return model.Frame{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, filepath.Base(s.paths[index]), err)
	}

	return Convert(img, index, s.norm), nil
}

// Convert resizes a decoded image to the model resolution and normalizes it
// into a channel-major float32 frame.
func Convert(img image.Image, index int, norm Normalization) model.Frame {
	origBounds := img.Bounds()
	resized := imaging.Resize(img, norm.Resolution, norm.Resolution, imaging.Linear)

	r := norm.Resolution
	plane := r * r
	pixels := make([]float32, model.FrameChannels*plane)
	for y := 0; y < r; y++ {
		for x := 0; x < r; x++ {
			// NRGBA layout: 4 bytes per pixel.
			off := resized.PixOffset(x, y)
			for c := 0; c < model.FrameChannels; c++ {
				v := float32(resized.Pix[off+c]) / 255.0
				pixels[c*plane+y*r+x] = (v - norm.Mean[c]) / norm.Std[c]
			}
		}
	}

	return model.Frame{
		Index:      index,
		Size:       r,
		OrigHeight: origBounds.Dy(),
		OrigWidth:  origBounds.Dx(),
		Pixels:     pixels,
	}
}

func sortFramePaths(paths []string) {
	numeric := true
	keys := make([]int, len(paths))
	for i, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		n, err := strconv.Atoi(stem)
		if err != nil {
			numeric = false
			break
		}
		keys[i] = n
	}

	if numeric {
		sort.Sort(&byKey{paths: paths, keys: keys})
		return
	}
	sort.Strings(paths)
}

type byKey struct {
	paths []string
	keys  []int
}

func (b *byKey) Len() int           { return len(b.paths) }
func (b *byKey) Less(i, j int) bool { return b.keys[i] < b.keys[j] }
func (b *byKey) Swap(i, j int) {
	b.paths[i], b.paths[j] = b.paths[j], b.paths[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}
