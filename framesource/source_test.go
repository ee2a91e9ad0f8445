package framesource

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/videoseg/model"
)

func writeJPEG(t *testing.T, path string, c color.RGBA, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	// Out-of-lexicographic numeric names on purpose: 2 < 10.
	writeJPEG(t, filepath.Join(dir, "2.jpg"), color.RGBA{R: 255, A: 255}, 32, 16)
	writeJPEG(t, filepath.Join(dir, "10.jpg"), color.RGBA{G: 255, A: 255}, 32, 16)
	writeJPEG(t, filepath.Join(dir, "1.jpg"), color.RGBA{B: 255, A: 255}, 32, 16)

	src, err := NewDirSource(dir, DefaultNormalization(8))
	require.NoError(t, err)
	require.Equal(t, 3, src.Len())

	ctx := context.Background()
	f0, err := src.Frame(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, f0.Index)
	assert.Equal(t, 8, f0.Size)
	assert.Equal(t, 16, f0.OrigHeight)
	assert.Equal(t, 32, f0.OrigWidth)
	assert.Len(t, f0.Pixels, model.FrameChannels*8*8)

	// 1.jpg is blue, so after normalization the blue plane dominates red.
	plane := 8 * 8
	assert.Greater(t, f0.Pixels[2*plane], f0.Pixels[0])

	// 2.jpg sorts before 10.jpg numerically; 2.jpg is red.
	f1, err := src.Frame(ctx, 1)
	require.NoError(t, err)
	assert.Greater(t, f1.Pixels[0], f1.Pixels[2*plane])
}

func TestDirSourceEmpty(t *testing.T) {
	_, err := NewDirSource(t.TempDir(), DefaultNormalization(8))
	assert.ErrorIs(t, err, ErrNoFramesFound)
}

func TestDirSourceUnsupportedEntry(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "0.jpg"), color.RGBA{A: 255}, 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	_, err := NewDirSource(dir, DefaultNormalization(8))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestStaticSource(t *testing.T) {
	frames := []model.Frame{
		{Size: 4, Pixels: make([]float32, model.FrameChannels*16)},
		{Size: 4, Pixels: make([]float32, model.FrameChannels*16)},
	}
	src, err := NewStaticSource(frames)
	require.NoError(t, err)
	require.Equal(t, 2, src.Len())

	f, err := src.Frame(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Index)

	_, err = src.Frame(context.Background(), 2)
	assert.Error(t, err)

	_, err = NewStaticSource(nil)
	assert.ErrorIs(t, err, ErrNoFramesFound)
}
