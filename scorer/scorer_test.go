package scorer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/videoseg/model"
)

func testFrame(size int) model.Frame {
	return model.Frame{
		Size:   size,
		Pixels: make([]float32, model.FrameChannels*size*size),
	}
}

func TestCentroidFromPrompt(t *testing.T) {
	ctx := context.Background()
	s := &Centroid{}
	frame := testFrame(16)

	prompt := &model.Prompt{
		ObjectID: 1,
		Points:   []model.Point{{X: 8, Y: 8}},
		Labels:   []model.Label{model.LabelPositive},
	}

	out, err := s.Score(ctx, frame, []ObjectContext{{ObjectID: 1, Prompt: prompt}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0], 16*16)

	// Positive at the click, negative far away.
	assert.Greater(t, out[0][8*16+8], float32(0))
	assert.Less(t, out[0][0], float32(0))
}

func TestCentroidDeterministic(t *testing.T) {
	ctx := context.Background()
	s := &Centroid{}
	frame := testFrame(8)

	obj := ObjectContext{
		ObjectID: 1,
		Prompt: &model.Prompt{
			Points: []model.Point{{X: 4, Y: 4}},
			Labels: []model.Label{model.LabelPositive},
		},
	}

	a, err := s.Score(ctx, frame, []ObjectContext{obj})
	require.NoError(t, err)
	b, err := s.Score(ctx, frame, []ObjectContext{obj})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCentroidNegativePointCarves(t *testing.T) {
	ctx := context.Background()
	s := &Centroid{}
	frame := testFrame(16)

	base := ObjectContext{
		ObjectID: 1,
		Prompt: &model.Prompt{
			Points: []model.Point{{X: 8, Y: 8}},
			Labels: []model.Label{model.LabelPositive},
		},
	}
	refined := ObjectContext{
		ObjectID: 1,
		Prompt: &model.Prompt{
			Points: []model.Point{{X: 8, Y: 8}, {X: 9, Y: 8}},
			Labels: []model.Label{model.LabelPositive, model.LabelNegative},
		},
	}

	before, err := s.Score(ctx, frame, []ObjectContext{base})
	require.NoError(t, err)
	after, err := s.Score(ctx, frame, []ObjectContext{refined})
	require.NoError(t, err)

	assert.Less(t, after[0][8*16+9], before[0][8*16+9])
}

func TestCentroidFromMemory(t *testing.T) {
	ctx := context.Background()
	s := &Centroid{}
	frame := testFrame(16)

	obj := ObjectContext{
		ObjectID: 1,
		Memory: []model.MemoryEntry{{
			ObjectID:   1,
			FrameIndex: 0,
			Summary:    model.FeatureSummary{CentroidX: 4, CentroidY: 4, Area: 12},
		}},
	}

	out, err := s.Score(ctx, frame, []ObjectContext{obj})
	require.NoError(t, err)
	assert.Greater(t, out[0][4*16+4], float32(0))
	assert.Less(t, out[0][15*16+15], float32(0))
}

func TestCentroidNoData(t *testing.T) {
	out, err := (&Centroid{}).Score(context.Background(), testFrame(4), []ObjectContext{{ObjectID: 1}})
	require.NoError(t, err)
	for _, l := range out[0] {
		assert.Negative(t, l)
	}
}

func TestCentroidScalesPromptCoordinates(t *testing.T) {
	ctx := context.Background()
	s := &Centroid{}

	frame := testFrame(16)
	frame.OrigWidth = 160
	frame.OrigHeight = 160

	obj := ObjectContext{
		ObjectID: 1,
		Prompt: &model.Prompt{
			Points: []model.Point{{X: 80, Y: 80}}, // center in original coords
			Labels: []model.Label{model.LabelPositive},
		},
	}

	out, err := s.Score(ctx, frame, []ObjectContext{obj})
	require.NoError(t, err)
	assert.Greater(t, out[0][8*16+8], float32(0))
}

func TestFuncAdapter(t *testing.T) {
	ctx := context.Background()
	frame := testFrame(2)

	calls := 0
	f := Func(func(_ context.Context, _ model.Frame, obj ObjectContext) ([]float32, error) {
		calls++
		return []float32{float32(obj.ObjectID), 0, 0, 0}, nil
	})

	out, err := f.Score(ctx, frame, []ObjectContext{{ObjectID: 1}, {ObjectID: 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 1, out[0][0])
	assert.EqualValues(t, 2, out[1][0])

	boom := errors.New("boom")
	f = Func(func(context.Context, model.Frame, ObjectContext) ([]float32, error) {
		return nil, boom
	})
	_, err = f.Score(ctx, frame, []ObjectContext{{ObjectID: 1}})
	assert.ErrorIs(t, err, boom)
}
