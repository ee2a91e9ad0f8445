package scorer

import (
	"context"
	"math"

	"github.com/hupe1980/videoseg/model"
)

// Centroid is a deterministic geometric scorer: each object is modeled as a
// disk around the mean of its positive prompt points, or around the nearest
// memory centroid when the frame carries no direct prompt. Negative points
// carve holes.
//
// It is no substitute for a neural mask decoder, but it exercises every
// engine contract (prompt conditioning, memory propagation, batching) and
// gives tests and examples a model-free scorer.
type Centroid struct {
	// DefaultRadius is the disk radius, as a fraction of the frame
	// resolution, used when no memory-derived area is available.
	// Defaults to 1/8.
	DefaultRadius float32
}

// Score implements Scorer.
func (c *Centroid) Score(ctx context.Context, frame model.Frame, objs []ObjectContext) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(objs))
	for i, obj := range objs {
		out[i] = c.scoreObject(frame, obj)
	}
	return out, nil
}

func (c *Centroid) scoreObject(frame model.Frame, obj ObjectContext) []float32 {
	r := frame.Size
	logits := make([]float32, r*r)

	cx, cy, radius, ok := c.locate(frame, obj)
	if !ok {
		for i := range logits {
			logits[i] = -1
		}
		return logits
	}

	var negatives []model.Point
	if obj.Prompt != nil {
		for i, l := range obj.Prompt.Labels {
			if l == model.LabelNegative {
				negatives = append(negatives, gridPoint(frame, obj.Prompt.Points[i]))
			}
		}
	}

	negRadius := radius / 2
	for y := 0; y < r; y++ {
		for x := 0; x < r; x++ {
			d := dist(float32(x), float32(y), cx, cy)
			l := radius - d
			for _, n := range negatives {
				if nd := dist(float32(x), float32(y), n.X, n.Y); nd < negRadius {
					l -= 2 * (negRadius - nd)
				}
			}
			logits[y*r+x] = l
		}
	}
	return logits
}

// locate picks the disk center and radius in logit-grid coordinates.
func (c *Centroid) locate(frame model.Frame, obj ObjectContext) (cx, cy, radius float32, ok bool) {
	defRadius := c.DefaultRadius
	if defRadius <= 0 {
		defRadius = 0.125
	}
	radius = defRadius * float32(frame.Size)

	if obj.Prompt != nil {
		var sx, sy float32
		n := 0
		for i, l := range obj.Prompt.Labels {
			if l != model.LabelPositive {
				continue
			}
			p := gridPoint(frame, obj.Prompt.Points[i])
			sx += p.X
			sy += p.Y
			n++
		}
		if n > 0 {
			return sx / float32(n), sy / float32(n), radius, true
		}
	}

	if len(obj.Memory) > 0 {
		// Nearest-frame entry first, by contract.
		m := obj.Memory[0].Summary
		if m.Area > 0 {
			radius = float32(math.Sqrt(float64(m.Area) / math.Pi))
		}
		return m.CentroidX, m.CentroidY, radius, true
	}

	return 0, 0, 0, false
}

// gridPoint maps a prompt point from original-image coordinates to the
// logit grid. Points are passed through unscaled when the frame has no
// recorded original size.
func gridPoint(frame model.Frame, p model.Point) model.Point {
	if frame.OrigWidth <= 0 || frame.OrigHeight <= 0 {
		return p
	}
	return model.Point{
		X: p.X * float32(frame.Size) / float32(frame.OrigWidth),
		Y: p.Y * float32(frame.Size) / float32(frame.OrigHeight),
	}
}

func dist(x, y, cx, cy float32) float32 {
	dx := x - cx
	dy := y - cy
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}
