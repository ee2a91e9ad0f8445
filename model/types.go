package model

// ObjectID is the caller-assigned identifier of a tracked object.
// IDs are arbitrary but must be unique within a session.
type ObjectID int64

// FrameChannels is the number of color channels in a stored frame.
const FrameChannels = 3

// Label classifies a prompt point as foreground or background.
type Label int8

const (
	// LabelNegative marks a point as background ("not this object").
	LabelNegative Label = 0
	// LabelPositive marks a point as foreground ("this object").
	LabelPositive Label = 1
)

// Point is a prompt click in original-image pixel coordinates.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Prompt is the cumulative point/label history for one object on one frame.
// Points and Labels are parallel slices; refinement appends, never replaces.
type Prompt struct {
	ObjectID   ObjectID `json:"object_id"`
	FrameIndex int      `json:"frame_index"`
	Points     []Point  `json:"points"`
	Labels     []Label  `json:"labels"`
}

// Clone returns a deep copy of the prompt.
func (p *Prompt) Clone() Prompt {
	out := Prompt{
		ObjectID:   p.ObjectID,
		FrameIndex: p.FrameIndex,
		Points:     make([]Point, len(p.Points)),
		Labels:     make([]Label, len(p.Labels)),
	}
	copy(out.Points, p.Points)
	copy(out.Labels, p.Labels)
	return out
}

// Frame is one immutable video frame, resized to a square model resolution
// and normalized per channel at ingestion time.
//
// Pixels is laid out channel-major (CHW): FrameChannels planes of Size*Size
// float32 values. Frames are owned by the frame store and must not be
// mutated after ingestion.
type Frame struct {
	Index      int
	Size       int // square model resolution (width == height)
	OrigHeight int
	OrigWidth  int
	Pixels     []float32
}

// NumBytes returns the in-memory footprint of the pixel data.
func (f *Frame) NumBytes() int64 {
	return int64(len(f.Pixels)) * 4
}

// MaskResult is the per-pixel mask prediction for one object on one frame.
// The binary mask is Logits > 0. Exactly one result exists per
// (object, frame) pair; recomputation overwrites in place.
type MaskResult struct {
	ObjectID   ObjectID  `json:"object_id"`
	FrameIndex int       `json:"frame_index"`
	Size       int       `json:"size"` // square resolution of the logit grid
	Logits     []float32 `json:"logits"`
}

// Clone returns a deep copy of the result.
func (m *MaskResult) Clone() MaskResult {
	out := *m
	out.Logits = make([]float32, len(m.Logits))
	copy(out.Logits, m.Logits)
	return out
}

// Mask materializes the binary mask (Logits > 0).
func (m *MaskResult) Mask() []bool {
	out := make([]bool, len(m.Logits))
	for i, l := range m.Logits {
		out[i] = l > 0
	}
	return out
}

// Area returns the number of positive pixels.
func (m *MaskResult) Area() int {
	n := 0
	for _, l := range m.Logits {
		if l > 0 {
			n++
		}
	}
	return n
}

// FeatureSummary is the condensed representation of a computed mask kept in
// the memory bank. It never contains raw pixels.
type FeatureSummary struct {
	// CentroidX/CentroidY are the mask centroid in logit-grid coordinates.
	CentroidX float32 `json:"centroid_x"`
	CentroidY float32 `json:"centroid_y"`
	// Area is the positive-pixel count.
	Area float32 `json:"area"`
	// MeanLogit and MaxLogit are pooled over positive pixels.
	MeanLogit float32 `json:"mean_logit"`
	MaxLogit  float32 `json:"max_logit"`
}

// Summarize derives the memory-bank feature summary of a mask result.
func (m *MaskResult) Summarize() FeatureSummary {
	var s FeatureSummary
	var sx, sy, sum float64
	first := true
	for i, l := range m.Logits {
		if l <= 0 {
			continue
		}
		x := i % m.Size
		y := i / m.Size
		sx += float64(x)
		sy += float64(y)
		sum += float64(l)
		s.Area++
		if first || l > s.MaxLogit {
			s.MaxLogit = l
			first = false
		}
	}
	if s.Area > 0 {
		s.CentroidX = float32(sx / float64(s.Area))
		s.CentroidY = float32(sy / float64(s.Area))
		s.MeanLogit = float32(sum / float64(s.Area))
	}
	return s
}

// MemoryEntry conditions future-frame predictions on a past result for the
// same object. Seq is the global visitation order at record time; entries
// with a lower Seq were written earlier in the session.
type MemoryEntry struct {
	ObjectID   ObjectID       `json:"object_id"`
	FrameIndex int            `json:"frame_index"`
	Summary    FeatureSummary `json:"summary"`
	Seq        uint64         `json:"seq"`
}

// Direction selects the temporal walk order of a propagation pass.
type Direction int8

const (
	// DirectionForward walks from the start frame toward the end of the video.
	DirectionForward Direction = iota
	// DirectionBackward walks from the start frame toward frame 0.
	DirectionBackward
	// DirectionBoth walks forward first, then backward from the start frame.
	DirectionBoth
)

// String returns a human-readable direction name.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	case DirectionBoth:
		return "both"
	default:
		return "unknown"
	}
}

// FrameState is the propagation state of a frame.
type FrameState uint8

const (
	// FrameUnvisited means no result exists for the frame.
	FrameUnvisited FrameState = iota
	// FrameConditioned means the frame has at least one direct prompt and a
	// result produced by prompt conditioning.
	FrameConditioned
	// FramePropagated means the frame's result was derived purely from
	// memory-bank context.
	FramePropagated
)

// String returns a human-readable state name.
func (s FrameState) String() string {
	switch s {
	case FrameUnvisited:
		return "unvisited"
	case FrameConditioned:
		return "conditioned"
	case FramePropagated:
		return "propagated"
	default:
		return "unknown"
	}
}
