package videoseg

import (
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/videoseg/codec"
	"github.com/hupe1980/videoseg/model"
)

// maskletFormatVersion is bumped on incompatible changes to the export
// layout.
const maskletFormatVersion = 1

// Masklet is the complete spatio-temporal mask of one object: its stored
// per-frame results in ascending frame order.
type Masklet struct {
	ObjectID       model.ObjectID     `json:"object_id"`
	FirstSeenFrame int                `json:"first_seen_frame"`
	Frames         []model.MaskResult `json:"frames"`
}

// MaskletDocument is the on-wire layout of a masklet export. Codec records
// the name of the codec that produced the payload; readers select the codec
// by it.
type MaskletDocument struct {
	Version   int       `json:"version"`
	Codec     string    `json:"codec"`
	NumFrames int       `json:"num_frames"`
	Masklets  []Masklet `json:"masklets"`
}

// Masklets assembles the current masklet of every tracked object, in object
// insertion order. Frames without a stored result are skipped.
func (s *Session) Masklets() []Masklet {
	ids := s.engine.Objects()
	out := make([]Masklet, 0, len(ids))

	for _, id := range ids {
		m := Masklet{ObjectID: id}
		if first, ok := s.engine.FirstSeenFrame(id); ok {
			m.FirstSeenFrame = first
		}
		for _, frameIndex := range s.engine.ComputedFrames(id) {
			if res, ok := s.engine.Result(id, frameIndex); ok {
				m.Frames = append(m.Frames, res)
			}
		}
		out = append(out, m)
	}
	return out
}

// ExportMasklets writes the session's masklets to w using the configured
// codec.
func (s *Session) ExportMasklets(w io.Writer) error {
	start := time.Now()

	doc := MaskletDocument{
		Version:   maskletFormatVersion,
		Codec:     s.codec.Name(),
		NumFrames: s.frames.Len(),
		Masklets:  s.Masklets(),
	}

	err := s.export(w, doc)

	s.metrics.RecordExport(time.Since(start), err)
	s.logger.LogExport(len(doc.Masklets), doc.Codec, err)
	return err
}

func (s *Session) export(w io.Writer, doc MaskletDocument) error {
	data, err := s.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode masklets: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write masklets: %w", err)
	}
	return nil
}

// DecodeMasklets reads a masklet export produced by ExportMasklets. The
// codec is selected by the name recorded in the document; name must match a
// built-in codec (see codec.ByName).
func DecodeMasklets(data []byte, codecName string) (MaskletDocument, error) {
	c, ok := codec.ByName(codecName)
	if !ok {
		return MaskletDocument{}, fmt.Errorf("unknown codec %q", codecName)
	}

	var doc MaskletDocument
	if err := c.Unmarshal(data, &doc); err != nil {
		return MaskletDocument{}, fmt.Errorf("decode masklets: %w", err)
	}
	if doc.Version != maskletFormatVersion {
		return MaskletDocument{}, fmt.Errorf("unsupported masklet format version %d", doc.Version)
	}
	return doc, nil
}
