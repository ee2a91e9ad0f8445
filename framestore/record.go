package framestore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/videoseg/model"
)

// CompressionType selects how frame records are compressed in the slow tier.
type CompressionType uint8

const (
	// CompressionNone stores raw float32 pixel data.
	CompressionNone CompressionType = iota
	// CompressionLZ4 trades a little CPU for roughly 2-3x smaller records.
	CompressionLZ4
	// CompressionZstd compresses hardest; prefer it for remote blob tiers.
	CompressionZstd
)

// String returns a human-readable compression name.
func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Frame records are versioned little-endian blobs:
//
//	magic    [4]byte "VSF1"
//	comp     uint8
//	_        uint8 (reserved)
//	size     uint16 (square model resolution)
//	index    uint32
//	origH    uint32
//	origW    uint32
//	rawLen   uint32 (uncompressed payload bytes)
//	payload  rawLen bytes of float32 pixels, possibly compressed
var recordMagic = [4]byte{'V', 'S', 'F', '1'}

const recordHeaderSize = 4 + 1 + 1 + 2 + 4 + 4 + 4 + 4

var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func zstdEncoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	})
	return zstdEnc
}

func zstdDecoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return zstdDec
}

func encodeRecord(f model.Frame, comp CompressionType) ([]byte, error) {
	raw := make([]byte, len(f.Pixels)*4)
	for i, v := range f.Pixels {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	payload := raw
	switch comp {
	case CompressionNone:
	case CompressionLZ4:
		var c lz4.Compressor
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := c.CompressBlock(raw, buf)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress frame %d: %w", f.Index, err)
		}
		if n == 0 || n >= len(raw) {
			// Incompressible; store raw.
			comp = CompressionNone
		} else {
			payload = buf[:n]
		}
	case CompressionZstd:
		payload = zstdEncoder().EncodeAll(raw, nil)
	default:
		return nil, fmt.Errorf("unknown compression type %d", comp)
	}

	out := make([]byte, recordHeaderSize+len(payload))
	copy(out[0:4], recordMagic[:])
	out[4] = byte(comp)
	binary.LittleEndian.PutUint16(out[6:], uint16(f.Size))
	binary.LittleEndian.PutUint32(out[8:], uint32(f.Index))
	binary.LittleEndian.PutUint32(out[12:], uint32(f.OrigHeight))
	binary.LittleEndian.PutUint32(out[16:], uint32(f.OrigWidth))
	binary.LittleEndian.PutUint32(out[20:], uint32(len(raw)))
	copy(out[recordHeaderSize:], payload)
	return out, nil
}

func decodeRecord(data []byte) (model.Frame, error) {
	if len(data) < recordHeaderSize {
		return model.Frame{}, fmt.Errorf("frame record too short: %d bytes", len(data))
	}
	if [4]byte(data[0:4]) != recordMagic {
		return model.Frame{}, fmt.Errorf("bad frame record magic %q", data[0:4])
	}

	comp := CompressionType(data[4])
	size := int(binary.LittleEndian.Uint16(data[6:]))
	index := int(binary.LittleEndian.Uint32(data[8:]))
	origH := int(binary.LittleEndian.Uint32(data[12:]))
	origW := int(binary.LittleEndian.Uint32(data[16:]))
	rawLen := int(binary.LittleEndian.Uint32(data[20:]))
	payload := data[recordHeaderSize:]

	var raw []byte
	switch comp {
	case CompressionNone:
		if len(payload) != rawLen {
			return model.Frame{}, fmt.Errorf("frame record payload length %d != %d", len(payload), rawLen)
		}
		raw = payload
	case CompressionLZ4:
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return model.Frame{}, fmt.Errorf("lz4 decompress frame %d: %w", index, err)
		}
		raw = raw[:n]
	case CompressionZstd:
		var err error
		raw, err = zstdDecoder().DecodeAll(payload, nil)
		if err != nil {
			return model.Frame{}, fmt.Errorf("zstd decompress frame %d: %w", index, err)
		}
	default:
		return model.Frame{}, fmt.Errorf("unknown compression type %d", comp)
	}

	if len(raw) != rawLen {
		return model.Frame{}, fmt.Errorf("frame record decoded to %d bytes, want %d", len(raw), rawLen)
	}

	pixels := make([]float32, rawLen/4)
	for i := range pixels {
		pixels[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return model.Frame{
		Index:      index,
		Size:       size,
		OrigHeight: origH,
		OrigWidth:  origW,
		Pixels:     pixels,
	}, nil
}
