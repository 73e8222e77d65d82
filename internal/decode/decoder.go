package decode

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// Decoder turns encoded chunks into frames.
//
// Decode returns an error for chunks the decoder cannot process; the caller
// decides whether that is fatal (for the pipeline it is not, the stream
// self-heals at the next keyframe). Close is idempotent.
type Decoder interface {
	Decode(chunk Chunk) (*Frame, error)
	Flush() error
	Close() error
}

// Decoder errors.
var (
	ErrDecoderClosed = errors.New("decode: decoder closed")

	// ErrNotConfigured is returned for chunks that arrive before the
	// decoder has seen parameter sets.
	ErrNotConfigured = errors.New("decode: no parameter sets")
)

// annexBDecoder is the bitstream-level H.264 decoder. It parses Annex B
// access units, tracks SPS/PPS, and derives frame dimensions from the active
// SPS. No pixel reconstruction happens at this level.
type annexBDecoder struct {
	log *slog.Logger

	mu     sync.Mutex
	closed bool
	sps    []byte
	pps    []byte
	width  int
	height int
}

// NewAnnexBDecoder creates a decoder for H.264 Annex B chunks.
func NewAnnexBDecoder(log *slog.Logger) Decoder {
	if log == nil {
		log = slog.Default()
	}
	return &annexBDecoder{log: log}
}

func (d *annexBDecoder) Decode(chunk Chunk) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDecoderClosed
	}

	var au h264.AnnexB
	if err := au.Unmarshal(chunk.Data); err != nil {
		return nil, fmt.Errorf("parse access unit: %w", err)
	}
	if len(au) == 0 {
		return nil, errors.New("decode: empty access unit")
	}

	hasIDR := false
	for _, nalu := range au {
		if len(nalu) == 0 {
			return nil, errors.New("decode: zero-length NAL unit")
		}
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS:
			if err := d.setSPS(nalu); err != nil {
				return nil, err
			}
		case h264.NALUTypePPS:
			d.pps = append([]byte(nil), nalu...)
		case h264.NALUTypeIDR:
			hasIDR = true
		}
	}

	switch chunk.Kind {
	case ChunkKey:
		if d.sps == nil || d.pps == nil {
			return nil, fmt.Errorf("keyframe without parameter sets: %w", ErrNotConfigured)
		}
		if !hasIDR {
			return nil, errors.New("decode: key chunk carries no IDR slice")
		}
	case ChunkDelta:
		if d.sps == nil || d.pps == nil {
			return nil, fmt.Errorf("delta before first keyframe: %w", ErrNotConfigured)
		}
	}

	return &Frame{
		Width:           d.width,
		Height:          d.height,
		Keyframe:        chunk.Kind == ChunkKey,
		TimestampMicros: chunk.TimestampMicros,
	}, nil
}

// setSPS validates and adopts a new sequence parameter set, refreshing the
// advertised frame dimensions.
func (d *annexBDecoder) setSPS(nalu []byte) error {
	var sps h264.SPS
	if err := sps.Unmarshal(nalu); err != nil {
		return fmt.Errorf("parse SPS: %w", err)
	}
	d.sps = append([]byte(nil), nalu...)
	d.width = sps.Width()
	d.height = sps.Height()
	d.log.Debug("sequence parameters updated",
		slog.Int("width", d.width),
		slog.Int("height", d.height))
	return nil
}

func (d *annexBDecoder) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDecoderClosed
	}
	return nil
}

func (d *annexBDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.sps = nil
	d.pps = nil
	return nil
}
