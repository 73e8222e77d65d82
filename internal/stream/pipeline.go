package stream

import (
	"log/slog"
	"sync/atomic"

	"github.com/arenalive/arenalive/internal/decode"
	"github.com/arenalive/arenalive/internal/observability"
)

// PipelineState is the lifecycle of one video endpoint.
type PipelineState int

// Pipeline lifecycle states. Decode errors do not have their own state; the
// pipeline stays in StateStreaming and recovers at the next keyframe.
const (
	StateUninitialized PipelineState = iota
	StateConnecting
	StateStreaming
	StateEnded
)

// String returns the state name.
func (s PipelineState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	default:
		return "uninitialized"
	}
}

// Pipeline demuxes framed video messages and drives the decoder.
//
// It is single-consumer: HandleMessage must be called from one goroutine
// (the owning channel's read loop), matching the overwrite-then-consume
// ownership of the parameter set cache.
type Pipeline struct {
	log     *slog.Logger
	metrics *observability.Metrics
	dec     decode.Decoder
	surface *decode.Surface
	onEnded func()

	// cache holds the most recent sequence header payload. At most one
	// value lives here; it is consumed by the next keyframe.
	cache []byte

	// state is written only by the owning read loop but read from the
	// status endpoint, so it is stored atomically.
	state atomic.Int32
}

// NewPipeline wires a decoder and surface into a pipeline. onEnded, if
// non-nil, fires exactly once when END_OF_STREAM is observed.
func NewPipeline(log *slog.Logger, metrics *observability.Metrics, dec decode.Decoder, surface *decode.Surface, onEnded func()) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Pipeline{
		log:     log,
		metrics: metrics,
		dec:     dec,
		surface: surface,
		onEnded: onEnded,
	}
}

// Reset returns the pipeline to its initial state for a different match:
// lifecycle back to uninitialized and the parameter set cache cleared. The
// caller must detach the feeding channel first; Reset must not race
// HandleMessage.
func (p *Pipeline) Reset() {
	p.cache = nil
	p.state.Store(int32(StateUninitialized))
}

// State returns the pipeline lifecycle state.
func (p *Pipeline) State() PipelineState {
	return PipelineState(p.state.Load())
}

// Ended reports whether END_OF_STREAM has been observed.
func (p *Pipeline) Ended() bool {
	return p.State() == StateEnded
}

// SetConnecting marks the pipeline as waiting for its first frame. No-op
// once the stream has ended.
func (p *Pipeline) SetConnecting() {
	p.state.CompareAndSwap(int32(StateUninitialized), int32(StateConnecting))
}

// HandleMessage processes one binary message from the video channel.
// Malformed messages are dropped, decode errors are swallowed, and nothing
// is processed after END_OF_STREAM.
func (p *Pipeline) HandleMessage(data []byte) {
	if p.Ended() {
		return
	}

	msg, err := ParseFramedMessage(data)
	if err != nil {
		p.log.Debug("dropping malformed video message",
			slog.Int("len", len(data)),
			slog.String("error", err.Error()))
		p.metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		return
	}

	switch msg.Type {
	case FrameSequenceHeader:
		// Overwrite, never append. A second header before any
		// keyframe discards the first.
		p.cache = append(p.cache[:0], msg.Payload...)

	case FrameKeyframe:
		buf := msg.Payload
		if p.cache != nil {
			combined := make([]byte, 0, len(p.cache)+len(msg.Payload))
			combined = append(combined, p.cache...)
			combined = append(combined, msg.Payload...)
			buf = combined
			p.cache = nil
		}
		p.decodeChunk(decode.Chunk{
			Kind:            decode.ChunkKey,
			TimestampMicros: msg.TimestampMicros,
			Data:            buf,
		})

	case FrameDelta:
		p.decodeChunk(decode.Chunk{
			Kind:            decode.ChunkDelta,
			TimestampMicros: msg.TimestampMicros,
			Data:            msg.Payload,
		})

	case FrameEndOfStream:
		p.log.Info("end of stream", slog.Uint64("seq", uint64(msg.SequenceNumber)))
		p.state.Store(int32(StateEnded))
		if p.onEnded != nil {
			p.onEnded()
		}
	}
}

// decodeChunk runs one chunk through the decoder and draws the result.
// Failures are logged and counted, never propagated; the stream self-heals
// at the next keyframe.
func (p *Pipeline) decodeChunk(chunk decode.Chunk) {
	frame, err := p.dec.Decode(chunk)
	if err != nil {
		p.log.Debug("decode error",
			slog.String("kind", chunk.Kind.String()),
			slog.String("error", err.Error()))
		p.metrics.DecodeErrors.Inc()
		return
	}
	p.metrics.FramesDecoded.WithLabelValues(chunk.Kind.String()).Inc()
	if chunk.Kind == decode.ChunkKey {
		p.state.Store(int32(StateStreaming))
	}
	if p.surface != nil {
		if err := p.surface.Draw(frame); err != nil {
			p.log.Debug("draw failed", slog.String("error", err.Error()))
		}
		return
	}
	frame.Release()
}
