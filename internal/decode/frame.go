package decode

import (
	"image"
	"sync/atomic"
)

// ChunkKind distinguishes the two decodable chunk types.
type ChunkKind int

const (
	// ChunkKey is a random-access chunk. It must carry, or have been
	// preceded by, SPS and PPS parameter sets.
	ChunkKey ChunkKind = iota

	// ChunkDelta is a predicted chunk that depends on earlier frames.
	ChunkDelta
)

// String returns the chunk kind name.
func (k ChunkKind) String() string {
	if k == ChunkKey {
		return "key"
	}
	return "delta"
}

// Chunk is one encoded video chunk handed to a Decoder.
type Chunk struct {
	Kind            ChunkKind
	TimestampMicros uint64
	Data            []byte
}

// Frame is one decoded video frame. Img is nil on the bitstream-level path,
// where only dimensions and timing are recovered; the JPEG path fills it in.
//
// Every frame must be released exactly once. The surface releases frames it
// draws; callers release frames they discard.
type Frame struct {
	Img             image.Image
	Width           int
	Height          int
	Keyframe        bool
	TimestampMicros uint64

	released atomic.Bool
}

// Release marks the frame's resources as reclaimed. Releasing twice reports
// the second call as a no-op failure so tests can assert on it.
func (f *Frame) Release() bool {
	return f.released.CompareAndSwap(false, true)
}

// Released reports whether the frame has been released.
func (f *Frame) Released() bool {
	return f.released.Load()
}
