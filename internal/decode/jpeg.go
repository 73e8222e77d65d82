package decode

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"sync"
)

// JPEGRenderer is the fallback render path used for replay streams, which
// carry whole JPEG images instead of an H.264 bitstream.
//
// Backpressure is latest-frame-wins: a single pending buffer is overwritten
// by each arrival, and RenderPending draws at most one frame per call. If
// frames arrive faster than the render tick, intermediate frames are dropped
// rather than queued.
type JPEGRenderer struct {
	surface *Surface
	onDrop  func()

	mu      sync.Mutex
	pending []byte
}

// NewJPEGRenderer creates a renderer targeting the given surface. onDrop, if
// non-nil, is called once per frame discarded by backpressure.
func NewJPEGRenderer(surface *Surface, onDrop func()) *JPEGRenderer {
	return &JPEGRenderer{surface: surface, onDrop: onDrop}
}

// Submit stores data as the pending frame, replacing any frame not yet
// rendered. The slice is copied; the caller may reuse it.
func (r *JPEGRenderer) Submit(data []byte) {
	r.mu.Lock()
	if r.pending != nil && r.onDrop != nil {
		r.onDrop()
	}
	r.pending = append(r.pending[:0], data...)
	r.mu.Unlock()
}

// RenderPending decodes and draws the pending frame, if any. It reports
// whether a frame was drawn.
func (r *JPEGRenderer) RenderPending() (bool, error) {
	r.mu.Lock()
	data := r.pending
	r.pending = nil
	r.mu.Unlock()

	if data == nil {
		return false, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("decode jpeg: %w", err)
	}
	b := img.Bounds()
	frame := &Frame{Img: img, Width: b.Dx(), Height: b.Dy()}
	if err := r.surface.Draw(frame); err != nil {
		return false, err
	}
	return true, nil
}
