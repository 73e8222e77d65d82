package decode

import (
	"errors"
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// Surface is a fixed-size render target. Frames of any dimensions are scaled
// onto it; the aspect ratio of the source is not preserved, matching the
// stretched arcade-cabinet look of the upstream feed.
type Surface struct {
	mu     sync.Mutex
	buf    *image.RGBA
	frames uint64
}

// NewSurface creates a surface with the given pixel dimensions.
func NewSurface(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("decode: surface dimensions must be positive")
	}
	return &Surface{buf: image.NewRGBA(image.Rect(0, 0, width, height))}, nil
}

// Draw scales the frame's image onto the surface and releases the frame.
// Frames with no pixel data (the bitstream-level path) are released and
// counted but leave the surface untouched.
func (s *Surface) Draw(f *Frame) error {
	defer f.Release()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if f.Img == nil {
		return nil
	}
	draw.ApproxBiLinear.Scale(s.buf, s.buf.Bounds(), f.Img, f.Img.Bounds(), draw.Src, nil)
	return nil
}

// Bounds returns the surface rectangle.
func (s *Surface) Bounds() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Bounds()
}

// FrameCount returns how many frames have been drawn.
func (s *Surface) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Snapshot returns a copy of the current surface contents.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.buf.Bounds())
	copy(out.Pix, s.buf.Pix)
	return out
}
