// Package decode provides the video decode layer for the streaming client:
// capability detection, an H.264 Annex B bitstream decoder, a JPEG fallback
// renderer, and the fixed-size render surface frames are drawn onto.
package decode

import "fmt"

// Capability enumerates the decode paths the client can run with. It is
// resolved once at startup and never re-probed mid-stream.
type Capability int

const (
	// CapabilityNone disables the video pipeline entirely. The state
	// channel still runs.
	CapabilityNone Capability = iota

	// CapabilityAnnexB enables bitstream-level decode of H.264 Annex B
	// access units: NAL validation, parameter set tracking, and frame
	// dimensions from the SPS.
	CapabilityAnnexB
)

// String returns the capability name as used in config and logs.
func (c Capability) String() string {
	switch c {
	case CapabilityAnnexB:
		return "annexb"
	default:
		return "none"
	}
}

// ResolveCapability maps the configured decoder mode to a capability.
// "auto" selects the best available path, which is currently annexb.
func ResolveCapability(mode string) (Capability, error) {
	switch mode {
	case "", "auto", "annexb":
		return CapabilityAnnexB, nil
	case "none":
		return CapabilityNone, nil
	default:
		return CapabilityNone, fmt.Errorf("unknown decoder mode %q", mode)
	}
}
