// Package stream implements the live match streaming client: the binary
// video wire format, the demux/decode pipeline, the match state channel, and
// the coordinator that owns the websocket channels for one match.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FrameType is the first byte of every binary video message.
type FrameType byte

// Video message types.
const (
	FrameSequenceHeader FrameType = 0x01
	FrameKeyframe       FrameType = 0x02
	FrameDelta          FrameType = 0x03
	FrameEndOfStream    FrameType = 0x04
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameSequenceHeader:
		return "sequence_header"
	case FrameKeyframe:
		return "keyframe"
	case FrameDelta:
		return "delta"
	case FrameEndOfStream:
		return "end_of_stream"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// HeaderSize is the fixed framed-message header length in bytes:
// type(1) + timestampMicros(8, big endian) + sequenceNumber(4, big endian).
const HeaderSize = 13

// Wire format errors.
var (
	ErrShortMessage     = errors.New("stream: message shorter than header")
	ErrUnknownFrameType = errors.New("stream: unknown frame type")
)

// FramedMessage is one parsed binary video message. Payload aliases the
// input buffer; callers that retain it past the handler must copy.
type FramedMessage struct {
	Type            FrameType
	TimestampMicros uint64
	SequenceNumber  uint32
	Payload         []byte
}

// ParseFramedMessage decodes the fixed header and slices off the payload.
func ParseFramedMessage(data []byte) (FramedMessage, error) {
	if len(data) < HeaderSize {
		return FramedMessage{}, ErrShortMessage
	}
	ft := FrameType(data[0])
	switch ft {
	case FrameSequenceHeader, FrameKeyframe, FrameDelta, FrameEndOfStream:
	default:
		return FramedMessage{}, fmt.Errorf("%w: 0x%02x", ErrUnknownFrameType, data[0])
	}
	return FramedMessage{
		Type:            ft,
		TimestampMicros: binary.BigEndian.Uint64(data[1:9]),
		SequenceNumber:  binary.BigEndian.Uint32(data[9:13]),
		Payload:         data[13:],
	}, nil
}

// EncodeFramedMessage builds the wire representation of a message. The
// server side of the protocol uses the same layout, so this doubles as the
// test-fixture encoder.
func EncodeFramedMessage(m FramedMessage) []byte {
	out := make([]byte, HeaderSize+len(m.Payload))
	out[0] = byte(m.Type)
	binary.BigEndian.PutUint64(out[1:9], m.TimestampMicros)
	binary.BigEndian.PutUint32(out[9:13], m.SequenceNumber)
	copy(out[13:], m.Payload)
	return out
}
