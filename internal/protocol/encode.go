package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/grassroots/internal/protocol/frame"
)

// Encode builds a wire frame from h and payload. h.Length is ignored and
// recomputed for mode.
func Encode(mode frame.LengthMode, h Header, payload []byte) (frame.Frame, error) {
	body := make([]byte, HeaderLen-1, HeaderLen-1+len(payload))
	body[LocationSystemID-1] = h.SystemID
	body[LocationSourceID-1] = h.SourceID
	body[LocationDestinationID-1] = h.DestinationID
	binary.BigEndian.PutUint16(body[LocationMessageID-1:LocationMessageID+1], h.MessageID)
	body[LocationMessageType-1] = byte(h.MessageType)
	body[LocationSensorID-1] = h.SensorID
	body[LocationRebroadcasts-1] = h.Rebroadcasts
	body = append(body, payload...)
	return frame.Build(mode, body)
}

// FragmentPayload encodes a type 0 payload.
func FragmentPayload(f ImageFragment) ([]byte, error) {
	need := int(f.PixelCount) * int(f.Depth)
	if len(f.Pixels) != need {
		return nil, fmt.Errorf("%w: %d pixel bytes for %dx%d", ErrMalformedFrame, len(f.Pixels), f.PixelCount, f.Depth)
	}
	out := make([]byte, FragmentPreludeLen, FragmentPreludeLen+need)
	binary.BigEndian.PutUint16(out[0:2], f.StartRow)
	binary.BigEndian.PutUint16(out[2:4], f.StartColumn)
	out[4] = f.PixelCount
	out[5] = f.Depth
	return append(out, f.Pixels...), nil
}

// ReadingText formats a DATA record.
func ReadingText(label, value string) string {
	return SensorReading{Label: label, Raw: value}.Text()
}

// MaxPayload returns the payload capacity of a frame of maxFrameBytes.
func MaxPayload(mode frame.LengthMode, maxFrameBytes int) int {
	n := maxFrameBytes - HeaderLen
	if mode == frame.LengthInclusive && maxFrameBytes > 0xff {
		n = 0xff - HeaderLen
	}
	if n < 0 {
		return 0
	}
	return n
}

// TextPayload checks text against the payload capacity.
func TextPayload(mode frame.LengthMode, maxFrameBytes int, text string) ([]byte, error) {
	if limit := MaxPayload(mode, maxFrameBytes); len(text) > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(text), limit)
	}
	return []byte(text), nil
}
