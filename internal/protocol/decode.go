package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/grassroots/internal/protocol/frame"
)

// Decode parses one frame. It has no side effects.
//
// For ErrUnknownMessageType the returned Message still carries the decoded
// header so callers can report which type was seen.
func Decode(f frame.Frame) (Message, error) {
	if len(f) <= HeaderLen {
		return Message{}, fmt.Errorf("%w: %w: %d bytes", ErrMalformedFrame, ErrTooShort, len(f))
	}

	h := parseHeader(f)
	msg := Message{Header: h, Payload: f[HeaderLen:]}

	switch h.MessageType {
	case MessageImageFragment:
		frag, err := decodeFragment(msg.Payload)
		if err != nil {
			return msg, err
		}
		msg.Body = frag
	case MessageText:
		msg.Body = decodeText(msg.Payload)
	default:
		return msg, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint8(h.MessageType))
	}
	return msg, nil
}

func parseHeader(b []byte) Header {
	return Header{
		Length:        b[LocationMessageBytes],
		SystemID:      b[LocationSystemID],
		SourceID:      b[LocationSourceID],
		DestinationID: b[LocationDestinationID],
		MessageID:     binary.BigEndian.Uint16(b[LocationMessageID : LocationMessageID+2]),
		MessageType:   MessageType(b[LocationMessageType]),
		SensorID:      b[LocationSensorID],
		Rebroadcasts:  b[LocationRebroadcasts],
	}
}

func decodeFragment(p []byte) (ImageFragment, error) {
	if len(p) < FragmentPreludeLen {
		return ImageFragment{}, fmt.Errorf("%w: fragment prelude %d bytes", ErrMalformedFrame, len(p))
	}
	frag := ImageFragment{
		StartRow:    binary.BigEndian.Uint16(p[0:2]),
		StartColumn: binary.BigEndian.Uint16(p[2:4]),
		PixelCount:  p[4],
		Depth:       p[5],
	}
	need := int(frag.PixelCount) * int(frag.Depth)
	body := p[FragmentPreludeLen:]
	if len(body) < need {
		return ImageFragment{}, fmt.Errorf(
			"%w: fragment carries %d pixel bytes, header claims %d",
			ErrMalformedFrame, len(body), need,
		)
	}
	frag.Pixels = body[:need]
	return frag, nil
}

func decodeText(p []byte) Body {
	text := string(bytes.TrimRight(p, "\x00"))
	parts := strings.Split(text, ":")
	if len(parts) < 3 || parts[0] != DataPrefix {
		return Notice{Text: text}
	}
	r := SensorReading{Label: parts[1], Raw: parts[2], Source: text}
	if v, err := strconv.ParseFloat(strings.TrimSpace(r.Raw), 64); err == nil {
		r.Value = v
		r.Valid = true
	}
	return r
}
