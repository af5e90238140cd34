package protocol

import (
	"fmt"
	"strings"
)

// Byte offsets of header fields from frame start.
const (
	LocationMessageBytes  = 0
	LocationSystemID      = 1
	LocationSourceID      = 2
	LocationDestinationID = 3
	LocationMessageID     = 4
	LocationMessageType   = 6
	LocationSensorID      = 7
	LocationRebroadcasts  = 8
	HeaderLen             = 9

	// FragmentPreludeLen is the row/column/count/depth prefix of a type 0 payload.
	FragmentPreludeLen = 6

	DataPrefix = "DATA"
)

type MessageType uint8

const (
	MessageImageFragment MessageType = 0
	MessageText          MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case MessageImageFragment:
		return "image_fragment"
	case MessageText:
		return "text"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Header is the fixed message header.
type Header struct {
	Length        uint8
	SystemID      uint8
	SourceID      uint8
	DestinationID uint8
	MessageID     uint16
	MessageType   MessageType
	SensorID      uint8
	Rebroadcasts  uint8
}

// CameraKey is the composite camera identity "source-sensor".
func (h Header) CameraKey() string {
	return fmt.Sprintf("%d-%d", h.SourceID, h.SensorID)
}

// SensorKey is the composite sensor identity "source-sensor-label".
func (h Header) SensorKey(label string) string {
	return fmt.Sprintf("%d-%d-%s", h.SourceID, h.SensorID, label)
}

// Kind tags the decoded payload variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindImageFragment
	KindSensorReading
	KindNotice
)

func (k Kind) String() string {
	switch k {
	case KindImageFragment:
		return "image_fragment"
	case KindSensorReading:
		return "sensor_reading"
	case KindNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// Body is one of ImageFragment, SensorReading or Notice.
type Body interface {
	Kind() Kind
}

// ImageFragment is a horizontal run of pixels starting at (StartRow, StartColumn).
type ImageFragment struct {
	StartRow    uint16
	StartColumn uint16
	PixelCount  uint8
	Depth       uint8
	Pixels      []byte
}

func (ImageFragment) Kind() Kind { return KindImageFragment }

// SensorReading is a "DATA:<label>:<value>" record. Raw keeps the value text
// as received; Valid reports whether Raw parsed as a number. Fields past the
// value are not part of the reading but are kept in Source.
type SensorReading struct {
	Label  string
	Raw    string
	Value  float64
	Valid  bool
	Source string
}

func (SensorReading) Kind() Kind { return KindSensorReading }

// Text returns the payload text the reading was decoded from, or builds
// it from Label and Raw for a reading made locally.
func (r SensorReading) Text() string {
	if r.Source != "" {
		return r.Source
	}
	return strings.Join([]string{DataPrefix, r.Label, r.Raw}, ":")
}

// Notice is free-form text.
type Notice struct {
	Text string
}

func (Notice) Kind() Kind { return KindNotice }

// Message is the decoded view of one frame.
type Message struct {
	Header  Header
	Payload []byte
	Body    Body
}

func (m Message) Kind() Kind {
	if m.Body == nil {
		return KindUnknown
	}
	return m.Body.Kind()
}
