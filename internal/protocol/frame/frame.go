package frame

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ProtocolMaxBytes is the largest frame a LoRa node will emit.
const ProtocolMaxBytes = 256

var (
	ErrNoData            = errors.New("frame: no data available")
	ErrShortFrame        = errors.New("frame: transport ended mid-frame")
	ErrFrameTooLarge     = errors.New("frame: declared length exceeds limit")
	ErrEmptyFrame        = errors.New("frame: declared length is zero")
	ErrInvalidLengthMode = errors.New("frame: invalid length mode")
)

// LengthMode fixes how byte 0 of a frame is interpreted.
type LengthMode int

const (
	// LengthLastIndex: byte 0 holds the index of the last byte, so byte 0
	// more bytes follow it. This is what the node firmware writes.
	LengthLastIndex LengthMode = iota
	// LengthInclusive: byte 0 holds the total frame length including itself.
	LengthInclusive
)

func ParseLengthMode(raw string) (LengthMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "last_index":
		return LengthLastIndex, nil
	case "inclusive":
		return LengthInclusive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLengthMode, raw)
	}
}

func (m LengthMode) String() string {
	switch m {
	case LengthLastIndex:
		return "last_index"
	case LengthInclusive:
		return "inclusive"
	default:
		return fmt.Sprintf("length_mode(%d)", int(m))
	}
}

// Remaining returns how many bytes follow a length byte of value b0.
func (m LengthMode) Remaining(b0 byte) int {
	if m == LengthInclusive {
		if b0 == 0 {
			return 0
		}
		return int(b0) - 1
	}
	return int(b0)
}

// Indicator returns the length byte for a frame of total bytes.
func (m LengthMode) Indicator(total int) (byte, error) {
	v := total - 1
	if m == LengthInclusive {
		v = total
	}
	if v < 0 || v > 0xff {
		return 0, fmt.Errorf("%w: total=%d mode=%s", ErrFrameTooLarge, total, m)
	}
	return byte(v), nil
}

// Frame is one length-delimited unit, length byte included.
type Frame []byte

// Limits constrains frame decode memory use.
type Limits struct {
	MaxFrameBytes int
	Mode          LengthMode
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: ProtocolMaxBytes,
		Mode:          LengthLastIndex,
	}
}

// ReadFrame reads one frame from r. A read that returns no bytes and no
// error yields ErrNoData so callers can poll a transport with a read timeout.
// Oversized frames are drained before ErrFrameTooLarge is returned so the
// stream stays aligned.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	if limits.MaxFrameBytes <= 0 {
		limits.MaxFrameBytes = ProtocolMaxBytes
	}

	var lead [1]byte
	n, err := r.Read(lead[:])
	if n == 0 {
		if err != nil {
			return nil, err
		}
		return nil, ErrNoData
	}

	if lead[0] == 0 {
		return nil, ErrEmptyFrame
	}
	rest := limits.Mode.Remaining(lead[0])
	total := 1 + rest
	if total > limits.MaxFrameBytes {
		if _, err := io.CopyN(io.Discard, r, int64(rest)); err != nil {
			return nil, ErrShortFrame
		}
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, total, limits.MaxFrameBytes)
	}

	out := make(Frame, total)
	out[0] = lead[0]
	if rest > 0 {
		if _, err := io.ReadFull(r, out[1:]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, ErrShortFrame
			}
			return nil, err
		}
	}
	return out, nil
}

// Build prefixes body with the length byte for mode.
func Build(mode LengthMode, body []byte) (Frame, error) {
	total := 1 + len(body)
	lead, err := mode.Indicator(total)
	if err != nil {
		return nil, err
	}
	out := make(Frame, 0, total)
	out = append(out, lead)
	out = append(out, body...)
	return out, nil
}

func WriteFrame(w io.Writer, f Frame) error {
	if len(f) == 0 {
		return ErrEmptyFrame
	}
	_, err := w.Write(f)
	return err
}
