package protocol

import (
	"fmt"

	"github.com/danmuck/grassroots/internal/protocol/frame"
)

// Raster is a row-major width*height*depth image as a camera node holds it.
type Raster struct {
	Width  int
	Height int
	Depth  int
	Pix    []byte
}

// SegmentOptions controls how a raster is cut into type 0 fragments.
type SegmentOptions struct {
	Mode          frame.LengthMode
	MaxFrameBytes int
	// Border skips this many rows and columns on every edge, as the camera
	// node does to keep its last segment inside the receiver's bounds check.
	Border int
}

// SegmentImage cuts r into row segments of at most
// (payload capacity - prelude) / depth pixels each, in row order.
func SegmentImage(r Raster, opts SegmentOptions) ([]ImageFragment, error) {
	if r.Width <= 0 || r.Height <= 0 || r.Depth <= 0 || r.Depth > 0xff {
		return nil, fmt.Errorf("protocol: invalid raster %dx%dx%d", r.Width, r.Height, r.Depth)
	}
	if len(r.Pix) != r.Width*r.Height*r.Depth {
		return nil, fmt.Errorf("protocol: raster has %d bytes, want %d", len(r.Pix), r.Width*r.Height*r.Depth)
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = frame.ProtocolMaxBytes
	}
	segment := (MaxPayload(opts.Mode, opts.MaxFrameBytes) - FragmentPreludeLen) / r.Depth
	if segment > 0xff {
		segment = 0xff
	}
	if segment <= 0 {
		return nil, fmt.Errorf("%w: frame of %d bytes cannot carry one pixel", ErrPayloadTooLarge, opts.MaxFrameBytes)
	}

	b := opts.Border
	if b < 0 || 2*b >= r.Width || 2*b >= r.Height {
		return nil, fmt.Errorf("protocol: border %d leaves no pixels", b)
	}

	out := make([]ImageFragment, 0)
	for row := b; row < r.Height-b; row++ {
		for col := b; col < r.Width-b; col += segment {
			count := min(segment, r.Width-b-col)
			start := (row*r.Width + col) * r.Depth
			pix := make([]byte, count*r.Depth)
			copy(pix, r.Pix[start:start+count*r.Depth])
			out = append(out, ImageFragment{
				StartRow:    uint16(row),
				StartColumn: uint16(col),
				PixelCount:  uint8(count),
				Depth:       uint8(r.Depth),
				Pixels:      pix,
			})
		}
	}
	return out, nil
}
