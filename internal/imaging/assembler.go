// Package imaging assembles camera rasters from pixel fragments.
package imaging

import (
	"errors"
	"fmt"

	"github.com/danmuck/grassroots/internal/protocol"
)

var (
	ErrNoBuffer      = errors.New("imaging: no camera selected")
	ErrInvalidDims   = errors.New("imaging: invalid image dimensions")
	ErrShortFragment = errors.New("imaging: fragment carries fewer bytes than count*depth")
)

// Dims is the assumed maximum image size; depth is bytes per pixel.
type Dims struct {
	Width  int
	Height int
	Depth  int
}

func DefaultDims() Dims {
	return Dims{Width: 500, Height: 500, Depth: 3}
}

func (d Dims) Validate() error {
	if d.Width <= 0 || d.Height <= 0 || d.Depth <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidDims, d.Width, d.Height, d.Depth)
	}
	return nil
}

// Buffer is a row-major Height x Width x Depth raster for one camera.
type Buffer struct {
	Identity string
	Dims
	Pix []byte
}

func newBuffer(identity string, d Dims) *Buffer {
	return &Buffer{
		Identity: identity,
		Dims:     d,
		Pix:      make([]byte, d.Width*d.Height*d.Depth),
	}
}

func (b *Buffer) offset(row, col, ch int) int {
	return (row*b.Width+col)*b.Depth + ch
}

// At returns one channel sample.
func (b *Buffer) At(row, col, ch int) byte {
	return b.Pix[b.offset(row, col, ch)]
}

func (b *Buffer) clone() Buffer {
	out := *b
	out.Pix = append([]byte(nil), b.Pix...)
	return out
}

// Assembler owns the raster of the active camera. It is not safe for
// concurrent use; the consumer goroutine owns it.
type Assembler struct {
	dims Dims
	buf  *Buffer

	accepted uint64
	dropped  uint64
}

func NewAssembler(d Dims) (*Assembler, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Assembler{dims: d}, nil
}

func (a *Assembler) Dims() Dims {
	return a.dims
}

// Identity is the camera the current buffer belongs to, or "".
func (a *Assembler) Identity() string {
	if a.buf == nil {
		return ""
	}
	return a.buf.Identity
}

// Select makes identity the active camera. A different identity replaces the
// current buffer with a zeroed one; it reports whether that happened.
func (a *Assembler) Select(identity string) bool {
	if a.buf != nil && a.buf.Identity == identity {
		return false
	}
	a.buf = newBuffer(identity, a.dims)
	return true
}

// Reset zeroes the current buffer in place.
func (a *Assembler) Reset() {
	if a.buf == nil {
		return
	}
	clear(a.buf.Pix)
}

// Insert applies a decoded fragment.
func (a *Assembler) Insert(f protocol.ImageFragment) error {
	return a.InsertFragment(int(f.StartRow), int(f.StartColumn), int(f.PixelCount), int(f.Depth), f.Pixels)
}

// InsertFragment writes pixelCount pixels of depth channels each, left to
// right from (startRow, startColumn). The whole fragment is rejected when
// startRow >= height, startColumn+pixelCount >= width or depth exceeds the
// configured depth; nothing is clipped.
func (a *Assembler) InsertFragment(startRow, startColumn, pixelCount, depth int, pix []byte) error {
	if a.buf == nil {
		return ErrNoBuffer
	}
	if startRow < 0 || startColumn < 0 || pixelCount < 0 || depth < 0 ||
		startRow >= a.dims.Height ||
		startColumn+pixelCount >= a.dims.Width ||
		depth > a.dims.Depth {
		a.dropped++
		return fmt.Errorf(
			"%w: row=%d col=%d count=%d depth=%d image=%dx%dx%d",
			protocol.ErrOutOfBoundsFragment,
			startRow, startColumn, pixelCount, depth,
			a.dims.Width, a.dims.Height, a.dims.Depth,
		)
	}
	if len(pix) < pixelCount*depth {
		a.dropped++
		return fmt.Errorf("%w: have=%d want=%d", ErrShortFragment, len(pix), pixelCount*depth)
	}

	i := 0
	col := startColumn
	for p := 0; p < pixelCount; p++ {
		at := a.buf.offset(startRow, col, 0)
		copy(a.buf.Pix[at:at+depth], pix[i:i+depth])
		i += depth
		col++
	}
	a.accepted++
	return nil
}

// Snapshot copies the current buffer.
func (a *Assembler) Snapshot() (Buffer, bool) {
	if a.buf == nil {
		return Buffer{}, false
	}
	return a.buf.clone(), true
}

// Stats reports accepted and dropped fragment counts since construction.
func (a *Assembler) Stats() (accepted, dropped uint64) {
	return a.accepted, a.dropped
}
