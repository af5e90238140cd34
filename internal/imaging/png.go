package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

// Image converts a buffer to an image.Image. Depth 1 is grayscale, depth 3
// RGB and depth 4 RGBA; any other depth renders its first channel as gray.
func (b Buffer) Image() image.Image {
	rect := image.Rect(0, 0, b.Width, b.Height)
	switch b.Depth {
	case 3, 4:
		img := image.NewNRGBA(rect)
		for row := 0; row < b.Height; row++ {
			for col := 0; col < b.Width; col++ {
				alpha := byte(0xff)
				if b.Depth == 4 {
					alpha = b.At(row, col, 3)
				}
				img.SetNRGBA(col, row, color.NRGBA{
					R: b.At(row, col, 0),
					G: b.At(row, col, 1),
					B: b.At(row, col, 2),
					A: alpha,
				})
			}
		}
		return img
	default:
		img := image.NewGray(rect)
		for row := 0; row < b.Height; row++ {
			for col := 0; col < b.Width; col++ {
				img.SetGray(col, row, color.Gray{Y: b.At(row, col, 0)})
			}
		}
		return img
	}
}

func (b Buffer) EncodePNG(w io.Writer) error {
	if len(b.Pix) != b.Width*b.Height*b.Depth {
		return fmt.Errorf("%w: buffer holds %d bytes", ErrInvalidDims, len(b.Pix))
	}
	return png.Encode(w, b.Image())
}
