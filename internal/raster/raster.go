// Package raster decodes the engine's preview payload: a packed 1-bit
// monochrome bitmap, fixed at 256x128 pixels.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

const (
	Width  = 256
	Height = 128

	// BytesPerRow is Width/8; rows are byte-aligned with no padding.
	BytesPerRow = Width / 8

	// Size is the exact payload length the engine produces.
	Size = Width * Height / 8
)

// DecodeError reports a payload whose length does not match the fixed
// raster size.
type DecodeError struct {
	Got  int
	Want int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("preview payload is %d bytes, want %d", e.Got, e.Want)
}

// Raster is the decoded preview image. Bits are packed row-major,
// MSB-first within each byte: bit 7 of byte 0 is pixel (0,0).
type Raster struct {
	bits []byte
}

// Decode validates the payload length and wraps it as a Raster. The
// payload is copied; the caller may reuse data.
func Decode(data []byte) (*Raster, error) {
	if len(data) != Size {
		return nil, &DecodeError{Got: len(data), Want: Size}
	}
	bits := make([]byte, Size)
	copy(bits, data)
	return &Raster{bits: bits}, nil
}

// At reports the bit at (x, y). Out-of-range coordinates return false.
func (r *Raster) At(x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return false
	}
	b := r.bits[y*BytesPerRow+x/8]
	return b&(0x80>>(x%8)) != 0
}

// Palette is the fixed two-color palette: index 0 (clear bit) is black,
// index 1 (set bit) is white.
var Palette = color.Palette{color.Black, color.White}

// Image converts the raster to a paletted image, one byte per pixel.
func (r *Raster) Image() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, Width, Height), Palette)
	for y := 0; y < Height; y++ {
		row := r.bits[y*BytesPerRow : (y+1)*BytesPerRow]
		for x := 0; x < Width; x++ {
			if row[x/8]&(0x80>>(x%8)) != 0 {
				img.Pix[y*img.Stride+x] = 1
			}
		}
	}
	return img
}

// PNG encodes the raster as a PNG.
func (r *Raster) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
