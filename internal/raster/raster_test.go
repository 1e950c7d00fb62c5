package raster

import (
	"bytes"
	"errors"
	"image/png"
	"testing"
)

func TestDecodeExactSize(t *testing.T) {
	r, err := Decode(make([]byte, Size))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r == nil {
		t.Fatal("Decode returned nil raster")
	}
}

func TestDecodeWrongSize(t *testing.T) {
	for _, n := range []int{0, Size - 1, Size + 1, 2 * Size} {
		_, err := Decode(make([]byte, n))
		if err == nil {
			t.Errorf("Decode(%d bytes) succeeded, want error", n)
			continue
		}
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("Decode(%d bytes) error type = %T, want *DecodeError", n, err)
			continue
		}
		if decodeErr.Got != n || decodeErr.Want != Size {
			t.Errorf("DecodeError = %+v, want Got=%d Want=%d", decodeErr, n, Size)
		}
	}
}

func TestDecodeCopiesInput(t *testing.T) {
	data := make([]byte, Size)
	data[0] = 0x80
	r, _ := Decode(data)
	data[0] = 0
	if !r.At(0, 0) {
		t.Error("mutating input after Decode changed the raster")
	}
}

func TestAtMSBFirst(t *testing.T) {
	data := make([]byte, Size)
	data[0] = 0x80           // pixel (0,0)
	data[0] |= 0x01          // pixel (7,0)
	data[1] = 0x40           // pixel (9,0)
	data[BytesPerRow] = 0x80 // pixel (0,1)
	data[Size-1] = 0x01      // pixel (255,127)

	r, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	tests := []struct {
		x, y int
		want bool
	}{
		{0, 0, true},
		{7, 0, true},
		{1, 0, false},
		{8, 0, false},
		{9, 0, true},
		{0, 1, true},
		{255, 127, true},
		{254, 127, false},
		{-1, 0, false},
		{Width, 0, false},
		{0, Height, false},
	}
	for _, tt := range tests {
		if got := r.At(tt.x, tt.y); got != tt.want {
			t.Errorf("At(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestImage(t *testing.T) {
	data := make([]byte, Size)
	data[0] = 0x80
	r, _ := Decode(data)

	img := r.Image()
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("bounds = %v, want %dx%d", b, Width, Height)
	}
	if len(img.Palette) != 2 {
		t.Errorf("palette size = %d, want 2", len(img.Palette))
	}
	if got := img.Pix[0]; got != 1 {
		t.Errorf("pixel (0,0) index = %d, want 1", got)
	}
	if got := img.Pix[1]; got != 0 {
		t.Errorf("pixel (1,0) index = %d, want 0", got)
	}
}

func TestPNG(t *testing.T) {
	data := make([]byte, Size)
	for i := range data {
		data[i] = byte(i)
	}
	r, _ := Decode(data)

	encoded, err := r.PNG()
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decoding produced PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Errorf("PNG bounds = %v, want %dx%d", b, Width, Height)
	}
}
