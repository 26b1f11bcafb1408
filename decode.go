package fileicon

import (
	"bytes"
	"fmt"
	"image"

	bmp "github.com/sergeymakinen/go-bmp"
	"golang.org/x/image/draw"
)

// Decoder turns a standalone bitmap into a pixel grid.
type Decoder interface {
	Decode(bitmap []byte) (*image.NRGBA, error)
}

// BMPDecoder decodes BMP files. 32-bit bitmaps keep their alpha channel;
// palette and 24-bit bitmaps decode as fully opaque.
type BMPDecoder struct{}

// Decode implements Decoder.
func (BMPDecoder) Decode(bitmap []byte) (*image.NRGBA, error) {
	img, err := bmp.Decode(bytes.NewReader(bitmap))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return normalize(img), nil
}

// normalize converts img to a zero-origin NRGBA grid. NRGBA input is returned
// as is so that color values under zero alpha survive.
func normalize(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
