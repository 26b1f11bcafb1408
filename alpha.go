package fileicon

import (
	"fmt"
	"image"
)

// Resolve combines the color and mask planes of an icon into one image.
//
// Bitmaps of more than 24 bits per pixel may carry their own alpha channel.
// If any of their pixels has a non-zero alpha, the color plane is returned
// unchanged. Otherwise the inverted mask becomes the alpha channel: white mask
// pixels are transparent, black ones opaque.
//
// A single stray alpha byte is enough to skip the mask. This matches how icon
// bitmaps are produced in practice but is not a proof that the alpha channel
// is meaningful.
func Resolve(color *image.NRGBA, colorDepth int, mask *image.NRGBA) (*image.NRGBA, error) {
	cb, mb := color.Bounds(), mask.Bounds()
	if cb.Dx() != mb.Dx() || cb.Dy() != mb.Dy() {
		return nil, fmt.Errorf("%w: color %dx%d, mask %dx%d",
			ErrGeometryMismatch, cb.Dx(), cb.Dy(), mb.Dx(), mb.Dy())
	}

	if colorDepth > 24 && HasAlpha(color) {
		return color, nil
	}
	return applyMask(color, mask), nil
}

// HasAlpha reports whether any pixel of img has a non-zero alpha value.
// It stops at the first one found.
func HasAlpha(img *image.NRGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 0 {
				return true
			}
		}
	}
	return false
}

// applyMask returns the color plane's RGB with alpha taken from the mean of
// the inverted mask channels.
func applyMask(color, mask *image.NRGBA) *image.NRGBA {
	cb, mb := color.Bounds(), mask.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, cb.Dx(), cb.Dy()))
	for y := 0; y < cb.Dy(); y++ {
		src := color.Pix[color.PixOffset(cb.Min.X, cb.Min.Y+y):]
		msk := mask.Pix[mask.PixOffset(mb.Min.X, mb.Min.Y+y):]
		dst := out.Pix[out.PixOffset(0, y):]
		for x := 0; x < cb.Dx()*4; x += 4 {
			dst[x+0] = src[x+0]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x+2]
			dst[x+3] = maskAlpha(msk[x], msk[x+1], msk[x+2])
		}
	}
	return out
}

// maskAlpha inverts each channel and then takes the floor of their mean, so a
// white mask pixel is transparent and a black one opaque.
func maskAlpha(r, g, b uint8) uint8 {
	return uint8((765 - (uint16(r) + uint16(g) + uint16(b))) / 3)
}
