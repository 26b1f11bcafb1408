package fileicon

import (
	"encoding/binary"
	"fmt"
	"image"
	"slices"

	"github.com/fogleman/gg"
)

// ICOEncoder encodes images as ICO with PNG-compressed entries.
// PNG-in-ICO is supported since Vista.
type ICOEncoder struct {
	// Sizes lists additional square sizes to render. The source size is
	// always included.
	Sizes []int
}

// Format implements Encoder.
func (ICOEncoder) Format() Format { return FormatICO }

// Encode implements Encoder.
func (e ICOEncoder) Encode(img image.Image) ([]byte, error) {
	b := img.Bounds()
	images := []image.Image{img}
	for _, size := range e.sizes(b.Dx(), b.Dy()) {
		images = append(images, scaleImage(img, size))
	}

	entries := make([]icoEntry, 0, len(images))
	for _, m := range images {
		data, err := encodePNG(m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, icoEntry{
			width:  m.Bounds().Dx(),
			height: m.Bounds().Dy(),
			data:   data,
		})
	}
	return wrapPNGsInICO(entries)
}

// sizes returns the distinct, ascending extra sizes that differ from the
// source dimensions.
func (e ICOEncoder) sizes(w, h int) []int {
	var out []int
	for _, s := range e.Sizes {
		if s <= 0 || s > 256 || (s == w && s == h) {
			continue
		}
		out = append(out, s)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// scaleImage renders img into a size x size canvas.
func scaleImage(img image.Image, size int) image.Image {
	b := img.Bounds()
	dc := gg.NewContext(size, size)
	dc.Scale(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	return dc.Image()
}

type icoEntry struct {
	width, height int
	data          []byte
}

// wrapPNGsInICO wraps PNG images in an ICO container.
func wrapPNGsInICO(entries []icoEntry) ([]byte, error) {
	const headerSize = 6
	const entrySize = 16

	if len(entries) == 0 || len(entries) > 0xFFFF {
		return nil, fmt.Errorf("%w: ico: %d images", ErrEncode, len(entries))
	}

	total := headerSize + entrySize*len(entries)
	for _, e := range entries {
		total += len(e.data)
	}
	buf := make([]byte, total)

	// ICONDIR header
	binary.LittleEndian.PutUint16(buf[0:], 0)                    // reserved
	binary.LittleEndian.PutUint16(buf[2:], 1)                    // type: ICO
	binary.LittleEndian.PutUint16(buf[4:], uint16(len(entries))) // count

	dataOff := headerSize + entrySize*len(entries)
	for i, e := range entries {
		if e.width > 256 || e.height > 256 {
			return nil, fmt.Errorf("%w: ico: image %dx%d exceeds 256x256", ErrEncode, e.width, e.height)
		}

		// ICONDIRENTRY
		off := headerSize + entrySize*i
		buf[off+0] = icoDimension(e.width)                              // width
		buf[off+1] = icoDimension(e.height)                             // height
		buf[off+2] = 0                                                  // color count (0 for truecolor)
		buf[off+3] = 0                                                  // reserved
		binary.LittleEndian.PutUint16(buf[off+4:], 1)                   // planes
		binary.LittleEndian.PutUint16(buf[off+6:], 32)                  // bits per pixel
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(len(e.data))) // data size
		binary.LittleEndian.PutUint32(buf[off+12:], uint32(dataOff))    // data offset

		copy(buf[dataOff:], e.data)
		dataOff += len(e.data)
	}
	return buf, nil
}

// icoDimension encodes a width or height; 0 means 256.
func icoDimension(v int) byte {
	if v >= 256 {
		return 0
	}
	return byte(v)
}
