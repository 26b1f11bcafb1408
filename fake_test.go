package fileicon

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
)

var (
	blackWhite = color.Palette{color.NRGBA{0, 0, 0, 255}, color.NRGBA{255, 255, 255, 255}}

	errFakeQuery = errors.New("fake query failure")
	errFakeDC    = errors.New("fake dc failure")
)

// fakeBitmap is a DIB as the OS would report it.
type fakeBitmap struct {
	width, height int
	depth         int
	table         []byte
	pixels        []byte
	// zeroSizeImage reports biSizeImage as 0 in the header query.
	zeroSizeImage bool
	// headerCompression is the compression the header query reports.
	headerCompression uint32
}

// newFakeBitmap encodes img bottom-up at the given depth. Depths below 24 use
// palette.
func newFakeBitmap(img *image.NRGBA, depth int, palette color.Palette) *fakeBitmap {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := ((w*depth + 31) / 32) * 4
	fb := &fakeBitmap{
		width:  w,
		height: h,
		depth:  depth,
		pixels: make([]byte, stride*h),
	}

	if depth < 24 {
		fb.table = make([]byte, ColorTableSize(depth))
		for i, c := range palette {
			r, g, bl, _ := c.RGBA()
			fb.table[i*4+0] = byte(bl >> 8)
			fb.table[i*4+1] = byte(g >> 8)
			fb.table[i*4+2] = byte(r >> 8)
		}
	}

	for y := 0; y < h; y++ {
		row := fb.pixels[(h-1-y)*stride:]
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			switch depth {
			case 32:
				row[x*4+0], row[x*4+1], row[x*4+2], row[x*4+3] = c.B, c.G, c.R, c.A
			case 24:
				row[x*3+0], row[x*3+1], row[x*3+2] = c.B, c.G, c.R
			default:
				idx := byte(palette.Index(color.NRGBA{c.R, c.G, c.B, 255}))
				perByte := 8 / depth
				shift := uint(8 - depth*(x%perByte+1))
				row[x/perByte] |= idx << shift
			}
		}
	}
	return fb
}

func (fb *fakeBitmap) header(withSizeImage bool) DibHeader {
	h := DibHeader{
		Size:     dibHeaderSize,
		Width:    int32(fb.width),
		Height:   int32(fb.height),
		Planes:   1,
		BitCount: uint16(fb.depth),
	}
	if withSizeImage {
		h.SizeImage = uint32(len(fb.pixels))
	}
	return h
}

// headerAndTable returns the BITMAPINFO of the bitmap.
func (fb *fakeBitmap) headerAndTable() []byte {
	info := make([]byte, dibHeaderSize+len(fb.table))
	fb.header(true).Put(info)
	copy(info[dibHeaderSize:], fb.table)
	return info
}

type fakeIcon struct {
	color, mask *fakeBitmap
}

// queryCall records one QueryDIB invocation.
type queryCall struct {
	bmp       BitmapHandle
	scanLines uint32
	bitsNil   bool
	infoLen   int
	header    DibHeader
}

// fakePlatform serves icons registered by path.
type fakePlatform struct {
	mu       sync.Mutex
	icons    map[string]fakeIcon
	live     map[IconHandle]fakeIcon
	bitmaps  map[BitmapHandle]*fakeBitmap
	next     uintptr
	released map[IconHandle]int
	queries  []queryCall

	dcAcquired int
	dcReleased int

	// failDC makes AcquireDC fail.
	failDC bool

	// failQuery, if set, is consulted before every QueryDIB.
	failQuery func(plane Plane, dataQuery bool) error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		icons:    make(map[string]fakeIcon),
		live:     make(map[IconHandle]fakeIcon),
		bitmaps:  make(map[BitmapHandle]*fakeBitmap),
		released: make(map[IconHandle]int),
	}
}

func (p *fakePlatform) add(path string, colorPlane, maskPlane *fakeBitmap) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.icons[path] = fakeIcon{color: colorPlane, mask: maskPlane}
}

func (p *fakePlatform) ExtractIcon(path string) (IconHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	icon, ok := p.icons[path]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	p.next++
	h := IconHandle(p.next)
	p.live[h] = icon
	return h, nil
}

func (p *fakePlatform) SplitIcon(icon IconHandle) (BitmapHandle, BitmapHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fi, ok := p.live[icon]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown icon %d", ErrQuery, icon)
	}
	colorBmp, maskBmp := BitmapHandle(icon*2), BitmapHandle(icon*2+1)
	p.bitmaps[colorBmp] = fi.color
	p.bitmaps[maskBmp] = fi.mask
	return colorBmp, maskBmp, nil
}

func (p *fakePlatform) ReleaseIcon(icon IconHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released[icon]++
	delete(p.live, icon)
	delete(p.bitmaps, BitmapHandle(icon*2))
	delete(p.bitmaps, BitmapHandle(icon*2+1))
}

func (p *fakePlatform) AcquireDC() (DeviceContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDC {
		return 0, errFakeDC
	}
	p.dcAcquired++
	return DeviceContext(0xDC), nil
}

func (p *fakePlatform) ReleaseDC(dc DeviceContext) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dcReleased++
}

func (p *fakePlatform) QueryDIB(dc DeviceContext, bmp BitmapHandle, scanLines uint32, bits []byte, info []byte) error {
	p.mu.Lock()
	fb, ok := p.bitmaps[bmp]
	header, _ := ParseDibHeader(info)
	p.queries = append(p.queries, queryCall{
		bmp:       bmp,
		scanLines: scanLines,
		bitsNil:   bits == nil,
		infoLen:   len(info),
		header:    header,
	})
	failQuery := p.failQuery
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown bitmap %d", bmp)
	}
	if failQuery != nil {
		plane := PlaneColor
		if bmp%2 == 1 {
			plane = PlaneMask
		}
		if err := failQuery(plane, bits != nil); err != nil {
			return err
		}
	}

	if bits == nil {
		if scanLines != 0 || header.Size != dibHeaderSize {
			return errors.New("bad header query")
		}
		h := fb.header(!fb.zeroSizeImage)
		h.Compression = fb.headerCompression
		h.Put(info)
		return nil
	}

	if header.Compression != biRGB {
		return errors.New("compressed data requested")
	}
	if len(info) < dibHeaderSize+len(fb.table) {
		return errors.New("info buffer too small for color table")
	}
	if len(bits) < len(fb.pixels) || int(scanLines) != fb.height {
		return errors.New("bad data query")
	}
	fb.header(true).Put(info)
	copy(info[dibHeaderSize:], fb.table)
	copy(bits, fb.pixels)
	return nil
}

func (p *fakePlatform) releaseCount(icon IconHandle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released[icon]
}

func (p *fakePlatform) totalReleases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.released {
		n += c
	}
	return n
}

func (p *fakePlatform) queryLog() []queryCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queryCall(nil), p.queries...)
}

// filledImage returns a w x h image of a single color.
func filledImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// gradientImage returns a w x h image with varying colors and the given alpha.
func gradientImage(w, h int, alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 16), uint8(y * 16), uint8((x + y) * 8), alpha})
		}
	}
	return img
}

// alphaIcon returns a 32-bit icon with a transparent origin pixel.
func alphaIcon(size int) (*image.NRGBA, *fakeBitmap, *fakeBitmap) {
	img := gradientImage(size, size, 255)
	img.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 0})
	img.SetNRGBA(1, 0, color.NRGBA{10, 20, 30, 128})
	mask := filledImage(size, size, color.NRGBA{255, 255, 255, 255})
	return img, newFakeBitmap(img, 32, nil), newFakeBitmap(mask, 1, blackWhite)
}
