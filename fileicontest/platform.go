// Package fileicontest provides an in-memory icon platform for tests of code
// that uses fileicon.
package fileicontest

import (
	"fmt"
	"image"
	"sync"

	fileicon "github.com/babs/file-icon"
)

// Platform serves icons registered with Add. Color planes are 32-bit
// bitmaps carrying the image's alpha; mask planes are all white.
// It is safe for concurrent use.
type Platform struct {
	mu       sync.Mutex
	icons    map[string]*image.NRGBA
	live     map[fileicon.IconHandle]*image.NRGBA
	next     uintptr
	released int
}

// NewPlatform returns an empty Platform.
func NewPlatform() *Platform {
	return &Platform{
		icons: make(map[string]*image.NRGBA),
		live:  make(map[fileicon.IconHandle]*image.NRGBA),
	}
}

// Add registers img as the icon of path.
func (p *Platform) Add(path string, img *image.NRGBA) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.icons[path] = img
}

// Live returns the number of icon handles not yet released.
func (p *Platform) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Released returns the number of ReleaseIcon calls.
func (p *Platform) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// ExtractIcon implements fileicon.IconSource.
func (p *Platform) ExtractIcon(path string) (fileicon.IconHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	img, ok := p.icons[path]
	if !ok {
		return 0, fmt.Errorf("%w: %s", fileicon.ErrNotFound, path)
	}
	p.next++
	h := fileicon.IconHandle(p.next)
	p.live[h] = img
	return h, nil
}

// SplitIcon implements fileicon.IconSource. The color plane of icon h is
// 2h, the mask 2h+1.
func (p *Platform) SplitIcon(h fileicon.IconHandle) (color, mask fileicon.BitmapHandle, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.live[h]; !ok {
		return 0, 0, fmt.Errorf("%w: unknown icon %d", fileicon.ErrQuery, h)
	}
	return fileicon.BitmapHandle(h * 2), fileicon.BitmapHandle(h*2 + 1), nil
}

// ReleaseIcon implements fileicon.IconSource.
func (p *Platform) ReleaseIcon(h fileicon.IconHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, h)
	p.released++
}

// AcquireDC implements fileicon.Surface.
func (p *Platform) AcquireDC() (fileicon.DeviceContext, error) {
	return 1, nil
}

// ReleaseDC implements fileicon.Surface.
func (p *Platform) ReleaseDC(fileicon.DeviceContext) {}

// QueryDIB implements fileicon.Surface.
func (p *Platform) QueryDIB(_ fileicon.DeviceContext, bmp fileicon.BitmapHandle, _ uint32, bits []byte, info []byte) error {
	p.mu.Lock()
	img, ok := p.live[fileicon.IconHandle(bmp/2)]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown bitmap %d", bmp)
	}

	b := img.Bounds()
	pixels := bgra(img, bmp%2 == 1)
	fileicon.DibHeader{
		Size:      40,
		Width:     int32(b.Dx()),
		Height:    int32(b.Dy()),
		Planes:    1,
		BitCount:  32,
		SizeImage: uint32(len(pixels)),
	}.Put(info)
	if bits != nil {
		if len(bits) < len(pixels) {
			return fmt.Errorf("pixel buffer too small: %d < %d", len(bits), len(pixels))
		}
		copy(bits, pixels)
	}
	return nil
}

// bgra lays img out bottom-up in BGRA order. A mask is all white.
func bgra(img *image.NRGBA, mask bool) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		row := out[(h-1-y)*w*4:]
		for x := 0; x < w; x++ {
			if mask {
				row[x*4+0], row[x*4+1], row[x*4+2], row[x*4+3] = 0xff, 0xff, 0xff, 0xff
				continue
			}
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			row[x*4+0], row[x*4+1], row[x*4+2], row[x*4+3] = c.B, c.G, c.R, c.A
		}
	}
	return out
}
