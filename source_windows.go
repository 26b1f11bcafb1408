//go:build windows

package fileicon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

const dibRGBColors = 0

var (
	shell32 = windows.NewLazySystemDLL("shell32.dll")
	user32  = windows.NewLazySystemDLL("user32.dll")
	gdi32   = windows.NewLazySystemDLL("gdi32.dll")

	procExtractAssociatedIconW = shell32.NewProc("ExtractAssociatedIconW")
	procGetIconInfo            = user32.NewProc("GetIconInfo")
	procDestroyIcon            = user32.NewProc("DestroyIcon")
	procGetDC                  = user32.NewProc("GetDC")
	procReleaseDC              = user32.NewProc("ReleaseDC")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
)

// iconInfo is an ICONINFO.
type iconInfo struct {
	FIcon    int32
	XHotspot uint32
	YHotspot uint32
	HbmMask  uintptr
	HbmColor uintptr
}

// systemSource reads icons through shell32, user32 and gdi32.
type systemSource struct {
	mu sync.Mutex

	// planes holds the bitmaps GetIconInfo created for each split icon. They
	// are deleted together with the icon.
	planes map[IconHandle][2]BitmapHandle
}

// NewSystemSource returns the Windows icon source and drawing surface.
func NewSystemSource() (Platform, error) {
	for _, proc := range []*windows.LazyProc{
		procExtractAssociatedIconW,
		procGetIconInfo,
		procDestroyIcon,
		procGetDC,
		procReleaseDC,
		procGetDIBits,
		procDeleteObject,
	} {
		if err := proc.Find(); err != nil {
			return nil, fmt.Errorf("could not find proc %s: %w", proc.Name, err)
		}
	}
	return &systemSource{
		planes: make(map[IconHandle][2]BitmapHandle),
	}, nil
}

// ExtractIcon implements IconSource.
func (s *systemSource) ExtractIcon(path string) (IconHandle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return 0, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// ExtractAssociatedIconW may write the path of the icon's module back into
	// the buffer, which must hold at least MAX_PATH characters.
	name, err := windows.UTF16FromString(abs)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if len(name) < windows.MAX_PATH {
		buf := make([]uint16, windows.MAX_PATH)
		copy(buf, name)
		name = buf
	}

	var index uint16
	h, _, callErr := procExtractAssociatedIconW.Call(
		0,
		uintptr(unsafe.Pointer(&name[0])),
		uintptr(unsafe.Pointer(&index)),
	)
	if h == 0 {
		return 0, fmt.Errorf("%w: %s: %v", ErrNotFound, abs, callErr)
	}
	return IconHandle(h), nil
}

// SplitIcon implements IconSource.
func (s *systemSource) SplitIcon(icon IconHandle) (color, mask BitmapHandle, err error) {
	var info iconInfo
	ok, _, callErr := procGetIconInfo.Call(uintptr(icon), uintptr(unsafe.Pointer(&info)))
	if ok == 0 {
		return 0, 0, fmt.Errorf("%w: GetIconInfo: %v", ErrQuery, callErr)
	}

	color, mask = BitmapHandle(info.HbmColor), BitmapHandle(info.HbmMask)
	s.mu.Lock()
	old, split := s.planes[icon]
	s.planes[icon] = [2]BitmapHandle{color, mask}
	s.mu.Unlock()
	if split {
		deleteBitmaps(old)
	}

	if color == 0 {
		return 0, 0, fmt.Errorf("%w: monochrome icon has no color plane", ErrQuery)
	}
	return color, mask, nil
}

// ReleaseIcon implements IconSource.
func (s *systemSource) ReleaseIcon(icon IconHandle) {
	s.mu.Lock()
	planes, split := s.planes[icon]
	delete(s.planes, icon)
	s.mu.Unlock()
	if split {
		deleteBitmaps(planes)
	}
	procDestroyIcon.Call(uintptr(icon)) //nolint:errcheck
}

func deleteBitmaps(planes [2]BitmapHandle) {
	for _, bmp := range planes {
		if bmp != 0 {
			procDeleteObject.Call(uintptr(bmp)) //nolint:errcheck
		}
	}
}

// AcquireDC implements Surface. It returns the screen device context.
func (s *systemSource) AcquireDC() (DeviceContext, error) {
	dc, _, callErr := procGetDC.Call(0)
	if dc == 0 {
		return 0, fmt.Errorf("GetDC: %v", callErr)
	}
	return DeviceContext(dc), nil
}

// ReleaseDC implements Surface.
func (s *systemSource) ReleaseDC(dc DeviceContext) {
	procReleaseDC.Call(0, uintptr(dc)) //nolint:errcheck
}

// QueryDIB implements Surface via GetDIBits.
func (s *systemSource) QueryDIB(dc DeviceContext, bmp BitmapHandle, scanLines uint32, bits []byte, info []byte) error {
	if len(info) < dibHeaderSize {
		return fmt.Errorf("bitmap info buffer too small: %d bytes", len(info))
	}
	var bitsPtr unsafe.Pointer
	if len(bits) > 0 {
		bitsPtr = unsafe.Pointer(&bits[0])
	}

	lines, _, callErr := procGetDIBits.Call(
		uintptr(dc),
		uintptr(bmp),
		0,
		uintptr(scanLines),
		uintptr(bitsPtr),
		uintptr(unsafe.Pointer(&info[0])),
		dibRGBColors,
	)
	if lines == 0 {
		return fmt.Errorf("GetDIBits: %v", callErr)
	}
	return nil
}
