package fileicon

// IconHandle is an opaque, OS-owned reference to a loaded icon.
type IconHandle uintptr

// BitmapHandle is an opaque reference to one plane of an icon. It is owned by
// the icon handle it was split from and must not be used after that icon is
// released.
type BitmapHandle uintptr

// DeviceContext is an opaque drawing-surface context.
type DeviceContext uintptr

// IconSource resolves paths to icons.
// Implementations must be safe for concurrent use with distinct handles.
type IconSource interface {
	// ExtractIcon returns the icon associated with path, or ErrNotFound.
	ExtractIcon(path string) (IconHandle, error)
	// SplitIcon returns the color and mask planes of an icon.
	SplitIcon(icon IconHandle) (color, mask BitmapHandle, err error)
	// ReleaseIcon frees the icon and the planes split from it.
	// Calling it twice for the same handle is undefined.
	ReleaseIcon(icon IconHandle)
}

// Surface provides the drawing-surface context and the bitmap query primitive
// the DIB reader is built on.
type Surface interface {
	// AcquireDC returns a fresh context. It is never cached between reads.
	AcquireDC() (DeviceContext, error)
	// ReleaseDC frees a context returned by AcquireDC.
	ReleaseDC(dc DeviceContext)
	// QueryDIB fills info (a BITMAPINFO: header followed by the color table)
	// and, unless bits is nil, the first scanLines rows of pixel data.
	// With bits == nil and scanLines == 0 only the header is filled.
	QueryDIB(dc DeviceContext, bmp BitmapHandle, scanLines uint32, bits []byte, info []byte) error
}

// Platform is implemented by OS bindings providing both capabilities.
type Platform interface {
	IconSource
	Surface
}
