package fileicon

import (
	"encoding/binary"
	"fmt"
)

const (
	// dibHeaderSize is the size of a BITMAPINFOHEADER.
	dibHeaderSize = 40

	// maxPaletteDepth is the largest bit depth whose color table fits the
	// preallocated info buffer.
	maxPaletteDepth = 8

	biRGB = 0
)

// DibHeader is a BITMAPINFOHEADER.
type DibHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

// ParseDibHeader reads a header from the first 40 bytes of b.
func ParseDibHeader(b []byte) (DibHeader, error) {
	if len(b) < dibHeaderSize {
		return DibHeader{}, fmt.Errorf("DIB header too short: %d bytes", len(b))
	}
	le := binary.LittleEndian
	return DibHeader{
		Size:          le.Uint32(b[0:]),
		Width:         int32(le.Uint32(b[4:])),
		Height:        int32(le.Uint32(b[8:])),
		Planes:        le.Uint16(b[12:]),
		BitCount:      le.Uint16(b[14:]),
		Compression:   le.Uint32(b[16:]),
		SizeImage:     le.Uint32(b[20:]),
		XPelsPerMeter: int32(le.Uint32(b[24:])),
		YPelsPerMeter: int32(le.Uint32(b[28:])),
		ClrUsed:       le.Uint32(b[32:]),
		ClrImportant:  le.Uint32(b[36:]),
	}, nil
}

// Put writes the header into the first 40 bytes of b.
func (h DibHeader) Put(b []byte) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], h.Size)
	le.PutUint32(b[4:], uint32(h.Width))
	le.PutUint32(b[8:], uint32(h.Height))
	le.PutUint16(b[12:], h.Planes)
	le.PutUint16(b[14:], h.BitCount)
	le.PutUint32(b[16:], h.Compression)
	le.PutUint32(b[20:], h.SizeImage)
	le.PutUint32(b[24:], uint32(h.XPelsPerMeter))
	le.PutUint32(b[28:], uint32(h.YPelsPerMeter))
	le.PutUint32(b[32:], h.ClrUsed)
	le.PutUint32(b[36:], h.ClrImportant)
}

// Rows returns the absolute height of the bitmap.
func (h DibHeader) Rows() int {
	if h.Height < 0 {
		return int(-h.Height)
	}
	return int(h.Height)
}

// Stride returns the number of bytes per row, including DWORD padding.
func (h DibHeader) Stride() int {
	return ((int(h.Width)*int(h.BitCount) + 31) / 32) * 4
}

// ColorTableSize returns the size in bytes of the color table that follows a
// header of the given bit depth.
func ColorTableSize(depth int) int {
	if depth >= 24 || depth <= 0 {
		return 0
	}
	return (1 << depth) * 4
}

// DIB is a device-independent bitmap read from a bitmap handle.
type DIB struct {
	Header DibHeader
	// Info holds the header followed by the color table.
	Info   []byte
	Pixels []byte
}

// BitDepth returns the bits per pixel of the bitmap.
func (d *DIB) BitDepth() int {
	return int(d.Header.BitCount)
}

// Bitmap returns the DIB as a standalone BMP file.
func (d *DIB) Bitmap() []byte {
	return Assemble(d.Info, d.Pixels)
}

// ReadBitmap reads the bitmap behind bmp. It queries the header first and then
// the pixel data into buffers sized from that header.
func ReadBitmap(s Surface, bmp BitmapHandle) (*DIB, error) {
	dc, err := s.AcquireDC()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	defer s.ReleaseDC(dc)

	// Room for the header and the largest supported color table. Trimmed once
	// the actual depth is known.
	info := make([]byte, dibHeaderSize+ColorTableSize(maxPaletteDepth))
	DibHeader{Size: dibHeaderSize}.Put(info)

	if err := s.QueryDIB(dc, bmp, 0, nil, info); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrQuery, err)
	}
	header, err := ParseDibHeader(info)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrQuery, err)
	}
	if err := checkHeader(header); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrQuery, err)
	}

	info = info[:int(header.Size)+ColorTableSize(int(header.BitCount))]

	// Request uncompressed data with a full color table.
	header.Compression = biRGB
	header.ClrUsed = 0
	header.ClrImportant = 0
	if header.SizeImage == 0 {
		header.SizeImage = uint32(header.Stride() * header.Rows())
	}
	header.Put(info)

	pixels := make([]byte, header.SizeImage)
	if err := s.QueryDIB(dc, bmp, uint32(header.Rows()), pixels, info); err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrQuery, err)
	}

	// The data query may update the header; keep the parsed copy in sync.
	if header, err = ParseDibHeader(info); err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrQuery, err)
	}

	return &DIB{
		Header: header,
		Info:   info,
		Pixels: pixels,
	}, nil
}

func checkHeader(h DibHeader) error {
	if h.Size != dibHeaderSize {
		return fmt.Errorf("unsupported header size %d", h.Size)
	}
	if h.Width <= 0 || h.Height == 0 {
		return fmt.Errorf("invalid dimensions %dx%d", h.Width, h.Height)
	}
	switch h.BitCount {
	case 1, 2, 4, 8, 24, 32:
		return nil
	default:
		return fmt.Errorf("unsupported bit depth %d", h.BitCount)
	}
}
