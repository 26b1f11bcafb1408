package fileicon

import "encoding/binary"

// fileHeaderSize is the size of a BITMAPFILEHEADER.
const fileHeaderSize = 14

// Assemble wraps a DIB header with its color table and the pixel data in a
// BMP file header, producing a bitmap that decodes without OS context.
func Assemble(headerAndTable, pixels []byte) []byte {
	offset := fileHeaderSize + len(headerAndTable)
	buf := make([]byte, offset+len(pixels))

	// BITMAPFILEHEADER
	buf[0], buf[1] = 'B', 'M'                                // signature
	binary.LittleEndian.PutUint32(buf[2:], uint32(len(buf))) // file size
	binary.LittleEndian.PutUint32(buf[6:], 0)                // reserved
	binary.LittleEndian.PutUint32(buf[10:], uint32(offset))  // pixel data offset

	copy(buf[fileHeaderSize:], headerAndTable)
	copy(buf[offset:], pixels)
	return buf
}
