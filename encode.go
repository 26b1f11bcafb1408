package fileicon

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	bmp "github.com/sergeymakinen/go-bmp"
	"github.com/vincent-petithory/dataurl"
)

// Format names an output image format.
type Format string

// Supported output formats.
const (
	FormatPNG     Format = "png"
	FormatICO     Format = "ico"
	FormatBMP     Format = "bmp"
	FormatDataURL Format = "dataurl"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatPNG, FormatICO, FormatBMP, FormatDataURL}

// ValidFormat reports whether name is a supported output format.
func ValidFormat(name string) bool {
	for _, f := range Formats {
		if string(f) == strings.ToLower(name) {
			return true
		}
	}
	return false
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	if f == FormatDataURL {
		return "txt"
	}
	return string(f)
}

// Encoder turns the resolved icon into a portable image file.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
	Format() Format
}

// EncoderFor returns the encoder for the named format. icoSizes lists extra
// square sizes rendered into ICO output and is ignored by other formats.
func EncoderFor(name string, icoSizes []int) (Encoder, error) {
	switch Format(strings.ToLower(name)) {
	case FormatPNG:
		return PNGEncoder{}, nil
	case FormatICO:
		return ICOEncoder{Sizes: icoSizes}, nil
	case FormatBMP:
		return BMPEncoder{}, nil
	case FormatDataURL:
		return DataURLEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", name)
	}
}

// PNGEncoder encodes images as PNG.
type PNGEncoder struct{}

// Format implements Encoder.
func (PNGEncoder) Format() Format { return FormatPNG }

// Encode implements Encoder.
func (PNGEncoder) Encode(img image.Image) ([]byte, error) {
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png: %w", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// DataURLEncoder encodes images as a base64 PNG data URL.
type DataURLEncoder struct{}

// Format implements Encoder.
func (DataURLEncoder) Format() Format { return FormatDataURL }

// Encode implements Encoder.
func (DataURLEncoder) Encode(img image.Image) ([]byte, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	return []byte(dataurl.EncodeBytes(data)), nil
}

// BMPEncoder encodes images as 32-bit BMP.
type BMPEncoder struct{}

// Format implements Encoder.
func (BMPEncoder) Format() Format { return FormatBMP }

// Encode implements Encoder.
func (BMPEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: bmp: %w", ErrEncode, err)
	}
	return buf.Bytes(), nil
}
