// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/pkg/errors"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

var (
	// ErrEmptyImage is returned when there are no bytes to decode.
	ErrEmptyImage = errors.New("image data is empty")
	// ErrImageTooLarge is returned when the declared pixel count exceeds the limit.
	ErrImageTooLarge = errors.New("image is too large")
)

// Decode decodes JPEG or PNG bytes.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - image.Image: The decoded image.
//   - Image: The metadata of the encoded image (data is not retained).
//   - error: If the bytes are empty or cannot be decoded.
func Decode(data []byte) (image.Image, Image, error) {
	return DecodeLimited(data, 0)
}

// DecodeLimited decodes JPEG or PNG bytes whose header declares at most maxPixels
// pixels. The header is read before any pixel buffer is allocated.
//
// Arguments:
//   - data: The encoded image.
//   - maxPixels: The pixel budget. Zero or negative disables the check.
//
// Returns:
//   - image.Image: The decoded image.
//   - Image: The metadata of the encoded image.
//   - error: ErrEmptyImage, ErrImageTooLarge (wrapped), or a decoding error.
func DecodeLimited(data []byte, maxPixels int64) (image.Image, Image, error) {
	if len(data) == 0 {
		return nil, Image{}, ErrEmptyImage
	}
	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, Image{}, errors.Wrap(err, "image decoding failed")
		}
		if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
			return nil, Image{}, errors.Wrapf(ErrImageTooLarge,
				"%dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
		}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Image{}, errors.Wrap(err, "image decoding failed")
	}
	b := img.Bounds()
	return img, Image{Format: ImageFormat(format), Width: b.Dx(), Height: b.Dy()}, nil
}
