package inference

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/images"
)

// ChannelOrder is the colour channel order of the model input planes.
type ChannelOrder string

const (
	// ChannelOrderRGB puts red in the first plane.
	ChannelOrderRGB ChannelOrder = "rgb"
	// ChannelOrderBGR puts blue in the first plane.
	ChannelOrderBGR ChannelOrder = "bgr"
)

// LetterboxPreprocessor scales an image into the model input keeping its aspect
// ratio, centres it on a filled canvas and writes planar CHW float32 values in
// [0, 1].
type LetterboxPreprocessor struct {
	// Width and Height are the model input size.
	Width, Height int
	// Fill is the padding colour. Nil uses images.LetterboxFill.
	Fill color.Color
	// Order is the channel order. Empty means RGB.
	Order ChannelOrder
}

// NewLetterboxPreprocessor creates a preprocessor for a model input size.
//
// Arguments:
//   - width: The model input width.
//   - height: The model input height.
//
// Returns:
//   - *LetterboxPreprocessor: The preprocessor.
//   - error: An error if the size is not positive.
func NewLetterboxPreprocessor(width, height int) (*LetterboxPreprocessor, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid model input size: %dx%d", width, height)
	}
	return &LetterboxPreprocessor{Width: width, Height: height, Order: ChannelOrderRGB}, nil
}

// Preprocess implements Preprocessor.
func (p *LetterboxPreprocessor) Preprocess(img image.Image, dst []float32) ([]float32, error) {
	canvas, _, err := images.LetterboxImage(img, p.Width, p.Height, p.Fill)
	if err != nil {
		return nil, err
	}

	plane := p.Width * p.Height
	if len(dst) != plane*3 {
		dst = make([]float32, plane*3)
	}

	first, third := dst[0:plane], dst[plane*2:plane*3]
	if p.Order == ChannelOrderBGR {
		first, third = third, first
	}
	red, green, blue := first, dst[plane:plane*2], third

	i := 0
	for y := 0; y < p.Height; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+p.Width*4]
		for x := 0; x < p.Width; x++ {
			px := row[x*4 : x*4+3]
			red[i] = float32(px[0]) / 255.0
			green[i] = float32(px[1]) / 255.0
			blue[i] = float32(px[2]) / 255.0
			i++
		}
	}
	return dst, nil
}
