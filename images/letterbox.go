package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Letterbox describes an aspect-ratio preserving resize into a fixed model input.
//
// The source image is scaled by Gain and centred, leaving PadX columns on the left
// and right and PadY rows on the top and bottom.
type Letterbox struct {
	// Gain is min(modelWidth/imageWidth, modelHeight/imageHeight).
	Gain float32
	// PadX is the horizontal padding on each side, in model pixels.
	PadX float32
	// PadY is the vertical padding on each side, in model pixels.
	PadY float32
	// ImageWidth and ImageHeight are the source dimensions.
	ImageWidth, ImageHeight int
	// ModelWidth and ModelHeight are the model input dimensions.
	ModelWidth, ModelHeight int
}

// NewLetterbox computes the letterbox transform between an image and a model input.
//
// Arguments:
//   - imageWidth, imageHeight: The original image size in pixels.
//   - modelWidth, modelHeight: The model input size in pixels.
//
// Returns:
//   - Letterbox: The transform.
//   - error: If any dimension is not positive.
func NewLetterbox(imageWidth, imageHeight, modelWidth, modelHeight int) (Letterbox, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return Letterbox{}, fmt.Errorf("invalid image dimensions: %dx%d", imageWidth, imageHeight)
	}
	if modelWidth <= 0 || modelHeight <= 0 {
		return Letterbox{}, fmt.Errorf("invalid model dimensions: %dx%d", modelWidth, modelHeight)
	}

	iw, ih := float32(imageWidth), float32(imageHeight)
	mw, mh := float32(modelWidth), float32(modelHeight)
	gain := math32.Min(mw/iw, mh/ih)

	return Letterbox{
		Gain:        gain,
		PadX:        (mw - iw*gain) / 2,
		PadY:        (mh - ih*gain) / 2,
		ImageWidth:  imageWidth,
		ImageHeight: imageHeight,
		ModelWidth:  modelWidth,
		ModelHeight: modelHeight,
	}, nil
}

// ToImage maps a point from model space back to original image space.
func (l Letterbox) ToImage(x, y float32) (float32, float32) {
	return (x - l.PadX) / l.Gain, (y - l.PadY) / l.Gain
}

// ToModel maps a point from original image space into model space.
func (l Letterbox) ToModel(x, y float32) (float32, float32) {
	return x*l.Gain + l.PadX, y*l.Gain + l.PadY
}

// ScaledSize returns the size of the image content inside the model input, rounded
// to whole pixels.
func (l Letterbox) ScaledSize() (int, int) {
	return int(math32.Round(float32(l.ImageWidth) * l.Gain)), int(math32.Round(float32(l.ImageHeight) * l.Gain))
}

// ContentBounds returns the whole-pixel rectangle the scaled image occupies in the
// model input. Its origin differs from (PadX, PadY) by less than one model pixel
// (at most 0.75) when the scaled size is fractional; decoded boxes inherit that
// offset divided by Gain.
func (l Letterbox) ContentBounds() image.Rectangle {
	w, h := l.ScaledSize()
	w, h = max(w, 1), max(h, 1)
	left := (l.ModelWidth - w) / 2
	top := (l.ModelHeight - h) / 2
	return image.Rect(left, top, left+w, top+h)
}

// BoxToImage converts a center/size box in model space to a Rect in image space.
//
// Arguments:
//   - cx, cy: The box center in model pixels.
//   - w, h: The box size in model pixels.
//
// Returns:
//   - Rect: The box in original image pixels.
func (l Letterbox) BoxToImage(cx, cy, w, h float32) Rect {
	x1, y1 := l.ToImage(cx-w/2, cy-h/2)
	x2, y2 := l.ToImage(cx+w/2, cy+h/2)
	return RectFromCorners(x1, y1, x2, y2)
}
