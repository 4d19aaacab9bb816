package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
)

// LetterboxFill is the padding colour used by YOLO letterboxing.
var LetterboxFill = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// LetterboxImage resizes img into a modelWidth x modelHeight canvas while keeping
// its aspect ratio, centring the content and padding the remainder with fill.
//
// Arguments:
//   - img: The source image.
//   - modelWidth: The width of the model input.
//   - modelHeight: The height of the model input.
//   - fill: The padding colour. If nil, LetterboxFill is used.
//
// Returns:
//   - *image.RGBA: The letterboxed image.
//   - Letterbox: The transform that was applied, for mapping boxes back.
//   - error: If the image or model dimensions are invalid.
//
// @example
//
//	canvas, lb, err := LetterboxImage(frame, 640, 640, nil)
//	if err != nil {
//	    return err
//	}
//	x, y := lb.ToImage(320, 320) // centre of the model input in frame pixels
func LetterboxImage(img image.Image, modelWidth, modelHeight int, fill color.Color) (*image.RGBA, Letterbox, error) {
	bounds := img.Bounds()
	lb, err := NewLetterbox(bounds.Dx(), bounds.Dy(), modelWidth, modelHeight)
	if err != nil {
		return nil, Letterbox{}, err
	}
	if fill == nil {
		fill = LetterboxFill
	}

	content := lb.ContentBounds()
	newWidth, newHeight := content.Dx(), content.Dy()

	canvas := image.NewRGBA(image.Rect(0, 0, modelWidth, modelHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)

	var scaled image.Image = img
	if newWidth != bounds.Dx() || newHeight != bounds.Dy() {
		scaled = resize.Resize(uint(newWidth), uint(newHeight), img, resize.Bilinear)
	}

	draw.Draw(canvas, content, scaled, scaled.Bounds().Min, draw.Src)

	return canvas, lb, nil
}
