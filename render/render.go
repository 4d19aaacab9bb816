// Package render - draws detections onto images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// palette cycles box colours by class index.
var palette = []color.RGBA{
	{R: 230, G: 25, B: 75, A: 255},
	{R: 60, G: 180, B: 75, A: 255},
	{R: 255, G: 225, B: 25, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
	{R: 145, G: 30, B: 180, A: 255},
	{R: 70, G: 240, B: 240, A: 255},
	{R: 240, G: 50, B: 230, A: 255},
}

// ClassColor returns the box colour of a class.
func ClassColor(class int) color.RGBA {
	if class < 0 {
		class = -class
	}
	return palette[class%len(palette)]
}

// LineWidth is the stroke width of boxes in pixels.
const LineWidth = 2

// Annotate draws every detection as a box with a "label confidence" caption.
//
// Arguments:
//   - img: The original image. It is not modified.
//   - detections: Detections in img pixels.
//   - label: Names a class index. Nil prints the index.
//
// Returns:
//   - image.Image: A new annotated image.
func Annotate(img image.Image, detections []postprocess.Detection, label func(int) string) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetLineWidth(LineWidth)

	for _, d := range detections {
		c := ClassColor(d.Class)
		dc.SetColor(c)
		dc.DrawRectangle(float64(d.Box.X), float64(d.Box.Y), float64(d.Box.Width), float64(d.Box.Height))
		dc.Stroke()

		name := fmt.Sprintf("%d", d.Class)
		if label != nil {
			name = label(d.Class)
		}
		caption := fmt.Sprintf("%s %.2f", name, d.Confidence)

		w, h := dc.MeasureString(caption)
		x, y := float64(d.Box.X), float64(d.Box.Y)
		if y-h-4 < 0 {
			y = float64(d.Box.Bottom()) + h + 4
		}
		dc.DrawRectangle(x, y-h-4, w+4, h+4)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawString(caption, x+2, y-2)
	}

	return dc.Image()
}

// SavePNG writes an image as PNG to path.
func SavePNG(path string, img image.Image) error {
	if err := gg.SavePNG(path, img); err != nil {
		return errors.Wrapf(err, "saving %s", path)
	}
	return nil
}

// EncodePNG writes an image as PNG to w.
func EncodePNG(w io.Writer, img image.Image) error {
	return gg.NewContextForImage(img).EncodePNG(w)
}
