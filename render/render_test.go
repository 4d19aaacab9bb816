package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

func white(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestAnnotate(t *testing.T) {
	src := white(200, 200)
	dets := []postprocess.Detection{{
		Box:        images.Rect{X: 50, Y: 60, Width: 100, Height: 80},
		Confidence: 0.87,
		Class:      3,
	}}

	out := Annotate(src, dets, func(c int) string { return "motorcycle" })
	require.Equal(t, src.Bounds(), out.Bounds())

	// The box edge is stroked in the class colour.
	r, g, b, _ := out.At(100, 140).RGBA()
	want := ClassColor(3)
	assert.InDelta(t, want.R, uint8(r>>8), 40)
	assert.InDelta(t, want.G, uint8(g>>8), 40)
	assert.InDelta(t, want.B, uint8(b>>8), 40)

	// The box interior and the source are untouched.
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, color.RGBAModel.Convert(out.At(100, 100)))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, src.RGBAAt(100, 140))
}

func TestAnnotate_NoDetections(t *testing.T) {
	src := white(10, 10)
	out := Annotate(src, nil, nil)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, color.RGBAModel.Convert(out.At(5, 5)))
}

func TestClassColor(t *testing.T) {
	assert.Equal(t, ClassColor(0), ClassColor(len(palette)))
	assert.NotEqual(t, ClassColor(0), ClassColor(1))
	assert.Equal(t, ClassColor(2), ClassColor(-2))
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, SavePNG(path, white(8, 4)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, white(3, 3)))
	_, err = png.Decode(&buf)
	assert.NoError(t, err)

	assert.Error(t, SavePNG(filepath.Join(t.TempDir(), "missing", "out.png"), white(1, 1)))
}
