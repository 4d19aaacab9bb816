package postprocess

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/images"
)

// square640 is a 640x640 image on a 640x640 model: gain 1, no padding.
func square640(dimensions int) DecodeArgs {
	return DecodeArgs{
		Dimensions:               dimensions,
		ImageWidth:               640,
		ImageHeight:              640,
		ModelWidth:               640,
		ModelHeight:              640,
		ObjectnessThreshold:      0.2,
		ClassConfidenceThreshold: 0.25,
	}
}

// randomOutput builds a tensor of anchors with scores in [0, 1) and boxes inside a
// 640x640 model input.
func randomOutput(r *rand.Rand, anchors, dimensions int) []float32 {
	out := make([]float32, anchors*dimensions)
	for a := 0; a < anchors; a++ {
		row := out[a*dimensions : (a+1)*dimensions]
		row[0] = r.Float32() * 640
		row[1] = r.Float32() * 640
		row[2] = 1 + r.Float32()*200
		row[3] = 1 + r.Float32()*200
		for i := 4; i < dimensions; i++ {
			row[i] = r.Float32()
		}
	}
	return out
}

func TestDecode_SingleAnchorSingleClass(t *testing.T) {
	output := []float32{320, 320, 100, 100, 0.9, 0.5}

	detections, err := Decode(output, square640(6))
	require.NoError(t, err)
	require.Len(t, detections, 1)

	d := detections[0]
	assert.Equal(t, 0, d.Class)
	assert.InDelta(t, 0.45, d.Confidence, 1e-6)
	assert.Equal(t, images.Rect{X: 270, Y: 270, Width: 100, Height: 100}, d.Box)
}

func TestDecode_Filters(t *testing.T) {
	tests := []struct {
		name     string
		output   []float32
		expected []int
	}{
		{
			name:     "objectness below threshold skips anchor",
			output:   []float32{100, 100, 10, 10, 0.1, 1.0, 1.0, 1.0},
			expected: nil,
		},
		{
			name:     "objectness equal to threshold is kept",
			output:   []float32{100, 100, 10, 10, 0.5, 1.0, 0.0, 0.0},
			expected: []int{0},
		},
		{
			name:     "combined score below class threshold",
			output:   []float32{100, 100, 10, 10, 0.3, 0.5, 0.5, 0.5},
			expected: nil,
		},
		{
			name:     "multi-label anchor emits every passing class",
			output:   []float32{100, 100, 10, 10, 1.0, 0.9, 0.1, 0.8},
			expected: []int{0, 2},
		},
		{
			name:     "NaN objectness never passes",
			output:   []float32{100, 100, 10, 10, float32NaN(), 1, 1, 1},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detections, err := Decode(tt.output, square640(8))
			require.NoError(t, err)

			var classes []int
			for _, d := range detections {
				classes = append(classes, d.Class)
			}
			assert.ElementsMatch(t, tt.expected, classes)
		})
	}
}

func TestDecode_CoordinateRoundTrip(t *testing.T) {
	// gain = 1 and no padding: decoded corners equal the anchor corners.
	output := []float32{
		100, 200, 50, 80, 0.9, 0.9,
		0, 0, 64, 32, 0.9, 0.9,
		639, 1, 2, 2, 0.9, 0.9,
	}
	detections, err := Decode(output, square640(6))
	require.NoError(t, err)
	require.Len(t, detections, 3)

	for i, d := range detections {
		row := output[i*6 : (i+1)*6]
		assert.Equal(t, row[0]-row[2]/2, d.Box.X)
		assert.Equal(t, row[1]-row[3]/2, d.Box.Y)
		assert.Equal(t, row[0]+row[2]/2, d.Box.Right())
		assert.Equal(t, row[1]+row[3]/2, d.Box.Bottom())
	}
}

func TestDecode_InvertsLetterbox(t *testing.T) {
	// 1280x640 into 640x640: gain 0.5, 160 rows of padding top and bottom.
	args := square640(6)
	args.ImageWidth = 1280

	detections, err := Decode([]float32{320, 320, 100, 50, 1, 1}, args)
	require.NoError(t, err)
	require.Len(t, detections, 1)

	assert.Equal(t, images.Rect{X: 540, Y: 270, Width: 200, Height: 100}, detections[0].Box)
}

func TestDecode_NormalizesNegativeSize(t *testing.T) {
	detections, err := Decode([]float32{100, 100, -20, -10, 1, 1}, square640(6))
	require.NoError(t, err)
	require.Len(t, detections, 1)

	assert.Equal(t, images.Rect{X: 90, Y: 95, Width: 20, Height: 10}, detections[0].Box)
}

func TestDecode_InvalidShape(t *testing.T) {
	tests := []struct {
		name   string
		output []float32
		args   DecodeArgs
	}{
		{"length not a multiple", make([]float32, 7), square640(6)},
		{"dimensions below five", make([]float32, 8), square640(4)},
		{"zero dimensions", make([]float32, 8), square640(0)},
		{"zero image width", make([]float32, 6), func() DecodeArgs { a := square640(6); a.ImageWidth = 0; return a }()},
		{"negative model height", make([]float32, 6), func() DecodeArgs { a := square640(6); a.ModelHeight = -640; return a }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detections, err := Decode(tt.output, tt.args)
			assert.ErrorIs(t, err, ErrInvalidTensorShape)
			assert.Nil(t, detections)
		})
	}
}

func TestDecode_EmptyOutput(t *testing.T) {
	detections, err := Decode(nil, square640(85))
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestDecode_DoesNotModifyOutput(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	output := randomOutput(r, 500, 10)
	original := append([]float32(nil), output...)

	first, err := Decode(output, square640(10))
	require.NoError(t, err)
	second, err := Decode(output, square640(10))
	require.NoError(t, err)

	assert.Equal(t, original, output)
	assert.Equal(t, first, second)
}

func TestDecode_ThresholdMonotonicity(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	output := randomOutput(r, 3000, 15)

	previous := -1
	for _, threshold := range []float32{0, 0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 1} {
		args := square640(15)
		args.ClassConfidenceThreshold = threshold

		detections, err := Decode(output, args)
		require.NoError(t, err)
		if previous >= 0 {
			assert.LessOrEqual(t, len(detections), previous, "threshold %v", threshold)
		}
		previous = len(detections)

		for _, d := range detections {
			assert.GreaterOrEqual(t, d.Confidence, threshold)
		}
	}
}

func TestDecode_ParallelMatchesSequential(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	output := randomOutput(r, 10000, 12)

	args := square640(12)
	args.ImageWidth = 1920
	args.ImageHeight = 1080

	args.Workers = 1
	sequential, err := Decode(output, args)
	require.NoError(t, err)

	args.Workers = 7
	parallel, err := Decode(output, args)
	require.NoError(t, err)

	// Worker blocks are concatenated in anchor order.
	require.NotEmpty(t, sequential)
	assert.Equal(t, sequential, parallel)
}

func TestDecodeTensor(t *testing.T) {
	data := []float32{
		320, 320, 100, 100, 0.9, 0.5,
		10, 10, 4, 4, 0.1, 1.0,
	}

	t.Run("batched", func(t *testing.T) {
		out := tensor.New(tensor.WithShape(1, 2, 6), tensor.WithBacking(data))
		detections, err := DecodeTensor(out, square640(0))
		require.NoError(t, err)
		require.Len(t, detections, 1)
		assert.Equal(t, 0, detections[0].Class)
	})

	t.Run("unbatched", func(t *testing.T) {
		out := tensor.New(tensor.WithShape(2, 6), tensor.WithBacking(data))
		detections, err := DecodeTensor(out, square640(0))
		require.NoError(t, err)
		assert.Len(t, detections, 1)
	})

	t.Run("batch of two", func(t *testing.T) {
		out := tensor.New(tensor.WithShape(2, 1, 6), tensor.WithBacking(data))
		_, err := DecodeTensor(out, square640(0))
		assert.ErrorIs(t, err, ErrInvalidTensorShape)
	})

	t.Run("rank one", func(t *testing.T) {
		out := tensor.New(tensor.WithShape(12), tensor.WithBacking(data))
		_, err := DecodeTensor(out, square640(0))
		assert.ErrorIs(t, err, ErrInvalidTensorShape)
	})

	t.Run("float64", func(t *testing.T) {
		out := tensor.New(tensor.WithShape(2, 6), tensor.Of(tensor.Float64))
		_, err := DecodeTensor(out, square640(0))
		assert.ErrorIs(t, err, ErrInvalidTensorShape)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := DecodeTensor(nil, square640(0))
		assert.ErrorIs(t, err, ErrInvalidTensorShape)
	})
}

func TestValidateThreshold(t *testing.T) {
	for _, v := range []float32{0, 0.25, 1} {
		assert.NoError(t, ValidateThreshold("x", v))
	}
	for _, v := range []float32{-0.01, 1.01, float32NaN()} {
		assert.ErrorIs(t, ValidateThreshold("x", v), ErrInvalidThreshold)
	}
}

func float32NaN() float32 {
	zero := float32(0)
	return zero / zero
}
