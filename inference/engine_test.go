package inference

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolo/metrics"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/models/yolov5"
)

// fakeInferer returns a fixed output and records the inputs it saw.
type fakeInferer struct {
	mu      sync.Mutex
	output  []float32
	err     error
	calls   int
	lastLen int
	closed  bool
}

func (f *fakeInferer) Infer(input []float32) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLen = len(input)
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func (f *fakeInferer) Close() error {
	f.closed = true
	return nil
}

// postProcessOnly hides the Decode method of a model.
type postProcessOnly struct {
	model.Model
}

func newTestModel(t *testing.T) model.Model {
	t.Helper()
	opts := yolov5.DefaultOptions()
	opts.Classes = 2
	m, err := yolov5.NewModel(opts)
	require.NoError(t, err)
	return m
}

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

// twoBoxOutput holds one box of class 1 at the model centre and one filtered anchor.
var twoBoxOutput = []float32{
	320, 320, 64, 64, 0.9, 0.1, 0.8,
	10, 10, 4, 4, 0.05, 1, 1,
}

func TestDetector_Detect(t *testing.T) {
	m := newTestModel(t)
	pre, err := NewLetterboxPreprocessor(640, 640)
	require.NoError(t, err)
	inf := &fakeInferer{output: twoBoxOutput}

	reg := prometheus.NewRegistry()
	mt, err := metrics.New(reg)
	require.NoError(t, err)

	d, err := NewDetector(m, pre, inf, WithMetrics(mt), WithLabels(func(c int) string {
		return []string{"cat", "dog"}[c]
	}))
	require.NoError(t, err)

	// 1280x640 frame: gain 0.5, 160 rows of padding.
	detections, err := d.Detect(context.Background(), solidImage(1280, 640))
	require.NoError(t, err)
	require.Len(t, detections, 1)

	det := detections[0]
	assert.Equal(t, 1, det.Class)
	assert.InDelta(t, 0.72, det.Confidence, 1e-6)
	assert.InDelta(t, 576, det.Box.X, 1e-3)
	assert.InDelta(t, 256, det.Box.Y, 1e-3)
	assert.InDelta(t, 128, det.Box.Width, 1e-3)
	assert.InDelta(t, 128, det.Box.Height, 1e-3)

	assert.Equal(t, 3*640*640, inf.lastLen)
	assert.Equal(t, float64(1), counterTotal(t, reg, "yolo_detections_total"))
}

func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestDetector_PostProcessOnlyModel(t *testing.T) {
	m := postProcessOnly{newTestModel(t)}
	pre, err := NewLetterboxPreprocessor(640, 640)
	require.NoError(t, err)

	d, err := NewDetector(m, pre, &fakeInferer{output: twoBoxOutput})
	require.NoError(t, err)

	detections, err := d.Detect(context.Background(), solidImage(640, 640))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, 1, detections[0].Class)
}

func TestDetector_Errors(t *testing.T) {
	m := newTestModel(t)
	pre, err := NewLetterboxPreprocessor(640, 640)
	require.NoError(t, err)

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := NewDetector(nil, pre, &fakeInferer{})
		assert.Error(t, err)
		_, err = NewDetector(m, nil, &fakeInferer{})
		assert.Error(t, err)
		_, err = NewDetector(m, pre, nil)
		assert.Error(t, err)
	})

	t.Run("inference failure", func(t *testing.T) {
		boom := errors.New("boom")
		d, err := NewDetector(m, pre, &fakeInferer{err: boom})
		require.NoError(t, err)
		_, err = d.Detect(context.Background(), solidImage(64, 64))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("malformed output", func(t *testing.T) {
		d, err := NewDetector(m, pre, &fakeInferer{output: make([]float32, 8)})
		require.NoError(t, err)
		_, err = d.Detect(context.Background(), solidImage(64, 64))
		assert.ErrorIs(t, err, postprocess.ErrInvalidTensorShape)
	})

	t.Run("nil image", func(t *testing.T) {
		d, err := NewDetector(m, pre, &fakeInferer{})
		require.NoError(t, err)
		_, err = d.Detect(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		inf := &fakeInferer{output: twoBoxOutput}
		d, err := NewDetector(m, pre, inf)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = d.Detect(ctx, solidImage(64, 64))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, inf.calls)
	})

	t.Run("closed", func(t *testing.T) {
		inf := &fakeInferer{output: twoBoxOutput}
		d, err := NewDetector(m, pre, inf)
		require.NoError(t, err)

		require.NoError(t, d.Close())
		require.NoError(t, d.Close())
		assert.True(t, inf.closed)

		_, err = d.Detect(context.Background(), solidImage(64, 64))
		assert.ErrorIs(t, err, ErrDetectorClosed)
	})
}

func TestDetector_Concurrent(t *testing.T) {
	m := newTestModel(t)
	pre, err := NewLetterboxPreprocessor(64, 64)
	require.NoError(t, err)

	opts := m.Options()
	opts.InputWidth, opts.InputHeight = 64, 64
	small, err := yolov5.NewModel(opts)
	require.NoError(t, err)

	inf := &fakeInferer{output: []float32{32, 32, 8, 8, 0.9, 0.9, 0}}
	d, err := NewDetector(small, pre, inf)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			detections, err := d.Detect(context.Background(), solidImage(128, 64))
			assert.NoError(t, err)
			assert.Len(t, detections, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, inf.calls)
}

func TestLetterboxPreprocessor(t *testing.T) {
	pre, err := NewLetterboxPreprocessor(4, 4)
	require.NoError(t, err)

	// 4x2 red image: kept at scale 1 with one fill row above and below.
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	out, err := pre.Preprocess(img, nil)
	require.NoError(t, err)
	require.Len(t, out, 3*16)

	fill := float32(114) / 255
	red, green, blue := out[0:16], out[16:32], out[32:48]
	for i := 0; i < 4; i++ {
		// First and last rows are padding.
		assert.InDelta(t, fill, red[i], 1e-6)
		assert.InDelta(t, fill, blue[12+i], 1e-6)
		// Middle rows hold the image.
		assert.InDelta(t, 1, red[4+i], 1e-6)
		assert.InDelta(t, 0, green[8+i], 1e-6)
		assert.InDelta(t, 0, blue[4+i], 1e-6)
	}

	t.Run("reuses destination", func(t *testing.T) {
		dst := make([]float32, 48)
		reused, err := pre.Preprocess(img, dst)
		require.NoError(t, err)
		assert.Same(t, &dst[0], &reused[0])
	})

	t.Run("bgr order", func(t *testing.T) {
		bgr := &LetterboxPreprocessor{Width: 4, Height: 4, Order: ChannelOrderBGR}
		out, err := bgr.Preprocess(img, nil)
		require.NoError(t, err)
		assert.InDelta(t, 0, out[4], 1e-6)
		assert.InDelta(t, 1, out[32+4], 1e-6)
	})

	t.Run("invalid size", func(t *testing.T) {
		_, err := NewLetterboxPreprocessor(0, 4)
		assert.Error(t, err)
	})
}
