// Package inference - runs a detection model end to end.
package inference

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/metrics"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Preprocessor turns an image into the flat input tensor of a model.
type Preprocessor interface {
	// Preprocess writes the model input for img into dst and returns it. dst is
	// reused when it has the right length.
	Preprocess(img image.Image, dst []float32) ([]float32, error)
}

// Inferer runs a model on a prepared input tensor.
type Inferer interface {
	// Infer runs the model and returns the raw output tensor. The returned slice may
	// be reused by the next call.
	Infer(input []float32) ([]float32, error)
	// Close releases the runtime resources.
	Close() error
}

// candidateDecoder is implemented by models that expose decoding separately from
// suppression, so that each stage is timed on its own.
type candidateDecoder interface {
	Decode(output []float32, imageWidth, imageHeight int) ([]postprocess.Detection, error)
}

// Detector chains preprocessing, inference, decoding and suppression.
//
// Detect is safe for concurrent use. Inference is serialized because runtime
// sessions bind a single pair of input and output buffers; decoding and
// suppression run on the caller's goroutine.
type Detector struct {
	model        model.Model
	preprocessor Preprocessor
	inferer      Inferer
	metrics      *metrics.Metrics
	labels       func(int) string

	mu     sync.Mutex
	input  []float32
	closed bool
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithMetrics records stage durations and detection counts.
func WithMetrics(m *metrics.Metrics) DetectorOption {
	return func(d *Detector) { d.metrics = m }
}

// WithLabels names classes in the detection counter.
func WithLabels(label func(int) string) DetectorOption {
	return func(d *Detector) { d.labels = label }
}

// ErrDetectorClosed is returned by Detect after Close.
var ErrDetectorClosed = errors.New("detector closed")

// NewDetector creates a detector.
//
// Arguments:
//   - m: The model that post-processes raw output.
//   - pre: The preprocessor matching the model input.
//   - inf: The inference runtime.
//   - opts: Optional settings.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if a collaborator is missing.
func NewDetector(m model.Model, pre Preprocessor, inf Inferer, opts ...DetectorOption) (*Detector, error) {
	if m == nil {
		return nil, errors.New("model not configured")
	}
	if pre == nil {
		return nil, errors.New("preprocessor not configured")
	}
	if inf == nil {
		return nil, errors.New("inferer not configured")
	}

	d := &Detector{model: m, preprocessor: pre, inferer: inf}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Model returns the model of the detector.
func (d *Detector) Model() model.Model {
	return d.model
}

// Detect runs the full pipeline on one image.
//
// Arguments:
//   - ctx: Checked between stages. A cancelled context aborts before the next stage.
//   - img: The original image.
//
// Returns:
//   - []postprocess.Detection: Final detections in original image pixels, by
//     descending confidence.
//   - error: The context error, ErrDetectorClosed, or the failing stage's error.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.Errorf("image is empty: %v", bounds)
	}

	output, err := d.infer(ctx, img)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decoder, ok := d.model.(candidateDecoder)
	if !ok {
		start := time.Now()
		detections, err := d.model.PostProcess(output, bounds.Dx(), bounds.Dy())
		d.metrics.ObserveStage(metrics.StageDecode, start)
		if err != nil {
			d.metrics.AddError(metrics.StageDecode)
			return nil, err
		}
		d.count(detections)
		return detections, nil
	}

	start := time.Now()
	candidates, err := decoder.Decode(output, bounds.Dx(), bounds.Dy())
	d.metrics.ObserveStage(metrics.StageDecode, start)
	if err != nil {
		d.metrics.AddError(metrics.StageDecode)
		return nil, err
	}
	d.metrics.ObserveCandidates(len(candidates))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	detections := postprocess.Suppress(candidates, d.model.Options().NMS)
	d.metrics.ObserveStage(metrics.StageSuppress, start)
	d.count(detections)

	logger.Log().Debug("detect",
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.Int("candidates", len(candidates)),
		zap.Int("detections", len(detections)),
	)
	return detections, nil
}

func (d *Detector) count(detections []postprocess.Detection) {
	for _, det := range detections {
		if d.labels != nil {
			d.metrics.AddDetection(d.labels(det.Class))
		} else {
			d.metrics.AddClassIndex(det.Class)
		}
	}
}

// infer runs preprocessing and inference under the session lock and returns a
// copy of the output that outlives the lock.
func (d *Detector) infer(ctx context.Context, img image.Image) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDetectorClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	input, err := d.preprocessor.Preprocess(img, d.input)
	d.metrics.ObserveStage(metrics.StagePreprocess, start)
	if err != nil {
		d.metrics.AddError(metrics.StagePreprocess)
		return nil, errors.Wrap(err, "preprocess")
	}
	d.input = input

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	output, err := d.inferer.Infer(input)
	d.metrics.ObserveStage(metrics.StageInfer, start)
	if err != nil {
		d.metrics.AddError(metrics.StageInfer)
		return nil, errors.Wrap(err, "infer")
	}

	return append([]float32(nil), output...), nil
}

// Close releases the inference runtime. Later calls to Detect fail.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.inferer.Close()
}
