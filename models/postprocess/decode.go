package postprocess

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/images"
)

// parallelAnchors is the anchor count below which decoding stays on the calling
// goroutine.
const parallelAnchors = 2048

// DecodeArgs configures the decoding of a raw YOLO output tensor.
type DecodeArgs struct {
	// Dimensions is the number of floats per anchor: classes + 5.
	Dimensions int
	// ImageWidth and ImageHeight are the original image size in pixels.
	ImageWidth, ImageHeight int
	// ModelWidth and ModelHeight are the model input size in pixels.
	ModelWidth, ModelHeight int
	// ObjectnessThreshold filters whole anchors before any class work is done.
	ObjectnessThreshold float32
	// ClassConfidenceThreshold filters (anchor, class) pairs on objectness * score.
	ClassConfidenceThreshold float32
	// Workers bounds the number of goroutines. Zero uses GOMAXPROCS.
	Workers int
}

// Decode converts a flat [anchors][classes+5] YOLO output into detections in
// original image coordinates.
//
// Each anchor row is laid out as [cx, cy, w, h, objectness, score_0 ... score_n-1]
// in model input pixels. Anchors whose objectness is below the objectness
// threshold are skipped outright. Every class whose objectness * score clears the
// class threshold yields its own detection, so one anchor may produce several.
// Boxes are mapped back through the inverse letterbox transform.
//
// The output slice is only read. The order of the returned detections is
// unspecified.
//
// Arguments:
//   - output: The raw output tensor.
//   - args: The decoding parameters.
//
// Returns:
//   - []Detection: The candidate detections.
//   - error: ErrInvalidTensorShape (wrapped) if the tensor or sizes are inconsistent.
//
// @example
//
//	candidates, err := Decode(output, DecodeArgs{
//	    Dimensions:               85,
//	    ImageWidth:               1920,
//	    ImageHeight:              1080,
//	    ModelWidth:               640,
//	    ModelHeight:              640,
//	    ObjectnessThreshold:      0.2,
//	    ClassConfidenceThreshold: 0.25,
//	})
func Decode(output []float32, args DecodeArgs) ([]Detection, error) {
	numAnchors, err := ValidateShape(len(output), args.Dimensions)
	if err != nil {
		return nil, err
	}

	lb, err := images.NewLetterbox(args.ImageWidth, args.ImageHeight, args.ModelWidth, args.ModelHeight)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidTensorShape, err.Error())
	}

	d := decoder{
		output:     output,
		dimensions: args.Dimensions,
		letterbox:  lb,
		objectness: args.ObjectnessThreshold,
		confidence: args.ClassConfidenceThreshold,
	}

	workers := args.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || numAnchors < parallelAnchors {
		return d.decodeRange(0, numAnchors), nil
	}

	// Each worker owns a contiguous block of anchors and its own result slice.
	chunk := (numAnchors + workers - 1) / workers
	parts := make([][]Detection, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= numAnchors {
			break
		}
		end := min(start+chunk, numAnchors)
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			parts[w] = d.decodeRange(start, end)
		}(w, start, end)
	}
	wg.Wait()

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	detections := make([]Detection, 0, total)
	for _, p := range parts {
		detections = append(detections, p...)
	}
	return detections, nil
}

// DecodeTensor decodes a runtime output held in a dense tensor.
//
// The tensor must hold float32 values with shape [anchors, dimensions] or
// [1, anchors, dimensions]. The Dimensions field of args is taken from the last
// axis.
//
// Arguments:
//   - t: The output tensor.
//   - args: The decoding parameters.
//
// Returns:
//   - []Detection: The candidate detections.
//   - error: ErrInvalidTensorShape (wrapped) for any other shape or type.
func DecodeTensor(t *tensor.Dense, args DecodeArgs) ([]Detection, error) {
	if t == nil {
		return nil, errors.Wrap(ErrInvalidTensorShape, "tensor is nil")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(ErrInvalidTensorShape, "expected float32 tensor, got %v", t.Dtype())
	}

	shape := t.Shape()
	switch len(shape) {
	case 2:
	case 3:
		if shape[0] != 1 {
			return nil, errors.Wrapf(ErrInvalidTensorShape, "batch size must be 1, got shape %v", shape)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidTensorShape, "expected rank 2 or 3, got shape %v", shape)
	}

	if t.IsView() {
		materialized, ok := t.Materialize().(*tensor.Dense)
		if !ok {
			return nil, errors.Wrap(ErrInvalidTensorShape, "cannot materialize tensor view")
		}
		t = materialized
	}

	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidTensorShape, "unexpected backing type %T", t.Data())
	}

	args.Dimensions = shape[len(shape)-1]
	return Decode(data, args)
}

type decoder struct {
	output     []float32
	dimensions int
	letterbox  images.Letterbox
	objectness float32
	confidence float32
}

// decodeRange decodes anchors [start, end).
func (d *decoder) decodeRange(start, end int) []Detection {
	var detections []Detection
	for a := start; a < end; a++ {
		row := d.output[a*d.dimensions : (a+1)*d.dimensions]

		// NaN objectness never passes.
		objectness := row[4]
		if !(objectness >= d.objectness) {
			continue
		}

		var box images.Rect
		boxed := false
		for class, score := range row[MinDimensions:] {
			confidence := score * objectness
			if !(confidence >= d.confidence) {
				continue
			}
			if !boxed {
				box = d.letterbox.BoxToImage(row[0], row[1], row[2], row[3])
				boxed = true
			}
			detections = append(detections, Detection{
				Box:        box,
				Confidence: confidence,
				Class:      class,
			})
		}
	}
	return detections
}
