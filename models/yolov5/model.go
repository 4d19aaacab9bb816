// Package yolov5 - YOLOv5 model.
package yolov5

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

const (
	// DefaultInputSize is the square input size of the stock YOLOv5 exports.
	DefaultInputSize = 640
	// DefaultClasses is the number of COCO classes.
	DefaultClasses = 80
	// DefaultObjectnessThreshold drops anchors before any per-class work.
	DefaultObjectnessThreshold = 0.2
	// DefaultClassConfidenceThreshold drops (anchor, class) pairs on objectness * score.
	DefaultClassConfidenceThreshold = 0.25
)

// YOLOv5 is the instance of the YOLOv5 model.
type YOLOv5 struct {
	options model.Options
}

// DefaultOptions returns the options of a stock 640x640 COCO export.
//
// Returns:
//   - model.Options: The default options.
func DefaultOptions() model.Options {
	return model.Options{
		Name:                     model.ModelNameYOLOv5,
		Family:                   model.ModelFamilyYOLO,
		InputWidth:               DefaultInputSize,
		InputHeight:              DefaultInputSize,
		Classes:                  DefaultClasses,
		Inputs:                   []string{"images"},
		Outputs:                  []string{"output0"},
		ObjectnessThreshold:      DefaultObjectnessThreshold,
		ClassConfidenceThreshold: DefaultClassConfidenceThreshold,
		NMS:                      postprocess.DefaultNMSConfig(),
	}
}

// Options returns the options for the YOLOv5 model.
//
// Returns:
//   - The options for the YOLOv5 model.
func (m *YOLOv5) Options() model.Options {
	return m.options
}

// NewModel creates a new model.
//
// Thresholds are validated here so that post-processing never has to.
//
// Arguments:
//   - args: The arguments for creating a new model.
//
// Returns:
//   - *YOLOv5: The model.
//   - error: An error if the arguments are invalid.
func NewModel(args model.NewModelArgs) (*YOLOv5, error) {
	if args.Name == "" {
		args.Name = model.ModelNameYOLOv5
	}
	if args.Family == "" {
		args.Family = model.ModelFamilyYOLO
	}

	if args.InputWidth <= 0 || args.InputHeight <= 0 {
		return nil, errors.Errorf("NewModel requires a positive input size, got %dx%d",
			args.InputWidth, args.InputHeight)
	}
	if args.Classes <= 0 {
		return nil, errors.Errorf("NewModel requires at least one class, got %d", args.Classes)
	}
	if args.Workers < 0 {
		return nil, errors.Errorf("NewModel requires workers >= 0, got %d", args.Workers)
	}
	if err := postprocess.ValidateThreshold("objectness_threshold", args.ObjectnessThreshold); err != nil {
		return nil, err
	}
	if err := postprocess.ValidateThreshold("class_confidence_threshold", args.ClassConfidenceThreshold); err != nil {
		return nil, err
	}
	if err := args.NMS.Validate(); err != nil {
		return nil, err
	}

	return &YOLOv5{options: args}, nil
}

// strides are the downsampling factors of the three detection heads.
var strides = [...]int{8, 16, 32}

// anchorsPerCell is the number of anchor boxes predicted at every grid cell.
const anchorsPerCell = 3

// Anchors returns the number of output rows of a model with the given input size,
// e.g. 25200 for 640x640.
func Anchors(width, height int) int {
	n := 0
	for _, s := range strides {
		n += (width / s) * (height / s)
	}
	return n * anchorsPerCell
}
