package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/yolov5"
)

// ErrUnsupportedModel is returned for a model name with no registered post-processor.
var ErrUnsupportedModel = errors.New("unsupported model")

// NewModel creates a new detection model instance based on the specified model name.
//
// YOLOv5 and YOLOv7 share the [cx, cy, w, h, objectness, scores...] anchor layout
// and are both served by the YOLOv5 post-processor.
//
// Arguments:
//   - args: Configuration parameters specifying the model type, size and thresholds.
//
// Returns:
//   - model.Model: A fully configured model instance implementing the Model interface.
//   - error: ErrUnsupportedModel (wrapped) for an unknown name, or a validation error.
//
// Example:
//
//	args := yolov5.DefaultOptions()
//	args.Path = "/models/yolov5s.onnx"
//
//	detectionModel, err := NewModel(args)
//	if err != nil {
//	    log.Fatalf("Failed to create detection model: %v", err)
//	}
func NewModel(args model.NewModelArgs) (model.Model, error) {
	switch args.Name {
	case model.ModelNameYOLOv5, model.ModelNameYOLOv7:
		m, err := yolov5.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedModel, "%q", args.Name)
	}
}
