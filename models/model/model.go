// Package model - Definitions shared by every detection model.
package model

import (
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO is the YOLO model family: 80 COCO classes, no background.
	ModelFamilyYOLO Family = "yolo"
	// ModelFamilyCOCO is the COCO model family: 80 classes plus background.
	ModelFamilyCOCO Family = "coco"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv5 is the name of the YOLOv5 model.
	ModelNameYOLOv5 Name = "yolov5"
	// ModelNameYOLOv7 is the name of the YOLOv7 model. Its output layout matches YOLOv5.
	ModelNameYOLOv7 Name = "yolov7"
)

// Options describes a loaded model and how its output is post-processed.
type Options struct {
	Name   Name   `json:"name"   yaml:"name"`
	Family Family `json:"family" yaml:"family"`
	Path   string `json:"path"   yaml:"path"`
	// InputWidth and InputHeight are the model input size in pixels.
	InputWidth  int `json:"input_width"  yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`
	// Classes is the number of class scores per anchor.
	Classes int `json:"classes" yaml:"classes"`
	// Inputs and Outputs are the graph node names.
	Inputs  []string `json:"inputs"  yaml:"inputs"`
	Outputs []string `json:"outputs" yaml:"outputs"`

	ObjectnessThreshold      float32               `json:"objectness_threshold"       yaml:"objectness_threshold"`
	ClassConfidenceThreshold float32               `json:"class_confidence_threshold" yaml:"class_confidence_threshold"`
	NMS                      postprocess.NMSConfig `json:"nms"                        yaml:"nms"`
	// Workers bounds decoding parallelism. Zero uses GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// Dimensions returns the number of floats per anchor.
func (o Options) Dimensions() int {
	return o.Classes + postprocess.MinDimensions
}

// Model is a detection model that can turn its raw output into detections.
type Model interface {
	// Options returns the model options.
	Options() Options
	// PostProcess decodes a raw output tensor and suppresses overlapping boxes.
	// The image size is the size of the original frame before letterboxing.
	PostProcess(output []float32, imageWidth, imageHeight int) ([]postprocess.Detection, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs = Options
