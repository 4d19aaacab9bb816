// Package postprocess - Postprocessing utilities for models.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-yolo/images"
)

// Detection represents a single detection result.
//
// Detections are plain values. Nothing in this package modifies one after it has
// been built.
type Detection struct {
	// The bounding box in original image pixels.
	Box images.Rect `json:"box"`
	// The objectness score multiplied by the class score.
	Confidence float32 `json:"confidence"`
	// The predicted class index.
	Class int `json:"class"`
}

func (d Detection) String() string {
	return fmt.Sprintf("class %d (confidence %f): %s", d.Class, d.Confidence, d.Box)
}
