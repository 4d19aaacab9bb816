// Package yolov5 - postprocess YOLOv5 model outputs.
package yolov5

import (
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// PostProcess postprocesses the output of the YOLOv5 model.
//
// Arguments:
//   - output: The flat [anchors][classes+5] output of the YOLOv5 model.
//   - imageWidth: The width of the original image.
//   - imageHeight: The height of the original image.
//
// Returns:
//   - []postprocess.Detection: The final detections by descending confidence.
//   - error: postprocess.ErrInvalidTensorShape (wrapped) for a malformed output.
func (m *YOLOv5) PostProcess(output []float32, imageWidth, imageHeight int) ([]postprocess.Detection, error) {
	candidates, err := m.Decode(output, imageWidth, imageHeight)
	if err != nil {
		return nil, err
	}
	return postprocess.Suppress(candidates, m.options.NMS), nil
}

// Decode runs only the decoding stage and returns every candidate detection.
func (m *YOLOv5) Decode(output []float32, imageWidth, imageHeight int) ([]postprocess.Detection, error) {
	return postprocess.Decode(output, m.decodeArgs(imageWidth, imageHeight))
}

func (m *YOLOv5) decodeArgs(imageWidth, imageHeight int) postprocess.DecodeArgs {
	return postprocess.DecodeArgs{
		Dimensions:               m.options.Dimensions(),
		ImageWidth:               imageWidth,
		ImageHeight:              imageHeight,
		ModelWidth:               m.options.InputWidth,
		ModelHeight:              m.options.InputHeight,
		ObjectnessThreshold:      m.options.ObjectnessThreshold,
		ClassConfidenceThreshold: m.options.ClassConfidenceThreshold,
		Workers:                  m.options.Workers,
	}
}
