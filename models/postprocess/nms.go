// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/images"
)

// spatialIndexMin is the candidate count from which overlap candidates are looked
// up in an R-tree instead of a linear scan.
const spatialIndexMin = 64

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap above which the lower-confidence box is dropped.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// MaxResults caps the number of returned detections. Zero means no cap.
	MaxResults int `json:"max_results" yaml:"max_results"`
	// ClassAware restricts suppression to detections of the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// DefaultNMSConfig returns the default suppression parameters.
//
// Returns:
//   - NMSConfig: IoU threshold 0.45, at most 10 results, class-agnostic.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		IoUThreshold: 0.45,
		MaxResults:   10,
		ClassAware:   false,
	}
}

// Validate checks the configuration.
//
// Returns:
//   - error: ErrInvalidThreshold (wrapped) for an IoU threshold outside [0, 1], or an
//     error for a negative result cap.
func (c NMSConfig) Validate() error {
	if err := ValidateThreshold("iou_threshold", c.IoUThreshold); err != nil {
		return err
	}
	if c.MaxResults < 0 {
		return errors.Errorf("max_results must not be negative, got %d", c.MaxResults)
	}
	return nil
}

// Suppress performs greedy Non-Maximum Suppression.
//
// Detections are ordered by descending confidence. Equal confidences keep their
// input order. Walking that order, each surviving detection is emitted and every
// later detection that overlaps it by more than the IoU threshold is dropped. By
// default suppression ignores classes: a box of one class can suppress a box of
// another.
//
// The input slice is not modified.
//
// Arguments:
//   - detections: The candidate detections, in any order.
//   - config: The suppression parameters.
//
// Returns:
//   - []Detection: The surviving detections by descending confidence, at most
//     config.MaxResults of them. Nil if there are no detections.
//
// @example
//
//	final := Suppress(candidates, NMSConfig{IoUThreshold: 0.45, MaxResults: 10})
func Suppress(detections []Detection, config NMSConfig) []Detection {
	return suppress(detections, config, len(detections) >= spatialIndexMin)
}

func suppress(detections []Detection, config NMSConfig, indexed bool) []Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := make([]Detection, n)
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	limit := config.MaxResults
	if limit <= 0 || limit > n {
		limit = n
	}

	// A positive IoU needs a positive intersection, so the R-tree only has to return
	// boxes whose extents meet the anchor.
	var index *flatbush.Flatbush[float32]
	if indexed && config.IoUThreshold >= 0 {
		index = buildIndex(sorted)
	}

	used := make([]bool, n)
	remaining := n
	filtered := make([]Detection, 0, limit)

	for i := 0; i < n && remaining > 0; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true
		remaining--

		if len(filtered) >= limit {
			break
		}

		suppress := func(j int) {
			if used[j] {
				return
			}
			if config.ClassAware && sorted[j].Class != anchor.Class {
				return
			}
			if images.CalculateIoU(anchor.Box, sorted[j].Box) > config.IoUThreshold {
				used[j] = true
				remaining--
			}
		}

		if index != nil {
			for _, j := range index.Search(anchor.Box.X, anchor.Box.Y, anchor.Box.Right(), anchor.Box.Bottom()) {
				if j > i {
					suppress(j)
				}
			}
			continue
		}

		for j := i + 1; j < n && remaining > 0; j++ {
			suppress(j)
		}
	}

	return filtered
}

// buildIndex builds an R-tree over the boxes. Item i in the tree is detections[i].
func buildIndex(detections []Detection) *flatbush.Flatbush[float32] {
	fb := flatbush.NewFlatbush[float32]()
	fb.Reserve(len(detections))
	for _, d := range detections {
		fb.Add(d.Box.X, d.Box.Y, d.Box.Right(), d.Box.Bottom())
	}
	fb.Finish()
	return fb
}
