// Package models - class labels and the model registry.
package models

import (
	"fmt"

	"github.com/nvr-ai/go-yolo/models/model"
)

// yoloNames is the 80 COCO classes in the zero-based order YOLO models emit.
var yoloNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// ClassSet ties a model family to its labels.
type ClassSet struct {
	// Family is the class set identifier.
	Family model.Family
	// Names holds the label of every class index.
	Names []string
	// index maps a label back to its class index.
	index map[string]int
}

func newClassSet(family model.Family, names []string) *ClassSet {
	s := &ClassSet{Family: family, Names: names, index: make(map[string]int, len(names))}
	for i, n := range names {
		s.index[n] = i
	}
	return s
}

// Label returns the name of a class index, or "class_<n>" when the index is
// outside the set.
func (s *ClassSet) Label(idx int) string {
	if s == nil || idx < 0 || idx >= len(s.Names) {
		return fmt.Sprintf("class_%d", idx)
	}
	return s.Names[idx]
}

// Index returns the class index for a label.
func (s *ClassSet) Index(name string) (int, error) {
	idx, ok := s.index[name]
	if !ok {
		return -1, fmt.Errorf("name %q not found in family %q", name, s.Family)
	}
	return idx, nil
}

// Len returns the number of classes.
func (s *ClassSet) Len() int {
	return len(s.Names)
}

// YOLOClasses is the 80 COCO classes with no background entry.
var YOLOClasses = newClassSet(model.ModelFamilyYOLO, yoloNames)

// COCOClasses is the 80 COCO classes plus "__background__" at index 0.
var COCOClasses = newClassSet(model.ModelFamilyCOCO, append([]string{"__background__"}, yoloNames...))

// Classes returns the class set of a model family.
//
// Arguments:
//   - family: The model family.
//
// Returns:
//   - *ClassSet: The class set.
//   - error: An error if the family is not registered.
func Classes(family model.Family) (*ClassSet, error) {
	switch family {
	case model.ModelFamilyYOLO:
		return YOLOClasses, nil
	case model.ModelFamilyCOCO:
		return COCOClasses, nil
	default:
		return nil, fmt.Errorf("family %q not registered", family)
	}
}

// NewLabels returns a label set for custom class names, e.g. from a config file.
func NewLabels(family model.Family, names []string) *ClassSet {
	return newClassSet(family, names)
}
