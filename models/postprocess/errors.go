package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidTensorShape is returned when the raw output cannot be split into
	// anchors of the declared dimensions.
	ErrInvalidTensorShape = errors.New("invalid tensor shape")

	// ErrInvalidThreshold is returned when a confidence or IoU threshold lies
	// outside [0, 1].
	ErrInvalidThreshold = errors.New("invalid threshold")
)

// MinDimensions is the per-anchor width without any class scores:
// cx, cy, w, h and objectness.
const MinDimensions = 5

// ValidateThreshold checks that a threshold lies within [0, 1].
//
// Arguments:
//   - name: The name of the option, used in the error message.
//   - value: The threshold value.
//
// Returns:
//   - error: ErrInvalidThreshold (wrapped) if the value is out of range or NaN.
func ValidateThreshold(name string, value float32) error {
	if math32.IsNaN(value) || value < 0 || value > 1 {
		return errors.Wrapf(ErrInvalidThreshold, "%s must be within [0, 1], got %v", name, value)
	}
	return nil
}

// ValidateShape checks that a flat output of length n splits into anchors of the
// given dimensions.
//
// Arguments:
//   - n: The number of floats in the output.
//   - dimensions: The number of floats per anchor (classes + 5).
//
// Returns:
//   - int: The number of anchors.
//   - error: ErrInvalidTensorShape (wrapped) when the shape is inconsistent.
func ValidateShape(n, dimensions int) (int, error) {
	if dimensions < MinDimensions {
		return 0, errors.Wrapf(ErrInvalidTensorShape,
			"dimensions must be at least %d, got %d", MinDimensions, dimensions)
	}
	if n%dimensions != 0 {
		return 0, errors.Wrapf(ErrInvalidTensorShape,
			"output length %d is not a multiple of dimensions %d", n, dimensions)
	}
	return n / dimensions, nil
}
