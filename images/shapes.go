// Package images - Image geometry and letterbox utilities.
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Rect is an axis-aligned box in pixel space.
//
// X and Y are the top-left corner. Width and Height are never negative once a
// Rect is built with NewRect or RectFromCorners.
type Rect struct {
	X      float32 `json:"x" yaml:"x"`
	Y      float32 `json:"y" yaml:"y"`
	Width  float32 `json:"width" yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// NewRect creates a rectangle from its top-left corner and size.
//
// A negative width or height is folded back so the rectangle covers the same area
// with a non-negative extent.
//
// Arguments:
//   - x: The left edge.
//   - y: The top edge.
//   - width: The width, may be negative.
//   - height: The height, may be negative.
//
// Returns:
//   - Rect: The normalized rectangle.
func NewRect(x, y, width, height float32) Rect {
	if width < 0 {
		x += width
		width = -width
	}
	if height < 0 {
		y += height
		height = -height
	}
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// RectFromCorners creates a rectangle from two opposite corners.
//
// Arguments:
//   - x1, y1: The first corner (usually top-left).
//   - x2, y2: The opposite corner (usually bottom-right).
//
// Returns:
//   - Rect: The normalized rectangle.
func RectFromCorners(x1, y1, x2, y2 float32) Rect {
	return NewRect(x1, y1, x2-x1, y2-y1)
}

// Right returns the right edge.
func (r Rect) Right() float32 {
	return r.X + r.Width
}

// Bottom returns the bottom edge.
func (r Rect) Bottom() float32 {
	return r.Y + r.Height
}

// Area returns the area of the rectangle.
func (r Rect) Area() float32 {
	return r.Width * r.Height
}

// Empty reports whether the rectangle has no positive area.
func (r Rect) Empty() bool {
	return !(r.Area() > 0)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f) %.2fx%.2f", r.X, r.Y, r.Width, r.Height)
}

// CalculateIoU (Intersection over Union) measures the extent of overlap between
// two bounding boxes.
//
// See also:
//   - http://ronny.rest/tutorials/module/localization_001/iou
//
// It is formally defined by the formula:
//
//	IoU = Area of Intersection / Area of Union
//
//	- A value of 1.0 means the rectangles are identical.
//	- A value of 0.0 means the rectangles don't overlap at all.
//
// **1. Degenerate boxes**
//
//	If either rectangle has a non-positive area the result is 0. Degenerate
//	boxes never match anything, including each other, so the union below can
//	never be zero.
//
// **2. Intersection**
//
//	The top-left corner of the intersection is the maximum of the two top-left
//	corners, and the bottom-right corner is the minimum of the two bottom-right
//	corners. A negative extent is clamped to zero (no intersection).
//
// **3. Union**
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X: 0, Y: 0, Width: 10, Height: 10}
//	rect2 := Rect{X: 5, Y: 5, Width: 10, Height: 10}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	areaR := r.Area()
	if !(areaR > 0) {
		return 0
	}
	areaO := o.Area()
	if !(areaO > 0) {
		return 0
	}

	ix1 := math32.Max(r.X, o.X)
	iy1 := math32.Max(r.Y, o.Y)
	ix2 := math32.Min(r.Right(), o.Right())
	iy2 := math32.Min(r.Bottom(), o.Bottom())

	interArea := math32.Max(ix2-ix1, 0) * math32.Max(iy2-iy1, 0)

	// Edges recomputed from X+Width can drift by an ulp, keep the ratio in range.
	return math32.Min(interArea/(areaR+areaO-interArea), 1)
}
