// Package geometry holds the coordinate types shared by the tracker and its
// harness, the corner/center box conversions, and the square crop extractor
// that turns a frame region into network input.
package geometry

import (
	"fmt"
	"math"
)

// Point is a position in pixels. Depending on context it is in image space
// or relative to a crop center.
type Point struct {
	X float64
	Y float64
}

// BoundingBox is an axis-aligned box in image pixels with a top-left origin.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CenterBox is a box in center form.
type CenterBox struct {
	CX float64
	CY float64
	W  float64
	H  float64
}

// CornersToCenter converts corner form (x1,y1,x2,y2) to center form (cx,cy,w,h).
func CornersToCenter(x1, y1, x2, y2 float64) (cx, cy, w, h float64) {
	return (x1 + x2) * 0.5, (y1 + y2) * 0.5, x2 - x1, y2 - y1
}

// CenterToCorners is the inverse of CornersToCenter.
func CenterToCorners(cx, cy, w, h float64) (x1, y1, x2, y2 float64) {
	return cx - w*0.5, cy - h*0.5, cx + w*0.5, cy + h*0.5
}

// FromCenter returns the top-left form of c.
func FromCenter(c CenterBox) BoundingBox {
	return BoundingBox{X: c.CX - c.W/2, Y: c.CY - c.H/2, Width: c.W, Height: c.H}
}

// Valid reports whether the box has a finite position and a positive, finite size.
func (b BoundingBox) Valid() bool {
	for _, v := range [...]float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Width > 0 && b.Height > 0
}

// Center returns the geometric center of the box.
func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Area returns Width*Height, or 0 for degenerate boxes.
func (b BoundingBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%.1f,%.1f %.1fx%.1f)", b.X, b.Y, b.Width, b.Height)
}

// IoU returns the intersection-over-union of two boxes in [0,1].
func IoU(a, b BoundingBox) float64 {
	ix1 := math.Max(a.X, b.X)
	iy1 := math.Max(a.Y, b.Y)
	ix2 := math.Min(a.X+a.Width, b.X+b.Width)
	iy2 := math.Min(a.Y+a.Height, b.Y+b.Height)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
