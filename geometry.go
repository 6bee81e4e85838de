package genie

import "math"

// Linear returns the line through (x0, y0) and (x1, y1), solved for x:
//
//	x = x0 + (y-y0) * (x1-x0)/(y1-y0)
//
// A degenerate range (y1 == y0) yields non-finite results.
func Linear(x0, y0, x1, y1 float64) func(y float64) float64 {
	dx := x1 - x0
	dy := y1 - y0
	return func(y float64) float64 {
		return x0 + (y-y0)*(dx/dy)
	}
}

// Quadratic returns a parabola through (x0, y0) and (x1, y1), solved for x,
// with zero slope at y0:
//
//	x = x0 + ((y-y0)/(y1-y0))^2 * (x1-x0)
//
// The funnel edges use it to widen smoothly from the target line (y1) to the
// content top (y0).
func Quadratic(x0, y0, x1, y1 float64) func(y float64) float64 {
	dx := x1 - x0
	dy := y1 - y0
	return func(y float64) float64 {
		t := (y - y0) / dy
		return x0 + t*t*dx
	}
}

// BoundingBox returns the smallest Rect containing every point. Points on the
// edges are inside. Panics if no points are given.
func BoundingBox(points ...Vec2) Rect {
	if len(points) == 0 {
		panic("genie: bounding box of zero points")
	}
	left, top := math.Inf(1), math.Inf(1)
	right, bottom := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		left = math.Min(left, p.X)
		top = math.Min(top, p.Y)
		right = math.Max(right, p.X)
		bottom = math.Max(bottom, p.Y)
	}
	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}
