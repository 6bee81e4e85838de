package genie

import "math"

// cubicBezier is a unit timing curve from (0, 0) to (1, 1) with control
// points (x1, y1) and (x2, y2), as in CSS timing functions.
type cubicBezier struct {
	x1, y1, x2, y2 float64
}

// easeInCurve is the CSS "ease-in" timing function.
var easeInCurve = cubicBezier{0.42, 0, 1, 1}

func bezierCoord(t, p1, p2 float64) float64 {
	// B(t) = 3(1-t)^2 t p1 + 3(1-t) t^2 p2 + t^3
	u := 1 - t
	return 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t
}

func bezierSlope(t, p1, p2 float64) float64 {
	u := 1 - t
	return 3*u*u*p1 + 6*u*t*(p2-p1) + 3*t*t*(1-p2)
}

// at returns the curve's progress for a time fraction x in [0, 1].
func (c cubicBezier) at(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	// Newton's method, falling back to bisection on flat slopes.
	t := x
	for i := 0; i < 8; i++ {
		dx := bezierCoord(t, c.x1, c.x2) - x
		if math.Abs(dx) < 1e-7 {
			return bezierCoord(t, c.y1, c.y2)
		}
		d := bezierSlope(t, c.x1, c.x2)
		if math.Abs(d) < 1e-6 {
			break
		}
		t -= dx / d
	}
	lo, hi := 0.0, 1.0
	t = x
	for i := 0; i < 32; i++ {
		v := bezierCoord(t, c.x1, c.x2)
		if math.Abs(v-x) < 1e-7 {
			break
		}
		if v < x {
			lo = t
		} else {
			hi = t
		}
		t = (lo + hi) / 2
	}
	return bezierCoord(t, c.y1, c.y2)
}

// EaseIn is the CSS "ease-in" curve as a gween ease.TweenFunc: t is elapsed
// time, b the begin value, c the change, d the duration.
func EaseIn(t, b, c, d float32) float32 {
	if d <= 0 {
		return b + c
	}
	return b + c*float32(easeInCurve.at(float64(t/d)))
}
