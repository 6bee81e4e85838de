package genie

import (
	"fmt"
	"math"
)

// DefaultMargin is the headroom added to the displacement scale so the
// largest needed in-funnel displacement never saturates the channel.
const DefaultMargin = 0.2

// neutralZeroValue encodes "no displacement" when the container leaves no
// horizontal travel on either side of the target.
const neutralZeroValue = 128

// Funnel is the geometry of one exit: where the element sits, where it flows
// to, and the constants that encode its displacement into one 8-bit channel.
// All coordinates except Source, Target and Container are relative to the
// container's top-left corner. A Funnel is immutable once built.
type Funnel struct {
	Source    Rect
	Target    Rect
	Container Rect

	// ContentLeft and ContentRight bound the element horizontally; ContentTop
	// is the distance from the container top (the target line) to the
	// element's top edge once it is seated at the container bottom.
	ContentLeft  float64
	ContentRight float64
	ContentTop   int

	// MaxDisplacementRight is the distance from the container's left edge to
	// the target's left edge; MaxDisplacementLeft the distance from the
	// target's right edge to the container's right edge.
	MaxDisplacementRight float64
	MaxDisplacementLeft  float64

	// ZeroValue is the channel value (0-255) that means no displacement.
	ZeroValue uint8
	// DisplacementScale is the displacement that maps to full channel deflection.
	DisplacementScale float64
	Margin            float64

	// Left and Right give the funnel's x-bounds for rows in [0, ContentTop].
	Left  func(y float64) float64
	Right func(y float64) float64
}

// NewFunnel computes the funnel from the element's rect to the target's rect.
// Both must be finite with positive area, margin must be finite and
// non-negative, and the rects must not share a bottom edge (which leaves the
// container without height); otherwise the returned error wraps
// ErrPrecondition.
func NewFunnel(source, target Rect, margin float64) (*Funnel, error) {
	if err := validateRect("source", source); err != nil {
		return nil, err
	}
	if err := validateRect("target", target); err != nil {
		return nil, err
	}
	if !isFinite(margin) || margin < 0 {
		return nil, fmt.Errorf("%w: margin %v must be finite and >= 0", ErrPrecondition, margin)
	}
	f := newFunnel(source, target, margin)
	if w, h := f.RasterSize(); w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: container %+v is empty", ErrPrecondition, f.Container)
	}
	return f, nil
}

// newFunnel skips margin validation so tests can probe negative margins.
func newFunnel(source, target Rect, margin float64) *Funnel {
	// Both rects are anchored at their bottom edges; the element is re-seated
	// flush with the container bottom and exits through the container top.
	container := BoundingBox(
		Vec2{target.X, target.Bottom()},
		Vec2{target.Right(), target.Bottom()},
		Vec2{source.X, source.Bottom()},
		Vec2{source.Right(), source.Bottom()},
	)

	f := &Funnel{
		Source:       source,
		Target:       target,
		Container:    container,
		ContentLeft:  math.Round(source.X - container.X),
		ContentRight: math.Round(source.Right() - container.X),
		ContentTop:   max(int(math.Round(container.Height-source.Height)), 0),
		Margin:       margin,
	}

	targetLeft := target.X - container.X
	targetRight := target.Right() - container.X

	f.MaxDisplacementRight = targetLeft
	f.MaxDisplacementLeft = container.Width - targetRight

	travel := f.MaxDisplacementRight + f.MaxDisplacementLeft
	if travel > 0 {
		f.ZeroValue = uint8(math.Round(255 * f.MaxDisplacementLeft / travel))
	} else {
		f.ZeroValue = neutralZeroValue
	}
	f.DisplacementScale = math.Max(f.MaxDisplacementRight, f.MaxDisplacementLeft) * (1 + margin)

	top := float64(f.ContentTop)
	f.Left = Quadratic(f.ContentLeft, top, targetLeft, 0)
	f.Right = Quadratic(f.ContentRight, top, targetRight, 0)
	return f
}

// ContentWidth returns the element's width in container space.
func (f *Funnel) ContentWidth() float64 {
	return f.ContentRight - f.ContentLeft
}

// RasterSize returns the pixel dimensions of the displacement raster.
func (f *Funnel) RasterSize() (w, h int) {
	return int(math.Ceil(f.Container.Width)), int(math.Ceil(f.Container.Height))
}

// ContentOffset returns the element's top-left position inside the container
// once it is seated at the container bottom.
func (f *Funnel) ContentOffset() Vec2 {
	return Vec2{
		X: f.Source.X - f.Container.X,
		Y: f.Container.Height - f.Source.Height,
	}
}

func validateRect(name string, r Rect) error {
	if !r.IsFinite() {
		return fmt.Errorf("%w: %s rect %+v is not finite", ErrPrecondition, name, r)
	}
	if r.Empty() {
		return fmt.Errorf("%w: %s rect %+v has zero area", ErrPrecondition, name, r)
	}
	return nil
}
