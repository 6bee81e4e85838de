package genie

// Channel selects a color channel of the displacement map.
type Channel uint8

const (
	ChannelR Channel = iota // red
	ChannelG                // green
	ChannelB                // blue
	ChannelA                // alpha
)

// String returns the single-letter channel name.
func (c Channel) String() string {
	switch c {
	case ChannelR:
		return "R"
	case ChannelG:
		return "G"
	case ChannelB:
		return "B"
	case ChannelA:
		return "A"
	default:
		return "?"
	}
}

// FilterID identifies the filter graph of one animation. IDs come from a
// monotonic counter and are never reused within a process.
type FilterID uint64

// filterIDCounter is a plain counter (no atomic, genie is single-threaded).
var filterIDCounter FilterID

func nextFilterID() FilterID {
	filterIDCounter++
	return filterIDCounter
}

// FilterSpec describes the two-stage graph that turns an encoded Field into a
// horizontal warp: a recolor matrix that moves the field's zero point onto the
// displacement stage's neutral 0.5, followed by a displacement lookup.
type FilterSpec struct {
	ID FilterID

	ZeroValue uint8
	ZeroPoint float64
	Slope     float64
	Intercept float64

	// Matrix is the recolor stage, row-major 4x5 like ColorMatrixFilter.
	// R is remapped around 0.5, G is zeroed, B is forced to 0.5 so the
	// vertical axis never moves, A passes through.
	Matrix [20]float64

	// Scale is the displacement stage's scale. Samples are read in
	// [-0.5, 0.5] around the neutral value, hence the factor of two; the
	// sign pulls content toward the funnel.
	Scale float64

	XChannel Channel
	YChannel Channel
}

// NewFilterSpec derives the filter graph for fd. The result depends on the
// live geometry and must be rebuilt for every animation.
func NewFilterSpec(fd *Field, id FilterID) FilterSpec {
	f := fd.Funnel()
	zp := float64(f.ZeroValue) / 255

	var slope float64
	if zp <= 0.5 {
		slope = 0.5 / (1 - zp)
	} else {
		slope = 0.5 / zp
	}
	intercept := 0.5 - zp*slope

	return FilterSpec{
		ID:        id,
		ZeroValue: f.ZeroValue,
		ZeroPoint: zp,
		Slope:     slope,
		Intercept: intercept,
		Matrix: [20]float64{
			slope, 0, 0, 0, intercept,
			0, 0, 0, 0, 0,
			0, 0, 0, 0, 0.5,
			0, 0, 0, 1, 0,
		},
		Scale:    -f.DisplacementScale * 2,
		XChannel: ChannelR,
		YChannel: ChannelB,
	}
}

// Recolor applies the red row of the recolor matrix to a normalized value.
func (s FilterSpec) Recolor(v float64) float64 {
	return s.Slope*v + s.Intercept
}
