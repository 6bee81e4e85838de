package genie

import (
	"image"
	"image/png"
	"io"
	"math"
)

// Field is the displacement field of one funnel: per pixel of the container,
// the horizontal shift that pulls source content into the funnel, stored as a
// raw (unclamped) red-channel value around Funnel.ZeroValue.
type Field struct {
	Width, Height int

	funnel   *Funnel
	channels []float64
	stats    FieldStats
}

// FieldStats summarizes the raw channel values of a Field. In-funnel samples
// are the ones whose column lies between the funnel's left and right edge on
// their row; only those map back onto the element.
type FieldStats struct {
	Min, Max                 float64
	InFunnelMin, InFunnelMax float64
	Saturated                int
	InFunnelSaturated        int
}

// Synthesize computes the displacement field for f.
func Synthesize(f *Funnel) *Field {
	w, h := f.RasterSize()
	fd := &Field{
		Width:    w,
		Height:   h,
		funnel:   f,
		channels: make([]float64, w*h),
	}
	zero := float64(f.ZeroValue)
	for i := range fd.channels {
		fd.channels[i] = zero
	}
	fd.stats = FieldStats{
		Min: zero, Max: zero,
		InFunnelMin: math.Inf(1), InFunnelMax: math.Inf(-1),
	}

	// Without horizontal travel there is nothing to encode.
	if f.DisplacementScale > 0 {
		rows := min(f.ContentTop, h)
		width := f.Source.Width
		for y := 0; y < rows; y++ {
			left := f.Left(float64(y))
			right := f.Right(float64(y))
			if right-left <= 0 {
				continue
			}
			pct := Linear(0, left, 1, right)
			row := fd.channels[y*w : (y+1)*w]
			for x := range row {
				fx := float64(x)
				offset := fx - (f.ContentLeft + pct(fx)*width)
				v := offset/f.DisplacementScale*255 + zero
				row[x] = v
				fd.observe(v, fx >= left && fx <= right)
			}
		}
	}

	if math.IsInf(fd.stats.InFunnelMin, 1) {
		fd.stats.InFunnelMin, fd.stats.InFunnelMax = zero, zero
	}
	return fd
}

func (fd *Field) observe(v float64, inFunnel bool) {
	st := &fd.stats
	st.Min = math.Min(st.Min, v)
	st.Max = math.Max(st.Max, v)
	saturated := v < 0 || v > 255
	if saturated {
		st.Saturated++
	}
	if inFunnel {
		st.InFunnelMin = math.Min(st.InFunnelMin, v)
		st.InFunnelMax = math.Max(st.InFunnelMax, v)
		if saturated {
			st.InFunnelSaturated++
		}
	}
}

// Funnel returns the geometry the field was built from.
func (fd *Field) Funnel() *Funnel { return fd.funnel }

// Stats returns the channel statistics gathered during synthesis.
func (fd *Field) Stats() FieldStats { return fd.stats }

// At returns the raw channel value at (x, y). Out-of-range coordinates return
// the zero value.
func (fd *Field) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= fd.Width || y >= fd.Height {
		return float64(fd.funnel.ZeroValue)
	}
	return fd.channels[y*fd.Width+x]
}

// Offset returns the horizontal displacement in pixels encoded at (x, y).
func (fd *Field) Offset(x, y int) float64 {
	if fd.funnel.DisplacementScale == 0 {
		return 0
	}
	return (fd.At(x, y) - float64(fd.funnel.ZeroValue)) / 255 * fd.funnel.DisplacementScale
}

// Encode renders the field as an RGBA raster: displacement in R, G and B
// zero, fully opaque. Channel values are rounded and saturated into [0, 255].
func (fd *Field) Encode() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fd.Width, fd.Height))
	for i, v := range fd.channels {
		off := i * 4
		img.Pix[off+0] = channelByte(v)
		img.Pix[off+1] = 0
		img.Pix[off+2] = 0
		img.Pix[off+3] = 255
	}
	return img
}

// WritePNG encodes the raster as PNG.
func (fd *Field) WritePNG(w io.Writer) error {
	return png.Encode(w, fd.Encode())
}

func channelByte(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
