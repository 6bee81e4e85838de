package genie

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// Filter is the interface for visual effects applied to a node's rendered output.
type Filter interface {
	// Apply renders src into dst with the filter effect.
	Apply(src, dst *ebiten.Image)
	// Padding returns the extra pixels needed around the source to accommodate
	// the effect. Zero means no padding.
	Padding() int
}

// --- Kage shader sources ---
// All shaders use //kage:unit pixels as required by Ebitengine.
// Ebitengine uses premultiplied alpha; shaders un-premultiply before processing
// and re-premultiply output where needed.

const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	// Un-premultiply alpha.
	if c.a > 0 {
		c.rgb /= c.a
	}
	// Apply 4x5 color matrix (row-major, offset in elements 4,9,14,19).
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	// Clamp and re-premultiply.
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

// displacementShaderSrc follows the feDisplacementMap rule: each output pixel
// samples the source at p + Scale*(map(p).sel - 0.5) on each axis.
const displacementShaderSrc = `//kage:unit pixels
package main

var Scale float
var XSelect vec4
var YSelect vec4

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	m := imageSrc1At(src - imageSrc0Origin() + imageSrc1Origin())
	if m.a > 0 {
		m.rgb /= m.a
	}
	d := vec2(dot(m, XSelect)-0.5, dot(m, YSelect)-0.5) * Scale
	return imageSrc0At(src + d)
}
`

// --- Lazy shader compilation (single-threaded, no sync.Once) ---

var (
	colorMatrixShader  *ebiten.Shader
	displacementShader *ebiten.Shader
)

func ensureColorMatrixShader() *ebiten.Shader {
	if colorMatrixShader == nil {
		s, err := ebiten.NewShader([]byte(colorMatrixShaderSrc))
		if err != nil {
			panic("genie: failed to compile color matrix shader: " + err.Error())
		}
		colorMatrixShader = s
	}
	return colorMatrixShader
}

func ensureDisplacementShader() *ebiten.Shader {
	if displacementShader == nil {
		s, err := ebiten.NewShader([]byte(displacementShaderSrc))
		if err != nil {
			panic("genie: failed to compile displacement shader: " + err.Error())
		}
		displacementShader = s
	}
	return displacementShader
}

// --- ColorMatrixFilter ---

// ColorMatrixFilter applies a 4x5 color matrix transformation using a Kage shader.
// The matrix is stored in row-major order: [R_r, R_g, R_b, R_a, R_offset, G_r, ...].
type ColorMatrixFilter struct {
	Matrix      [20]float64
	uniforms    map[string]any
	matrixF32   [20]float32 // persistent buffer to avoid per-frame slice escape
	matrixSlice []float32   // persistent slice header pointing into matrixF32
	shaderOp    ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a color matrix filter initialized to the identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{
		uniforms: make(map[string]any, 1),
	}
	f.matrixSlice = f.matrixF32[:]
	f.uniforms["Matrix"] = f.matrixSlice
	f.Matrix[0] = 1  // R_r
	f.Matrix[6] = 1  // G_g
	f.Matrix[12] = 1 // B_b
	f.Matrix[18] = 1 // A_a
	return f
}

// Apply renders the color matrix transformation from src into dst.
func (f *ColorMatrixFilter) Apply(src, dst *ebiten.Image) {
	shader := ensureColorMatrixShader()
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	bounds := src.Bounds()
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), shader, &f.shaderOp)
}

// Padding returns 0; color matrix transforms don't expand the image bounds.
func (f *ColorMatrixFilter) Padding() int { return 0 }

// --- DisplacementFilter ---

// DisplacementFilter offsets every source pixel by a vector read from Map.
// Map must be the same size as the source image.
type DisplacementFilter struct {
	Map      *ebiten.Image
	Scale    float64
	XChannel Channel
	YChannel Channel

	uniforms map[string]any
	xSel     [4]float32
	ySel     [4]float32
	shaderOp ebiten.DrawRectShaderOptions
}

// NewDisplacementFilter creates a displacement filter reading X from R and Y
// from B.
func NewDisplacementFilter(m *ebiten.Image, scale float64) *DisplacementFilter {
	f := &DisplacementFilter{
		Map:      m,
		Scale:    scale,
		XChannel: ChannelR,
		YChannel: ChannelB,
		uniforms: make(map[string]any, 3),
	}
	f.uniforms["XSelect"] = f.xSel[:]
	f.uniforms["YSelect"] = f.ySel[:]
	return f
}

// Apply samples src through the displacement map into dst.
func (f *DisplacementFilter) Apply(src, dst *ebiten.Image) {
	shader := ensureDisplacementShader()
	f.xSel = channelSelector(f.XChannel)
	f.ySel = channelSelector(f.YChannel)
	// Scalar float32 boxing is unavoidable with Ebitengine's uniform API.
	f.uniforms["Scale"] = float32(f.Scale)
	bounds := src.Bounds()
	f.shaderOp.Images[0] = src
	f.shaderOp.Images[1] = f.Map
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), shader, &f.shaderOp)
}

// Padding returns 0; content is pulled inward, never pushed past the bounds.
func (f *DisplacementFilter) Padding() int { return 0 }

func channelSelector(c Channel) [4]float32 {
	var sel [4]float32
	if c <= ChannelA {
		sel[c] = 1
	}
	return sel
}

// --- GenieFilter ---

// GenieFilter is the two-stage graph described by a FilterSpec: the encoded
// field is recolored once into a map matching the source size, then the
// source is displaced through it. Only the displacement scale changes per
// frame.
type GenieFilter struct {
	spec     FilterSpec
	raw      *ebiten.Image
	recolor  *ColorMatrixFilter
	displace *DisplacementFilter

	canvas *ebiten.Image // raw field padded to the source size
	mapTex *ebiten.Image // recolored map fed to the displacement stage
	texW   int
	texH   int
	imgOp  ebiten.DrawImageOptions
}

// NewGenieFilter builds the filter graph for spec over the rasterized field.
// The filter does not own raw; the caller deallocates it after detaching.
func NewGenieFilter(spec FilterSpec, raw *ebiten.Image) *GenieFilter {
	f := &GenieFilter{
		spec:     spec,
		raw:      raw,
		recolor:  NewColorMatrixFilter(),
		displace: NewDisplacementFilter(nil, spec.Scale),
	}
	f.recolor.Matrix = spec.Matrix
	f.displace.XChannel = spec.XChannel
	f.displace.YChannel = spec.YChannel
	return f
}

// Spec returns the filter graph description.
func (f *GenieFilter) Spec() FilterSpec { return f.spec }

// Scale returns the current displacement scale.
func (f *GenieFilter) Scale() float64 { return f.displace.Scale }

// SetScale sets the displacement scale. Zero disables the warp.
func (f *GenieFilter) SetScale(v float64) { f.displace.Scale = v }

// scalePtr exposes the scale to timeline tracks.
func (f *GenieFilter) scalePtr() *float64 { return &f.displace.Scale }

// ensureMap rebuilds the recolored map when the source size changes.
// DrawRectShader requires all source images to have the same size, so the
// field is padded with its zero value up to the source dimensions.
func (f *GenieFilter) ensureMap(w, h int) {
	if f.mapTex != nil && f.texW == w && f.texH == h {
		return
	}
	f.Dispose()
	f.canvas = ebiten.NewImage(w, h)
	f.mapTex = ebiten.NewImage(w, h)
	f.texW, f.texH = w, h

	f.canvas.Fill(color.RGBA{R: f.spec.ZeroValue, A: 255})
	if f.raw != nil {
		f.imgOp.GeoM.Reset()
		f.imgOp.Blend = ebiten.BlendCopy
		f.canvas.DrawImage(f.raw, &f.imgOp)
	}
	f.recolor.Apply(f.canvas, f.mapTex)
}

// Apply warps src into dst.
func (f *GenieFilter) Apply(src, dst *ebiten.Image) {
	bounds := src.Bounds()
	f.ensureMap(bounds.Dx(), bounds.Dy())
	f.displace.Map = f.mapTex
	f.displace.Apply(src, dst)
}

// Padding returns 0.
func (f *GenieFilter) Padding() int { return 0 }

// Dispose releases the intermediate map textures.
func (f *GenieFilter) Dispose() {
	if f.canvas != nil {
		f.canvas.Deallocate()
		f.canvas = nil
	}
	if f.mapTex != nil {
		f.mapTex.Deallocate()
		f.mapTex = nil
	}
	f.texW, f.texH = 0, 0
}

// --- Filter padding helper ---

// filterChainPadding returns the cumulative padding required by a slice of filters.
func filterChainPadding(filters []Filter) int {
	pad := 0
	for _, f := range filters {
		pad += f.Padding()
	}
	return pad
}

// --- Filter application helper ---

// applyFilters runs a filter chain on src, ping-ponging between two images.
// Returns the image containing the final result (either src or the provided
// scratch image). The caller must handle releasing scratch if pooled.
func applyFilters(filters []Filter, src *ebiten.Image, pool *renderTexturePool) *ebiten.Image {
	if len(filters) == 0 {
		return src
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	current := src
	var scratch *ebiten.Image

	for _, f := range filters {
		if scratch == nil {
			scratch = pool.Acquire(w, h)
		} else {
			scratch.Clear()
		}
		f.Apply(current, scratch)
		current, scratch = scratch, current
	}
	if scratch != src {
		pool.Release(scratch)
	}

	return current
}
