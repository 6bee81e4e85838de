package genie

import (
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// drawNode walks the node tree depth-first and draws visible nodes onto
// target. origin is the parent's position in target space.
func (s *Scene) drawNode(n *Node, target *ebiten.Image, origin Vec2, parentAlpha float64, st *debugStats) {
	if !n.Visible {
		return
	}
	pos := Vec2{origin.X + n.X, origin.Y + n.Y}
	alpha := parentAlpha * n.Alpha
	st.nodeCount++

	// Special path: filtered or clipping nodes render their subtree to an
	// offscreen image and composite it once.
	if len(n.Filters) > 0 || n.ClipChildren {
		s.renderSpecialNode(n, target, pos, alpha, st)
		return
	}

	s.drawImage(n, target, pos, alpha, st)
	for _, child := range n.children {
		s.drawNode(child, target, pos, alpha, st)
	}
}

// drawImage draws the node's own image, if any.
func (s *Scene) drawImage(n *Node, target *ebiten.Image, pos Vec2, alpha float64, st *debugStats) {
	if n.Image == nil || alpha <= 0 {
		return
	}
	op := &s.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Translate(pos.X, pos.Y)
	op.ColorScale.Scale(
		float32(n.Color.R*n.Color.A*alpha),
		float32(n.Color.G*n.Color.A*alpha),
		float32(n.Color.B*n.Color.A*alpha),
		float32(n.Color.A*alpha),
	)
	target.DrawImage(n.Image, op)
	st.drawCallCount++
}

// renderSpecialNode renders n and its subtree into a pooled offscreen image,
// runs the node's filters over it, and composites the result at pos with
// alpha applied once.
func (s *Scene) renderSpecialNode(n *Node, target *ebiten.Image, pos Vec2, alpha float64, st *debugStats) {
	var bounds Rect
	if w, h := n.Size(); n.ClipChildren && w > 0 && h > 0 {
		bounds = Rect{Width: w, Height: h}
	} else {
		bounds = subtreeBounds(n)
	}
	padding := float64(filterChainPadding(n.Filters))
	bounds.X -= padding
	bounds.Y -= padding
	bounds.Width += padding * 2
	bounds.Height += padding * 2

	w := int(math.Ceil(bounds.Width))
	h := int(math.Ceil(bounds.Height))
	if w <= 0 || h <= 0 || alpha <= 0 {
		return
	}

	rt := s.rtPool.Acquire(w, h)
	content := rt.SubImage(image.Rect(0, 0, w, h)).(*ebiten.Image)
	local := Vec2{-bounds.X, -bounds.Y}
	s.drawImage(n, content, local, 1, st)
	for _, child := range n.children {
		s.drawNode(child, content, local, 1, st)
	}

	result := applyFilters(n.Filters, content, &s.rtPool)
	view := result
	if result != content {
		view = result.SubImage(image.Rect(0, 0, w, h)).(*ebiten.Image)
	}

	op := &s.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Translate(pos.X+bounds.X, pos.Y+bounds.Y)
	op.ColorScale.ScaleAlpha(float32(alpha))
	target.DrawImage(view, op)
	st.drawCallCount++
	st.offscreenCount++

	if result != content {
		s.rtPool.Release(result)
	}
	s.rtPool.Release(rt)
}
